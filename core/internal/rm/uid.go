package rm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// VersionedObjectID is a parsed uid of the form uuid[::system::version].
type VersionedObjectID struct {
	ID      uuid.UUID
	System  string
	Version int

	// HasVersion is false for a bare uuid.
	HasVersion bool
}

func (v VersionedObjectID) String() string {
	if !v.HasVersion {
		return v.ID.String()
	}
	return v.ID.String() + "::" + v.System + "::" + strconv.Itoa(v.Version)
}

// ParseVersionedObjectID parses s as a bare uuid or uuid::system::version.
// The version must be a positive integer; the system may be empty.
func ParseVersionedObjectID(s string) (VersionedObjectID, error) {
	parts := strings.Split(s, "::")
	var v VersionedObjectID

	id, err := uuid.Parse(parts[0])
	if err != nil || len(parts[0]) != 36 {
		return v, fmt.Errorf("invalid uuid %q", parts[0])
	}
	v.ID = id

	switch len(parts) {
	case 1:
		return v, nil
	case 3:
		n, err := strconv.Atoi(parts[2])
		if err != nil || n < 1 {
			return v, fmt.Errorf("invalid version %q", parts[2])
		}
		v.System, v.Version, v.HasVersion = parts[1], n, true
		return v, nil
	}
	return v, fmt.Errorf("invalid versioned object id %q", s)
}
