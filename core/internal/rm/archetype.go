package rm

import (
	"regexp"
	"strings"
)

var (
	archetypeIDRe = regexp.MustCompile(
		`^([A-Za-z][A-Za-z0-9()_/%$#&]*)-([A-Za-z][A-Za-z0-9_]*)-([A-Za-z][A-Za-z0-9_]*)\.([A-Za-z][A-Za-z0-9_-]*)\.(v[0-9]+(?:\.[0-9]+){0,2}(?:-(?:rc|alpha|beta)(?:\.[0-9]+)?)?)$`)
	nodeIDRe = regexp.MustCompile(`^(?:at|id)[0-9]+(?:\.[0-9]+)*$`)
)

// ArchetypeID is a parsed openEHR archetype identifier such as
// openEHR-EHR-OBSERVATION.blood_pressure.v2.
type ArchetypeID struct {
	Originator string
	RMName     string
	Type       string
	Concept    string
	Version    string
}

// ParseArchetypeID parses s as an archetype id.
func ParseArchetypeID(s string) (ArchetypeID, bool) {
	m := archetypeIDRe.FindStringSubmatch(s)
	if m == nil {
		return ArchetypeID{}, false
	}
	return ArchetypeID{
		Originator: m[1],
		RMName:     m[2],
		Type:       m[3],
		Concept:    m[4],
		Version:    m[5],
	}, true
}

// StoredConcept is the value of entity_concept for an archetype root:
// the concept and version, led by a dot.
func (a ArchetypeID) StoredConcept() string {
	return "." + a.Concept + "." + a.Version
}

func (a ArchetypeID) String() string {
	return a.Originator + "-" + a.RMName + "-" + a.Type + a.StoredConcept()
}

// IsNodeID reports whether s is a local archetype node code (at0001, id5).
func IsNodeID(s string) bool {
	return nodeIDRe.MatchString(s)
}

// IsArchetypeID reports whether s is an archetype id.
func IsArchetypeID(s string) bool {
	_, ok := ParseArchetypeID(s)
	return ok
}

// ArchetypePrefixType returns TYPE for a LIKE pattern starting with
// openEHR-EHR-TYPE. and the remainder of the pattern after the dot.
func ArchetypePrefixType(pattern string) (typ, rest string, ok bool) {
	const prefix = "openEHR-EHR-"
	if !strings.HasPrefix(pattern, prefix) {
		return "", "", false
	}
	p := pattern[len(prefix):]
	i := strings.IndexByte(p, '.')
	if i <= 0 {
		return "", "", false
	}
	typ = p[:i]
	for _, r := range typ {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "", "", false
		}
	}
	return typ, p[i:], true
}
