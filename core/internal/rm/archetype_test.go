package rm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArchetypeID(t *testing.T) {
	aid, ok := ParseArchetypeID("openEHR-EHR-OBSERVATION.blood_pressure.v2")
	require.True(t, ok)
	assert.Equal(t, "OBSERVATION", aid.Type)
	assert.Equal(t, "blood_pressure", aid.Concept)
	assert.Equal(t, ".blood_pressure.v2", aid.StoredConcept())
	assert.Equal(t, "openEHR-EHR-OBSERVATION.blood_pressure.v2", aid.String())

	aid, ok = ParseArchetypeID("openEHR-EHR-CLUSTER.device-details.v1.0.2")
	require.True(t, ok)
	assert.Equal(t, "v1.0.2", aid.Version)

	for _, s := range []string{"at0001", "openEHR-EHR-OBSERVATION", "openEHR-EHR-OBSERVATION.bp", ""} {
		_, ok := ParseArchetypeID(s)
		assert.False(t, ok, s)
	}
}

func TestIsNodeID(t *testing.T) {
	assert.True(t, IsNodeID("at0001"))
	assert.True(t, IsNodeID("at0001.1"))
	assert.True(t, IsNodeID("id5"))
	assert.False(t, IsNodeID("at"))
	assert.False(t, IsNodeID("xx0001"))
	assert.False(t, IsNodeID("openEHR-EHR-OBSERVATION.bp.v1"))
}

func TestArchetypePrefixType(t *testing.T) {
	tests := []struct {
		pattern string
		typ     string
		rest    string
		ok      bool
	}{
		{"openEHR-EHR-OBSERVATION.%", "OBSERVATION", ".%", true},
		{"openEHR-EHR-CLUSTER.device.v1", "CLUSTER", ".device.v1", true},
		{"at0001", "", "", false},
		{"openEHR-EHR-%", "", "", false},
		{"openEHR-EHR-.x", "", "", false},
		{"openEHR-EHR-observation.x", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			typ, rest, ok := ArchetypePrefixType(tt.pattern)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestParseVersionedObjectID(t *testing.T) {
	v, err := ParseVersionedObjectID("8849182c-82ad-4088-a07f-48ead4180515::local.ehrbase.org::3")
	require.NoError(t, err)
	assert.True(t, v.HasVersion)
	assert.Equal(t, "local.ehrbase.org", v.System)
	assert.Equal(t, 3, v.Version)
	assert.Equal(t, "8849182c-82ad-4088-a07f-48ead4180515::local.ehrbase.org::3", v.String())

	v, err = ParseVersionedObjectID("8849182c-82ad-4088-a07f-48ead4180515")
	require.NoError(t, err)
	assert.False(t, v.HasVersion)

	v, err = ParseVersionedObjectID("8849182c-82ad-4088-a07f-48ead4180515::::1")
	require.NoError(t, err)
	assert.Equal(t, "", v.System)

	for _, s := range []string{
		"nope",
		"8849182c82ad4088a07f48ead4180515",
		"8849182c-82ad-4088-a07f-48ead4180515::sys",
		"8849182c-82ad-4088-a07f-48ead4180515::sys::0",
		"8849182c-82ad-4088-a07f-48ead4180515::sys::x",
	} {
		_, err := ParseVersionedObjectID(s)
		assert.Error(t, err, s)
	}
}
