package rm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotNil(t, c)
	assert.Same(t, c, Default())

	ti, ok := c.Lookup("OBSERVATION")
	require.True(t, ok)
	assert.False(t, ti.Abstract)

	_, ok = c.Lookup("NOT_A_TYPE")
	assert.False(t, ok)
}

func TestDescendantsOf(t *testing.T) {
	c := Default()

	tests := []struct {
		typ  string
		want []string
	}{
		{"ITEM", []string{"CLUSTER", "ELEMENT"}},
		{"EVENT", []string{"INTERVAL_EVENT", "POINT_EVENT"}},
		{"DV_TEMPORAL", []string{"DV_DATE", "DV_DATE_TIME", "DV_TIME"}},
		{"DV_TEXT", []string{"DV_CODED_TEXT", "DV_TEXT"}},
		{"VERSION", []string{"ORIGINAL_VERSION"}},
		{"COMPOSITION", []string{"COMPOSITION"}},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DescendantsOf(tt.typ).Names())
		})
	}
}

func TestAttributesInherited(t *testing.T) {
	c := Default()

	ai, ok := c.Attribute("OBSERVATION", "name")
	require.True(t, ok)
	assert.Equal(t, []string{"DV_CODED_TEXT", "DV_TEXT"}, ai.Types.Names())

	ai, ok = c.Attribute("CLUSTER", "items")
	require.True(t, ok)
	assert.True(t, ai.Multiple)
	assert.Equal(t, []string{"CLUSTER", "ELEMENT"}, ai.Types.Names())

	// redeclared on LOCATABLE_REF
	ai, ok = c.Attribute("LOCATABLE_REF", "id")
	require.True(t, ok)
	assert.Equal(t, "UID_BASED_ID", ai.Declared)

	_, ok = c.Attribute("ELEMENT", "items")
	assert.False(t, ok)
}

// Every attribute resolves to the concrete descendants of its declared type.
func TestAttributeTypesAreConcrete(t *testing.T) {
	c := Default()

	for _, typ := range c.ConcreteTypes() {
		for name, ai := range c.AttributesOf(typ) {
			assert.Equal(t, c.DescendantsOf(ai.Declared), ai.Types, "%s.%s", typ, name)
			for _, n := range ai.Types.Names() {
				assert.False(t, c.IsAbstract(n), "%s.%s: %s", typ, name, n)
			}
		}
	}
}

func TestTypePredicates(t *testing.T) {
	c := Default()

	assert.True(t, c.IsDvOrdered("DV_QUANTITY"))
	assert.True(t, c.IsDvOrdered("DV_DATE_TIME"))
	assert.False(t, c.IsDvOrdered("DV_TEXT"))
	assert.True(t, c.IsPrimitive("String"))
	assert.False(t, c.IsPrimitive("DV_TEXT"))
	assert.True(t, c.IsLocatable("ELEMENT"))
	assert.False(t, c.IsLocatable("EVENT_CONTEXT"))
	assert.True(t, c.IsStructural("EVENT_CONTEXT"))
	assert.False(t, c.IsStructural("INSTRUCTION_DETAILS"))
	assert.False(t, c.IsStructural("DV_TEXT"))
}

func TestCanContain(t *testing.T) {
	c := Default()

	tests := []struct {
		parent, child string
		want          bool
	}{
		{"COMPOSITION", "OBSERVATION", true},
		{"COMPOSITION", "ELEMENT", true},
		{"SECTION", "SECTION", true},
		{"OBSERVATION", "POINT_EVENT", true},
		{"ACTION", "CLUSTER", true},
		{"EHR_STATUS", "CLUSTER", true},
		{"EHR_STATUS", "OBSERVATION", false},
		{"FOLDER", "FOLDER", true},
		{"FOLDER", "ACTION", false},
		{"FOLDER", "COMPOSITION", false},
		{"ELEMENT", "OBSERVATION", false},
		{"COMPOSITION", "EHR_STATUS", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.CanContain(tt.parent, tt.child), "%s contains %s", tt.parent, tt.child)
	}
}

func TestFeederAuditClosure(t *testing.T) {
	c := Default()

	st, ok := c.Structure("FEEDER_AUDIT")
	require.True(t, ok)
	assert.Contains(t, st.Parents, "COMPOSITION")
	assert.Contains(t, st.Parents, "ELEMENT")
	assert.NotContains(t, st.Parents, "EVENT_CONTEXT")

	// the closure makes item structures reachable from themselves
	assert.True(t, c.CanContain("ITEM_TREE", "ITEM_TREE"))
	assert.True(t, c.CanContain("ELEMENT", "FEEDER_AUDIT"))
}

func TestStructureRoots(t *testing.T) {
	c := Default()

	assert.Equal(t, RootComposition, c.StructureRootOf("OBSERVATION"))
	assert.Equal(t, RootEhrStatus, c.StructureRootOf("EHR_STATUS"))
	assert.Equal(t, RootAny, c.StructureRootOf("CLUSTER"))

	st, _ := c.Structure("EVENT_CONTEXT")
	assert.False(t, st.Entry())
	st, _ = c.Structure("ELEMENT")
	assert.True(t, st.Entry())
}

func TestFindExtractedColumn(t *testing.T) {
	ec, ok := FindExtractedColumn(NewTypeSet("COMPOSITION"), []string{"uid", "value"})
	require.True(t, ok)
	assert.Equal(t, ExtractedVOID, ec.Kind)

	_, ok = FindExtractedColumn(NewTypeSet("OBSERVATION"), []string{"uid", "value"})
	assert.False(t, ok)

	ec, ok = FindExtractedColumn(NewTypeSet("ORIGINAL_VERSION"), []string{"commit_audit", "time_committed", "value"})
	require.True(t, ok)
	assert.True(t, ec.VersionOnly)
	assert.Equal(t, "commit_audit/time_committed/value", ec.PathString())
}

func TestNewCatalogErrors(t *testing.T) {
	_, err := NewCatalog([]byte(`- {name: A, parents: [B]}`))
	assert.Error(t, err)

	_, err = NewCatalog([]byte(`- {name: A, bogus: true}`))
	assert.Error(t, err)

	_, err = NewCatalog([]byte("- {name: A, parents: [B]}\n- {name: B, parents: [A]}"))
	assert.Error(t, err)
}

func TestTypeSet(t *testing.T) {
	a := NewTypeSet("B", "A", "C", "A")
	b := NewTypeSet("C", "D")

	assert.Equal(t, []string{"A", "B", "C"}, a.Names())
	assert.Equal(t, []string{"C"}, a.Intersect(b).Names())
	assert.Equal(t, []string{"A", "B", "C", "D"}, a.Union(b).Names())
	assert.True(t, a.Contains("B"))
	assert.False(t, a.Contains("D"))
	assert.True(t, TypeSet{}.Empty())
	assert.True(t, a.Intersect(NewTypeSet("X")).Empty())

	s, ok := NewTypeSet("X").Single()
	assert.True(t, ok)
	assert.Equal(t, "X", s)
}
