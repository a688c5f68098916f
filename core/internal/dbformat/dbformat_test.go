package dbformat

import (
	"encoding/json"
	"testing"

	"github.com/ehrbase/aqlengine/core/internal/rm"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasesAreTotal(t *testing.T) {
	c := rm.Default()

	for _, typ := range c.ConcreteTypes() {
		if c.IsPrimitive(typ) {
			continue
		}
		a, err := TypeAlias(typ)
		require.NoError(t, err, typ)
		back, err := TypeFromAlias(a)
		require.NoError(t, err)
		assert.Equal(t, typ, back)
	}

	for _, attr := range c.AttributeNames() {
		a, err := AttributeAlias(attr)
		require.NoError(t, err, attr)
		assert.NotContains(t, []string{TypeKey, MagnitudeKey}, a)
		back, err := AttributeFromAlias(a)
		require.NoError(t, err)
		assert.Equal(t, attr, back)
	}
}

func TestUnknownAliases(t *testing.T) {
	_, err := AttributeAlias("no_such_attribute")
	assert.Error(t, err)
	_, err = AttributeFromAlias("zz")
	assert.Error(t, err)
	_, err = TypeAlias("NO_SUCH_TYPE")
	assert.Error(t, err)
	_, err = TypeFromAlias("ZZ")
	assert.Error(t, err)

	_, err = ToDB([]byte(`{"_type": "DV_TEXT", "bogus": 1}`))
	assert.Error(t, err)
	_, err = FromDB([]byte(`{"T": "x", "zz": 1}`))
	assert.Error(t, err)
}

func TestToDB(t *testing.T) {
	in := `{
		"_type": "ELEMENT",
		"archetype_node_id": "at0004",
		"name": {"_type": "DV_TEXT", "value": "Systolic"},
		"value": {"_type": "DV_QUANTITY", "magnitude": 120, "units": "mm[Hg]"}
	}`

	out, err := ToDB([]byte(in))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))

	want := map[string]interface{}{
		"T":  "E",
		"an": "at0004",
		"n":  map[string]interface{}{"T": "x", "v": "Systolic"},
		"v":  map[string]interface{}{"T": "q", "m": 120.0, "un": "mm[Hg]", "M": 120.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToDB mismatch (-want +got):\n%s", diff)
	}

	back, err := FromDB(out)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(back))
}

func TestMagnitude(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"quantity", `{"_type": "DV_QUANTITY", "magnitude": 7.5}`, 7.5},
		{"count", `{"_type": "DV_COUNT", "magnitude": 3}`, 3},
		{"ordinal", `{"_type": "DV_ORDINAL", "value": 2}`, 2},
		{"scale", `{"_type": "DV_SCALE", "value": 1.5}`, 1.5},
		{"proportion", `{"_type": "DV_PROPORTION", "numerator": 1, "denominator": 4}`, 0.25},
		{"date_time", `{"_type": "DV_DATE_TIME", "value": "1970-01-01T00:00:10Z"}`, 10},
		{"date_time_offset", `{"_type": "DV_DATE_TIME", "value": "1970-01-01T01:00:00+01:00"}`, 0},
		{"date", `{"_type": "DV_DATE", "value": "1970-01-02"}`, 86400},
		{"time", `{"_type": "DV_TIME", "value": "01:00:00+01:00"}`, 0},
		{"time_local", `{"_type": "DV_TIME", "value": "00:01:30"}`, 90},
		{"duration_year", `{"_type": "DV_DURATION", "value": "P1Y"}`, 31557600},
		{"duration_month", `{"_type": "DV_DURATION", "value": "P1M"}`, 2592000},
		{"duration_time", `{"_type": "DV_DURATION", "value": "PT1H30M"}`, 5400},
		{"duration_negative", `{"_type": "DV_DURATION", "value": "-P1D"}`, -86400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ToDB([]byte(tt.in))
			require.NoError(t, err)

			var got map[string]interface{}
			require.NoError(t, json.Unmarshal(out, &got))
			assert.InDelta(t, tt.want, got[MagnitudeKey], 1e-6)
		})
	}
}

func TestNoMagnitude(t *testing.T) {
	out, err := ToDB([]byte(`{"_type": "DV_TEXT", "value": "x"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"M"`)

	out, err = ToDB([]byte(`{"_type": "DV_PROPORTION", "numerator": 1, "denominator": 0}`))
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"M"`)

	_, err = ToDB([]byte(`{"_type": "DV_DURATION", "value": "PT"}`))
	assert.Error(t, err)
}

func TestReconstruct(t *testing.T) {
	// OBSERVATION > HISTORY > 2 x POINT_EVENT > ITEM_TREE
	rows := []Row{
		{Num: 3, ParentNum: 1, Attribute: "ev", Index: 1, Data: json.RawMessage(`{"T": "PE", "an": "at0006"}`)},
		{Num: 0, ParentNum: -1, Attribute: "c", Index: 0, Data: json.RawMessage(`{"T": "OB", "an": "openEHR-EHR-OBSERVATION.bp.v2"}`)},
		{Num: 1, ParentNum: 0, Attribute: "d", Index: -1, Data: json.RawMessage(`{"T": "HI", "an": "at0001"}`)},
		{Num: 2, ParentNum: 1, Attribute: "ev", Index: 0, Data: json.RawMessage(`{"T": "PE", "an": "at0006", "tm": {"T": "dt", "v": "2020-01-01T00:00:00Z", "M": 1577836800}}`)},
		{Num: 4, ParentNum: 2, Attribute: "d", Index: -1, Data: json.RawMessage(`{"T": "TR", "an": "at0003"}`)},
	}

	got, err := Reconstruct(rows)
	require.NoError(t, err)

	want := map[string]interface{}{
		"_type":             "OBSERVATION",
		"archetype_node_id": "openEHR-EHR-OBSERVATION.bp.v2",
		"data": map[string]interface{}{
			"_type":             "HISTORY",
			"archetype_node_id": "at0001",
			"events": []interface{}{
				map[string]interface{}{
					"_type":             "POINT_EVENT",
					"archetype_node_id": "at0006",
					"time": map[string]interface{}{
						"_type": "DV_DATE_TIME",
						"value": "2020-01-01T00:00:00Z",
					},
					"data": map[string]interface{}{
						"_type":             "ITEM_TREE",
						"archetype_node_id": "at0003",
					},
				},
				map[string]interface{}{
					"_type":             "POINT_EVENT",
					"archetype_node_id": "at0006",
				},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconstruct mismatch (-want +got):\n%s", diff)
	}
}

func TestReconstructIntermediate(t *testing.T) {
	// ACTION with instruction_details/wf_details held inline
	agg := `[
		[0, null, "c", 0, {"T": "AN", "an": "openEHR-EHR-ACTION.med.v1", "ind": {"T": "ID", "aci": "at0001"}}],
		[1, 0, "ind/wd", -1, {"T": "TR", "an": "at0010"}]
	]`

	out, err := ReconstructJSON([]byte(agg))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"_type": "ACTION",
		"archetype_node_id": "openEHR-EHR-ACTION.med.v1",
		"instruction_details": {
			"_type": "INSTRUCTION_DETAILS",
			"activity_id": "at0001",
			"wf_details": {"_type": "ITEM_TREE", "archetype_node_id": "at0010"}
		}
	}`, string(out))
}

func TestReconstructErrors(t *testing.T) {
	_, err := Reconstruct(nil)
	assert.Error(t, err)

	_, err = Reconstruct([]Row{
		{Num: 0, ParentNum: -1, Index: -1, Data: json.RawMessage(`{"T": "CO"}`)},
		{Num: 2, ParentNum: 1, Attribute: "c", Index: 0, Data: json.RawMessage(`{"T": "OB"}`)},
	})
	assert.Error(t, err)

	_, err = ReconstructJSON([]byte(`[[0, null, "c"]]`))
	assert.Error(t, err)
}

func TestOperandMagnitude(t *testing.T) {
	tests := []struct {
		typ  string
		val  interface{}
		want float64
		ok   bool
	}{
		{"DV_QUANTITY", int64(140), 140, true},
		{"DV_ORDINAL", 2.5, 2.5, true},
		{"DV_DATE_TIME", "1970-01-02", 86400, true},
		{"DV_DATE", "1970-01-01T00:01:00Z", 60, true},
		{"DV_TIME", "01:00:00", 3600, true},
		{"DV_DURATION", "P1D", 86400, true},
		{"DV_DURATION", "one day", 0, false},
		{"DV_QUANTITY", "140", 0, false},
		{"DV_TEXT", "x", 0, false},
		{"DV_BOOLEAN", true, 0, false},
	}
	for _, tt := range tests {
		got, ok := OperandMagnitude(tt.typ, tt.val)
		assert.Equal(t, tt.ok, ok, "%s %v", tt.typ, tt.val)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "%s %v", tt.typ, tt.val)
		}
	}
}
