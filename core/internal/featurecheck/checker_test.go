package featurecheck

import (
	"errors"
	"testing"

	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const systemID = "local.ehrbase.org"

func check(t *testing.T, text string) error {
	t.Helper()
	q, err := aql.Parse(text)
	require.NoError(t, err)
	return New(rm.Default(), systemID).EnsureQuerySupported(q)
}

func TestSupportedQueries(t *testing.T) {
	queries := []string{
		`SELECT o/data[at0002]/events[at0003] FROM EHR CONTAINS COMPOSITION c CONTAINS OBSERVATION o
			WHERE o/data[at0001]/events[at0006]/data[at0003]/items[at0004]/value/value > 140`,
		`SELECT c/uid/value, c/name/value
			FROM EHR e[ehr_id/value='8849182c-82ad-4088-a07f-48ead4180515'] CONTAINS COMPOSITION c
			WHERE c/uid/value = '8849182c-82ad-4088-a07f-48ead4180515::local.ehrbase.org::1'`,
		`SELECT c FROM EHR e CONTAINS FOLDER f CONTAINS COMPOSITION c`,
		`SELECT f/name/value FROM FOLDER f CONTAINS FOLDER g CONTAINS COMPOSITION c`,
		`SELECT e/ehr_id/value, COUNT(DISTINCT c/uid/value) FROM EHR e CONTAINS COMPOSITION c`,
		`SELECT v/commit_audit/time_committed/value
			FROM EHR e CONTAINS VERSION v[LATEST_VERSION] CONTAINS COMPOSITION c
			ORDER BY v/commit_audit/time_committed/value DESC LIMIT 10 OFFSET 10`,
		`SELECT c FROM COMPOSITION c CONTAINS (OBSERVATION o OR EVALUATION v)
			WHERE o/archetype_node_id LIKE 'openEHR-EHR-OBSERVATION.%'`,
		`SELECT MAX(o/data/events/time), AVG(o/data/events/data/items/value/magnitude) FROM OBSERVATION o`,
		`SELECT o/data/events/data/items/value/mappings FROM OBSERVATION o`,
		`SELECT c/name/value FROM COMPOSITION c WHERE c/name/value MATCHES {'a', 'b'} LIMIT 5`,
		`SELECT c FROM COMPOSITION c WHERE c/archetype_node_id = 'openEHR-EHR-COMPOSITION.report.v1'
			AND c/archetype_details/template_id/value != 'ips'`,
		`SELECT s FROM EHR_STATUS s CONTAINS ITEM_TREE t`,
		`SELECT 'x', c FROM COMPOSITION c`,
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			assert.NoError(t, check(t, q))
		})
	}
}

func TestRejectedQueries(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  error
		msg   string
	}{
		{
			name:  "like without archetype prefix",
			query: `SELECT c FROM COMPOSITION c WHERE c/archetype_node_id LIKE 'at0001'`,
			want:  errs.ErrUnsupportedFeature,
			msg:   "openEHR-EHR-",
		},
		{
			name:  "order by outside select",
			query: `SELECT c/name/value FROM COMPOSITION c ORDER BY c/context/start_time/value`,
			want:  errs.ErrUnsupportedFeature,
			msg:   "ORDER BY",
		},
		{
			name:  "folder contains action",
			query: `SELECT a FROM EHR e CONTAINS FOLDER f CONTAINS ACTION a`,
			want:  errs.ErrInvalidQuery,
			msg:   "FOLDER cannot contain ACTION",
		},
		{
			name:  "ehr status contains observation",
			query: `SELECT o FROM EHR_STATUS s CONTAINS OBSERVATION o`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "not contains",
			query: `SELECT c FROM COMPOSITION c NOT CONTAINS OBSERVATION o`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "all versions",
			query: `SELECT c FROM EHR e CONTAINS VERSION v[ALL_VERSIONS] CONTAINS COMPOSITION c`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "version of a non versioned type",
			query: `SELECT o FROM EHR e CONTAINS VERSION v CONTAINS OBSERVATION o`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "top level or",
			query: `SELECT c FROM (COMPOSITION c OR COMPOSITION d)`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "ambiguous containment",
			query: `SELECT l FROM LOCATABLE l`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "duplicate alias",
			query: `SELECT c/name/value AS x, c/uid/value AS x FROM COMPOSITION c`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "single row function",
			query: `SELECT LENGTH(c/name/value) FROM COMPOSITION c`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "exists",
			query: `SELECT c FROM COMPOSITION c WHERE EXISTS c/context`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "null operand",
			query: `SELECT c FROM COMPOSITION c WHERE c/name/value = NULL`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "unresolved parameter",
			query: `SELECT c FROM COMPOSITION c WHERE c/name/value = $name`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "path compared with path",
			query: `SELECT c FROM COMPOSITION c WHERE c/name/value = c/uid/value`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "malformed uid",
			query: `SELECT c FROM COMPOSITION c WHERE c/uid/value = 'nope'`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "foreign system id",
			query: `SELECT c FROM COMPOSITION c WHERE c/uid/value = '8849182c-82ad-4088-a07f-48ead4180515::other.org::1'`,
			want:  errs.ErrInvalidQuery,
			msg:   "other.org",
		},
		{
			name:  "ehr id with version",
			query: `SELECT c FROM EHR e[ehr_id/value='8849182c-82ad-4088-a07f-48ead4180515::local.ehrbase.org::1'] CONTAINS COMPOSITION c`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "archetype node id ordering operator",
			query: `SELECT c FROM COMPOSITION c WHERE c/archetype_node_id > 'openEHR-EHR-COMPOSITION.x.v1'`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "malformed archetype node id",
			query: `SELECT c FROM COMPOSITION c WHERE c/archetype_node_id = 'garbage'`,
			want:  errs.ErrInvalidQuery,
		},
		{
			name:  "like on uid",
			query: `SELECT c FROM COMPOSITION c WHERE c/uid/value LIKE 'a%'`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "sum of strings",
			query: `SELECT SUM(o/data/events/time/value) FROM OBSERVATION o`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "avg of data values",
			query: `SELECT AVG(o/data/events/data/items/value) FROM OBSERVATION o`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "offset without limit",
			query: `SELECT c FROM COMPOSITION c OFFSET 5`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "folder items",
			query: `SELECT f/items FROM FOLDER f`,
			want:  errs.ErrUnsupportedFeature,
			msg:   "FOLDER/items",
		},
		{
			name:  "whole ehr",
			query: `SELECT e FROM EHR e`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "multi-valued attribute inside path",
			query: `SELECT o/data/events/data/items/value/mappings/target/code_string FROM OBSERVATION o`,
			want:  errs.ErrUnsupportedFeature,
			msg:   "mappings",
		},
		{
			name:  "order by system id",
			query: `SELECT v/commit_audit/system_id FROM VERSION v CONTAINS COMPOSITION c ORDER BY v/commit_audit/system_id`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "path ending at intermediate",
			query: `SELECT a/instruction_details FROM ACTION a`,
			want:  errs.ErrUnsupportedFeature,
		},
		{
			name:  "committer condition",
			query: `SELECT c FROM VERSION v CONTAINS COMPOSITION c WHERE v/commit_audit/committer = 'x'`,
			want:  errs.ErrUnsupportedFeature,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := check(t, tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestOrderByAfterAddingToSelect(t *testing.T) {
	err := check(t, `SELECT c/name/value FROM COMPOSITION c ORDER BY c/context/start_time/value`)
	assert.True(t, errors.Is(err, errs.ErrUnsupportedFeature))

	err = check(t, `SELECT c/name/value, c/context/start_time/value FROM COMPOSITION c ORDER BY c/context/start_time/value`)
	assert.NoError(t, err)

	// ordering below a selected object is fine
	err = check(t, `SELECT c FROM COMPOSITION c ORDER BY c/context/start_time/value`)
	assert.NoError(t, err)
}

func TestCheckReturnsPathTypes(t *testing.T) {
	q, err := aql.Parse(`SELECT c/name/value FROM COMPOSITION c WHERE c/uid/value = '8849182c-82ad-4088-a07f-48ead4180515'`)
	require.NoError(t, err)

	qt, err := New(rm.Default(), systemID).Check(q)
	require.NoError(t, err)

	pt := qt.Of(q.WherePaths()[0])
	require.NotNil(t, pt.Extracted)
	assert.Equal(t, rm.ExtractedVOID, pt.Extracted.Kind)
}
