package pathanalysis

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCohesion(t *testing.T, text string) (*aql.Query, *Cohesion) {
	t.Helper()
	q, qt := mustAnalyze(t, text)
	co, err := AnalyzeCohesion(rm.Default(), q, qt)
	require.NoError(t, err)
	return q, co
}

func dumpTree(n *CohesionNode) string {
	var sb strings.Builder
	var walk func(n *CohesionNode, indent string)
	walk = func(n *CohesionNode, indent string) {
		if n.IsRoot {
			sb.WriteString(n.Containment.Identifier)
		} else {
			fmt.Fprintf(&sb, "%s%s%s %s", indent, n.Attribute.Attribute,
				aql.RenderPredicates(n.Attribute.Predicates), n.Kind)
			if n.HasExtraFilters() {
				sb.WriteString(" +filters")
			}
		}
		sb.WriteString("\n")
		for _, c := range n.Children {
			walk(c, indent+"  ")
		}
	}
	walk(n, "")
	return sb.String()
}

func TestCohesionTree(t *testing.T) {
	_, co := mustCohesion(t, `SELECT
			o/data[at0001]/events[at0002]/data/items[at0005]/value,
			o/data[at0001]/events[at0002]/data/items[at0004]/value,
			o/data[at0001]/events[at0002]/time/value
		FROM OBSERVATION o`)

	require.Len(t, co.Roots, 1)
	want := `o
  data[at0001] NODE
    events[at0002] NODE
      data BASE
        items[at0004] NODE
        items[at0005] NODE
`
	assert.Equal(t, want, dumpTree(co.Roots[0]))

	events := co.Roots[0].Children[0].Children[0]
	assert.Len(t, events.PathsEndingHere, 1)
	assert.True(t, events.Multiple)
	assert.Equal(t, []string{"INTERVAL_EVENT", "POINT_EVENT"}, events.Types.Names())
	assert.Equal(t, []string{"data", "events"}, events.AttributePath())
}

func TestCohesionIsOrderIndependent(t *testing.T) {
	paths := []string{
		`o/data[at0001]/events[at0002]/data/items[at0004]/value`,
		`o/data[at0001]/events[at0003]/data/items[at0004]/value`,
		`o/data[at0001]/events[at0002]/data/items[at0005]/value/magnitude`,
		`o/protocol/items[at0010]/value`,
	}

	var first string
	for i := range paths {
		rotated := append(append([]string{}, paths[i:]...), paths[:i]...)
		_, co := mustCohesion(t, `SELECT `+strings.Join(rotated, ", ")+` FROM OBSERVATION o`)
		got := dumpTree(co.Roots[0])
		if i == 0 {
			first = got
			continue
		}
		// attributes keep their first appearance; compare the sorted lines
		assert.ElementsMatch(t, strings.Split(first, "\n"), strings.Split(got, "\n"))
	}
}

func TestCohesionKindMerge(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{
			name:  "base absorbs node ids",
			paths: []string{`o/data[at0001]/origin`, `o/data/events`},
			want:  "o\n  data BASE +filters\n    events BASE\n",
		},
		{
			name:  "names combine with node ids",
			paths: []string{`o/data[at0001, 'History']/origin`, `o/data[at0001, 'History']/events`},
			want:  "o\n  data[at0001, 'History'] NODE\n    events BASE\n",
		},
		{
			name:  "a missing name keeps the name as filter",
			paths: []string{`o/data[at0001, 'History']/origin`, `o/data[at0001]/events`},
			want:  "o\n  data[at0001] NODE +filters\n    events BASE\n",
		},
		{
			name:  "name and node id mix to base",
			paths: []string{`o/data[name/value='History']/origin`, `o/data[at0001]/events`},
			want:  "o\n  data BASE +filters\n    events BASE\n",
		},
		{
			name:  "names only",
			paths: []string{`o/data[name/value='a']/origin`, `o/data[name/value='b']/origin`},
			want:  "o\n  data[name/value='a'] NAME\n  data[name/value='b'] NAME\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, co := mustCohesion(t, `SELECT `+strings.Join(tt.paths, ", ")+` FROM OBSERVATION o`)
			assert.Equal(t, tt.want, dumpTree(co.Roots[0]))
		})
	}
}

func TestCohesionMixedNodeIDs(t *testing.T) {
	_, co := mustCohesion(t, `SELECT
			c/content[openEHR-EHR-SECTION.s.v1]/items[at0005]/name/value,
			c/content[openEHR-EHR-SECTION.s.v1]/items[openEHR-EHR-OBSERVATION.o.v1]/name/value
		FROM COMPOSITION c`)

	want := `c
  content[openEHR-EHR-SECTION.s.v1] ARCHETYPE
    items[at0005] NODE
    items[openEHR-EHR-OBSERVATION.o.v1] ARCHETYPE
`
	assert.Equal(t, want, dumpTree(co.Roots[0]))
}

func TestCohesionWholeObject(t *testing.T) {
	q, co := mustCohesion(t, `SELECT o, o/data[at0001]/origin FROM OBSERVATION o`)

	paths := q.SelectPaths()
	root := co.Roots[0]
	assert.Same(t, root, co.DataNode(paths[0]))
	assert.Len(t, co.Chain(paths[0]), 1)
	assert.Contains(t, root.PathsEndingHere, paths[0])
	assert.Len(t, root.Children, 1)
}

func TestCohesionResidualFilters(t *testing.T) {
	q, co := mustCohesion(t, `SELECT o/data[at0001]/events[at0002 and time/value > '2020-01-01']/time,
		o/data[at0001]/events[at0002]/data FROM OBSERVATION o`)

	paths := q.SelectPaths()
	events := co.Chain(paths[0])[2]
	assert.Same(t, events, co.Chain(paths[1])[2])
	assert.Equal(t, IdentityNode, events.Kind)
	assert.Equal(t, "[time/value>'2020-01-01']", aql.RenderPredicates(events.FiltersOf(paths[0])))
	assert.Nil(t, events.FiltersOf(paths[1]))

	assert.Same(t, events, co.DataNode(paths[0]))
	assert.Same(t, events.Children[0], co.DataNode(paths[1]))
}

func TestCohesionSharesEqualPaths(t *testing.T) {
	q, co := mustCohesion(t, `SELECT o/data[at0001]/origin/value FROM OBSERVATION o
		WHERE o/data[at0001]/origin/value > '2020-01-01'
		ORDER BY o/data[at0001]/origin/value`)

	all := q.AllPaths()
	require.Len(t, all, 3)
	n := co.DataNode(all[0])
	assert.Same(t, n, co.DataNode(all[1]))
	assert.Same(t, n, co.DataNode(all[2]))
	assert.Len(t, n.PathsEndingHere, 1)
}

func TestCohesionPredicateErrors(t *testing.T) {
	tests := []struct {
		query string
		want  error
	}{
		{`SELECT o/data/events/time[value = 'x'] FROM OBSERVATION o`, errs.ErrUnsupportedFeature},
		{`SELECT o/data[events/time/value = 'x'] FROM OBSERVATION o`, errs.ErrUnsupportedFeature},
		{`SELECT o/data[archetype_node_id = $x]/origin FROM OBSERVATION o`, errs.ErrInvalidQuery},
		{`SELECT o/data[archetype_node_id > 'at0001']/origin FROM OBSERVATION o`, errs.ErrUnsupportedFeature},
		{`SELECT o/data[archetype_node_id = 'nonsense']/origin FROM OBSERVATION o`, errs.ErrInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, qt := mustAnalyze(t, tt.query)
			_, err := AnalyzeCohesion(rm.Default(), q, qt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}
