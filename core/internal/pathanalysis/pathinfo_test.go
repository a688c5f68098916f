package pathanalysis

import (
	"testing"

	"github.com/ehrbase/aqlengine/core/internal/rm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedNames(pi *PathInfo) []string {
	var out []string
	for _, n := range pi.Joined() {
		ni := pi.Info(n)
		out = append(out, n.Attribute.Attribute+"["+n.NodeID+"]:"+ni.Join.String())
	}
	return out
}

func TestPathInfoSkipsPinnedChain(t *testing.T) {
	q, co := mustCohesion(t, `SELECT o/data[at0001]/events[at0002]/data[at0003]/items[at0004]/value
		FROM OBSERVATION o`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	assert.Equal(t, []string{"items[at0004]:NODE_ID_ANCHOR"}, joinedNames(pi))

	items := co.DataNode(q.SelectPaths()[0])
	ni := pi.Info(items)
	assert.Equal(t, JoinModeData, ni.Mode)
	assert.Same(t, co.Roots[0], ni.Anchor)
	assert.Equal(t, []string{"items"}, ni.AttributePath)

	for _, n := range co.Chain(q.SelectPaths()[0])[1:4] {
		assert.True(t, pi.Info(n).Skippable, n.Attribute.Attribute)
		assert.Equal(t, JoinSkipped, pi.Info(n).Join)
	}
}

func TestPathInfoBaseNodeStopsSkipping(t *testing.T) {
	_, co := mustCohesion(t, `SELECT o/data[at0001]/events[at0002]/data/items[at0004]/value
		FROM OBSERVATION o`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	assert.Equal(t, []string{
		"events[at0002]:NODE_ID_ANCHOR",
		"data[]:PARENT_CHILD",
		"items[at0004]:PARENT_CHILD",
	}, joinedNames(pi))

	data := co.Roots[0].Children[0]
	assert.True(t, pi.Info(data).Skippable)
	assert.Equal(t, JoinModeInternalSingleChild, pi.Info(data).Mode)
}

func TestPathInfoArchetypeAnchor(t *testing.T) {
	_, co := mustCohesion(t, `SELECT c/content[openEHR-EHR-SECTION.s.v1]/items[openEHR-EHR-OBSERVATION.o.v1]/data
		FROM COMPOSITION c`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	assert.Equal(t, []string{"items[openEHR-EHR-OBSERVATION.o.v1]:ARCHETYPE_ANCHOR", "data[]:PARENT_CHILD"}, joinedNames(pi))
}

func TestPathInfoArchetypeNeedsArchetypeChild(t *testing.T) {
	_, co := mustCohesion(t, `SELECT c/content[openEHR-EHR-OBSERVATION.o.v1]/data[at0001]/origin
		FROM COMPOSITION c`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	assert.Equal(t, []string{
		"content[openEHR-EHR-OBSERVATION.o.v1]:PARENT_CHILD",
		"data[at0001]:PARENT_CHILD",
	}, joinedNames(pi))
}

func TestPathInfoKeepsArchetypeAboveNodeID(t *testing.T) {
	_, co := mustCohesion(t, `SELECT
			c/content[openEHR-EHR-SECTION.s.v1]/items[at0005]/name/value,
			c/content[openEHR-EHR-SECTION.s.v1]/items[openEHR-EHR-OBSERVATION.o.v1]/name/value
		FROM COMPOSITION c`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	section := co.Roots[0].Children[0]
	assert.False(t, pi.Info(section).Skippable)
	assert.Equal(t, []string{
		"content[openEHR-EHR-SECTION.s.v1]:PARENT_CHILD",
		"items[at0005]:PARENT_CHILD",
		"items[openEHR-EHR-OBSERVATION.o.v1]:PARENT_CHILD",
	}, joinedNames(pi))
}

func TestPathInfoKeepsNodeIDAboveArchetype(t *testing.T) {
	_, co := mustCohesion(t, `SELECT c/content[openEHR-EHR-SECTION.s.v1]/items[at0001]/items[openEHR-EHR-OBSERVATION.o.v1]/data
		FROM COMPOSITION c`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	assert.Equal(t, []string{
		"content[openEHR-EHR-SECTION.s.v1]:PARENT_CHILD",
		"items[at0001]:PARENT_CHILD",
		"items[openEHR-EHR-OBSERVATION.o.v1]:PARENT_CHILD",
		"data[]:PARENT_CHILD",
	}, joinedNames(pi))
}

func TestPathInfoForkBelowMultiple(t *testing.T) {
	q, co := mustCohesion(t, `SELECT
			o/data[at0001]/events[at0002]/data[at0003]/items[at0004]/value,
			o/data[at0001]/events[at0002]/data[at0003]/items[at0005]/value
		FROM OBSERVATION o`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	paths := q.SelectPaths()
	first := co.DataNode(paths[0])
	second := co.DataNode(paths[1])
	fork := first.Parent

	assert.Equal(t, JoinModeInternalFork, pi.Info(fork).Mode)
	assert.True(t, pi.Info(fork).Skippable)

	assert.False(t, pi.Info(first).SameParentAsSiblings)
	require.True(t, pi.Info(second).SameParentAsSiblings)
	assert.Same(t, first, pi.Info(second).FirstSibling)
	assert.Equal(t, JoinNodeIDAnchor, pi.Info(second).Join)
}

func TestPathInfoFilteredNodeIsJoined(t *testing.T) {
	_, co := mustCohesion(t, `SELECT o/data[at0001]/events[at0002 and time/value > '2020-01-01']/data[at0003]/items[at0004]/value
		FROM OBSERVATION o`)
	pi := NewPathInfo(rm.Default(), co.Roots[0])

	assert.Equal(t, []string{
		"events[at0002]:NODE_ID_ANCHOR",
		"items[at0004]:NODE_ID_ANCHOR",
	}, joinedNames(pi))
}
