package rm

import (
	"fmt"
	"sort"
)

// StructureRoot names the versioned object a structural type is stored under.
type StructureRoot int

const (
	RootAny StructureRoot = iota
	RootComposition
	RootEhrStatus
	RootFolder
)

func (r StructureRoot) String() string {
	switch r {
	case RootComposition:
		return "COMPOSITION"
	case RootEhrStatus:
		return "EHR_STATUS"
	case RootFolder:
		return "FOLDER"
	}
	return "ANY"
}

// StructureType describes an RM type that takes part in the stored
// hierarchy. Rows are written for every instance unless Intermediate is set;
// intermediate types live in the JSON of their parent row but may own
// structural children.
type StructureType struct {
	Type         string
	Root         StructureRoot
	Locatable    bool
	Intermediate bool

	// Parents lists the structural types an instance can be nested in.
	Parents []string
}

// Entry reports whether the type can be used as a containment target.
func (st StructureType) Entry() bool {
	return st.Locatable && !st.Intermediate
}

var (
	contentParents  = []string{"COMPOSITION", "SECTION"}
	itemStructHosts = []string{
		"EVENT_CONTEXT", "OBSERVATION", "EVALUATION", "INSTRUCTION", "ACTION",
		"ADMIN_ENTRY", "ACTIVITY", "HISTORY", "POINT_EVENT", "INTERVAL_EVENT",
		"EHR_STATUS", "FOLDER", "INSTRUCTION_DETAILS", "FEEDER_AUDIT_DETAILS",
	}
	elementHosts = []string{"ITEM_TREE", "ITEM_LIST", "ITEM_SINGLE", "CLUSTER"}
)

// structureTable is acyclic. FEEDER_AUDIT is the one exception: every
// locatable structure can carry one and its details own item structures,
// so its parents are added by closeFeederAudit once all types exist.
var structureTable = []StructureType{
	{Type: "COMPOSITION", Root: RootComposition, Locatable: true},
	{Type: "EHR_STATUS", Root: RootEhrStatus, Locatable: true},
	{Type: "FOLDER", Root: RootFolder, Locatable: true, Parents: []string{"FOLDER"}},

	{Type: "EVENT_CONTEXT", Root: RootComposition, Parents: []string{"COMPOSITION"}},
	{Type: "SECTION", Root: RootComposition, Locatable: true, Parents: contentParents},
	{Type: "OBSERVATION", Root: RootComposition, Locatable: true, Parents: contentParents},
	{Type: "EVALUATION", Root: RootComposition, Locatable: true, Parents: contentParents},
	{Type: "INSTRUCTION", Root: RootComposition, Locatable: true, Parents: contentParents},
	{Type: "ACTION", Root: RootComposition, Locatable: true, Parents: contentParents},
	{Type: "ADMIN_ENTRY", Root: RootComposition, Locatable: true, Parents: contentParents},
	{Type: "GENERIC_ENTRY", Root: RootComposition, Locatable: true, Parents: contentParents},
	{Type: "ACTIVITY", Root: RootComposition, Locatable: true, Parents: []string{"INSTRUCTION"}},
	{Type: "INSTRUCTION_DETAILS", Root: RootComposition, Intermediate: true, Parents: []string{"ACTION"}},
	{Type: "HISTORY", Root: RootComposition, Locatable: true, Parents: []string{"OBSERVATION"}},
	{Type: "POINT_EVENT", Root: RootComposition, Locatable: true, Parents: []string{"HISTORY"}},
	{Type: "INTERVAL_EVENT", Root: RootComposition, Locatable: true, Parents: []string{"HISTORY"}},

	{Type: "ITEM_TREE", Locatable: true, Parents: append(itemStructHosts, "GENERIC_ENTRY")},
	{Type: "ITEM_LIST", Locatable: true, Parents: itemStructHosts},
	{Type: "ITEM_SINGLE", Locatable: true, Parents: itemStructHosts},
	{Type: "ITEM_TABLE", Locatable: true, Parents: itemStructHosts},
	{Type: "CLUSTER", Locatable: true, Parents: []string{"ITEM_TREE", "ITEM_TABLE", "CLUSTER"}},
	{Type: "ELEMENT", Locatable: true, Parents: elementHosts},

	{Type: "FEEDER_AUDIT"},
	{Type: "FEEDER_AUDIT_DETAILS", Intermediate: true, Parents: []string{"FEEDER_AUDIT"}},
}

func (c *Catalog) buildStructures() error {
	c.structures = make(map[string]StructureType, len(structureTable))
	for _, st := range structureTable {
		if _, ok := c.types[st.Type]; !ok {
			return fmt.Errorf("rm schema: structural type %s is not declared", st.Type)
		}
		st.Parents = append([]string(nil), st.Parents...)
		c.structures[st.Type] = st
	}
	for _, st := range c.structures {
		for _, p := range st.Parents {
			if _, ok := c.structures[p]; !ok {
				return fmt.Errorf("rm schema: %s: unknown structural parent %s", st.Type, p)
			}
		}
	}

	c.closeFeederAudit()
	c.buildReach()
	return nil
}

func (c *Catalog) closeFeederAudit() {
	fa := c.structures["FEEDER_AUDIT"]
	for _, t := range sortedKeys(c.structures) {
		if c.structures[t].Locatable {
			fa.Parents = append(fa.Parents, t)
		}
	}
	c.structures["FEEDER_AUDIT"] = fa
}

// buildReach computes, for every structural type, the structural types that
// can occur anywhere below it within the same stored object.
func (c *Catalog) buildReach() {
	children := make(map[string][]string)
	for _, t := range sortedKeys(c.structures) {
		for _, p := range c.structures[t].Parents {
			children[p] = append(children[p], t)
		}
	}

	c.reach = make(map[string]TypeSet, len(c.structures))
	for t := range c.structures {
		seen := map[string]struct{}{}
		queue := append([]string(nil), children[t]...)
		for len(queue) != 0 {
			n := queue[0]
			queue = queue[1:]
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			queue = append(queue, children[n]...)
		}
		names := make([]string, 0, len(seen))
		for n := range seen {
			names = append(names, n)
		}
		c.reach[t] = NewTypeSet(names...)
	}
}

// Structure returns the structural description of name.
func (c *Catalog) Structure(name string) (StructureType, bool) {
	st, ok := c.structures[name]
	return st, ok
}

// StructureTypes returns the concrete structural row types among set.
func (c *Catalog) StructureTypes(set TypeSet) TypeSet {
	return set.Filter(c.IsStructural)
}

// CanContain reports whether a row of type child can be stored below a row
// of type parent within one versioned object.
func (c *Catalog) CanContain(parent, child string) bool {
	return c.reach[parent].Contains(child)
}

// StructureRootOf returns the root of the stored object name belongs to;
// RootAny for shared types such as item structures.
func (c *Catalog) StructureRootOf(name string) StructureRoot {
	return c.structures[name].Root
}

func sortedKeys(m map[string]StructureType) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
