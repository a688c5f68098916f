package aql

// IsArchetypeNodeID reports whether the predicate addresses archetype_node_id.
func (cp ComparisonPredicate) IsArchetypeNodeID() bool {
	return cp.Path.Len() == 1 && cp.Path.Nodes[0].Attribute == ArchetypeNodeID &&
		len(cp.Path.Nodes[0].Predicates) == 0
}

// IsNameValue reports whether the predicate addresses name/value.
func (cp ComparisonPredicate) IsNameValue() bool {
	return cp.Path.Len() == 2 &&
		cp.Path.Nodes[0].Attribute == "name" && len(cp.Path.Nodes[0].Predicates) == 0 &&
		cp.Path.Nodes[1].Attribute == "value" && len(cp.Path.Nodes[1].Predicates) == 0
}

// StringValue returns the predicate value when it is a string literal.
func (cp ComparisonPredicate) StringValue() (string, bool) {
	if p, ok := cp.Value.(*Primitive); ok {
		return p.Str()
	}
	return "", false
}

// ArchetypeNodeIDPredicate returns a predicate archetype_node_id = v.
func ArchetypeNodeIDPredicate(v string) ComparisonPredicate {
	return ComparisonPredicate{
		Path:  &ObjectPath{Nodes: []PathNode{{Attribute: ArchetypeNodeID}}},
		Op:    PredEQ,
		Value: String(v),
	}
}

// NameValuePredicate returns a predicate name/value = v.
func NameValuePredicate(v string) ComparisonPredicate {
	return ComparisonPredicate{
		Path:  &ObjectPath{Nodes: []PathNode{{Attribute: "name"}, {Attribute: "value"}}},
		Op:    PredEQ,
		Value: String(v),
	}
}

// PathStartsWith reports whether prefix addresses the same root as p and its
// nodes are a prefix of p's nodes, predicates included.
func PathStartsWith(p, prefix *IdentifiedPath) bool {
	if p == nil || prefix == nil {
		return false
	}
	if p.Root != prefix.Root {
		return false
	}
	if !PredicatesEqual(p.RootPredicate, prefix.RootPredicate) {
		return false
	}
	if prefix.Path.Len() > p.Path.Len() {
		return false
	}
	for i := 0; i < prefix.Path.Len(); i++ {
		if !PathNodesEqual(p.Path.Nodes[i], prefix.Path.Nodes[i]) {
			return false
		}
	}
	return true
}

// PathsEqual compares two identified paths structurally.
func PathsEqual(a, b *IdentifiedPath) bool {
	return a.Path.Len() == b.Path.Len() && PathStartsWith(a, b)
}

func PathNodesEqual(a, b PathNode) bool {
	return a.Attribute == b.Attribute && PredicatesEqual(a.Predicates, b.Predicates)
}

func PredicatesEqual(a, b []AndPredicate) bool {
	if len(a) != len(b) {
		return false
	}
	return RenderPredicates(a) == RenderPredicates(b)
}

// ContainmentExprs returns the class and version expressions of c in
// textual order.
func ContainmentExprs(c Containment) []Containment {
	var out []Containment
	WalkContainment(c, func(n, _ Containment) {
		switch n.(type) {
		case *ClassExpr, *VersionExpr:
			out = append(out, n)
		}
	})
	return out
}

// WalkContainment visits every node of the containment tree depth first. The
// parent passed to fn is the nearest enclosing class or version expression.
func WalkContainment(c Containment, fn func(node, parent Containment)) {
	walkContainment(c, nil, fn)
}

func walkContainment(c, parent Containment, fn func(node, parent Containment)) {
	if c == nil {
		return
	}
	fn(c, parent)

	switch v := c.(type) {
	case *ClassExpr:
		walkContainment(v.Contains, v, fn)
	case *VersionExpr:
		walkContainment(v.Contains, v, fn)
	case *SetOperator:
		for _, cv := range v.Values {
			walkContainment(cv, parent, fn)
		}
	case *NotContainment:
		walkContainment(v.Contains, parent, fn)
	}
}

// ContainedBy returns the identified containment directly contained by c,
// skipping nothing; set operators are returned as-is.
func ContainedBy(c Containment) Containment {
	switch v := c.(type) {
	case *ClassExpr:
		return v.Contains
	case *VersionExpr:
		return v.Contains
	}
	return nil
}

// SelectPaths returns the identified paths used in the SELECT clause,
// including aggregate arguments.
func (q *Query) SelectPaths() []*IdentifiedPath {
	var out []*IdentifiedPath
	for _, se := range q.Select.Exprs {
		switch c := se.Column.(type) {
		case *IdentifiedPath:
			out = append(out, c)
		case *AggregateFunction:
			if c.Path != nil {
				out = append(out, c.Path)
			}
		case *Function:
			out = append(out, operandPaths(c.Args)...)
		}
	}
	return out
}

// WherePaths returns the identified paths used in the WHERE clause.
func (q *Query) WherePaths() []*IdentifiedPath {
	var out []*IdentifiedPath
	WalkCondition(q.Where, func(c Condition) {
		switch v := c.(type) {
		case *Comparison:
			out = append(out, operandPaths([]Operand{v.Left, v.Right})...)
		case *Like:
			out = append(out, v.Path)
		case *Matches:
			out = append(out, v.Path)
		case *Exists:
			out = append(out, v.Path)
		}
	})
	return out
}

// OrderByPaths returns the identified paths used in the ORDER BY clause.
func (q *Query) OrderByPaths() []*IdentifiedPath {
	out := make([]*IdentifiedPath, 0, len(q.OrderBy))
	for _, ob := range q.OrderBy {
		out = append(out, ob.Path)
	}
	return out
}

// AllPaths returns SELECT, WHERE and ORDER BY paths in that order.
func (q *Query) AllPaths() []*IdentifiedPath {
	out := q.SelectPaths()
	out = append(out, q.WherePaths()...)
	return append(out, q.OrderByPaths()...)
}

// WalkCondition visits every node of the condition tree depth first.
func WalkCondition(c Condition, fn func(Condition)) {
	if c == nil {
		return
	}
	fn(c)
	switch v := c.(type) {
	case *Logical:
		for _, cv := range v.Values {
			WalkCondition(cv, fn)
		}
	case *Not:
		WalkCondition(v.Cond, fn)
	}
}

func operandPaths(ops []Operand) []*IdentifiedPath {
	var out []*IdentifiedPath
	for _, o := range ops {
		switch v := o.(type) {
		case *IdentifiedPath:
			out = append(out, v)
		case *Function:
			out = append(out, operandPaths(v.Args)...)
		}
	}
	return out
}
