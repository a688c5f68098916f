// Package pathanalysis infers the reference model types addressed by AQL
// paths, groups the paths of a containment into a cohesion tree and decides
// how the structure nodes of that tree are joined.
package pathanalysis

import "github.com/ehrbase/aqlengine/core/internal/rm"

// Candidates is the set of concrete RM types a node may have. The zero value
// is unconstrained; a constrained empty set is a contradiction.
type Candidates struct {
	set         rm.TypeSet
	constrained bool
}

func Unconstrained() Candidates {
	return Candidates{}
}

func CandidatesOf(s rm.TypeSet) Candidates {
	return Candidates{set: s, constrained: true}
}

func (c Candidates) Constrained() bool {
	return c.constrained
}

// Empty reports a contradiction.
func (c Candidates) Empty() bool {
	return c.constrained && c.set.Empty()
}

func (c Candidates) Types() rm.TypeSet {
	return c.set
}

// Narrow intersects c with s. It never grows the set.
func (c Candidates) Narrow(s rm.TypeSet) Candidates {
	if !c.constrained {
		return CandidatesOf(s)
	}
	return CandidatesOf(c.set.Intersect(s))
}

func (c Candidates) Equal(o Candidates) bool {
	return c.constrained == o.constrained && c.set.Equal(o.set)
}

func (c Candidates) String() string {
	if !c.constrained {
		return "*"
	}
	return c.set.String()
}
