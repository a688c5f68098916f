package rm

import (
	"sort"
	"strings"
)

// TypeSet is a sorted set of RM type names. The zero value is the empty set.
type TypeSet struct {
	names []string
}

func NewTypeSet(names ...string) TypeSet {
	if len(names) == 0 {
		return TypeSet{}
	}
	n := make([]string, len(names))
	copy(n, names)
	sort.Strings(n)

	out := n[:1]
	for _, v := range n[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return TypeSet{names: out}
}

func (s TypeSet) Len() int { return len(s.names) }

func (s TypeSet) Empty() bool { return len(s.names) == 0 }

func (s TypeSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s TypeSet) Contains(name string) bool {
	i := sort.SearchStrings(s.names, name)
	return i < len(s.names) && s.names[i] == name
}

// Single returns the only member of a one element set.
func (s TypeSet) Single() (string, bool) {
	if len(s.names) != 1 {
		return "", false
	}
	return s.names[0], true
}

func (s TypeSet) Intersect(o TypeSet) TypeSet {
	var out []string
	i, j := 0, 0
	for i < len(s.names) && j < len(o.names) {
		switch {
		case s.names[i] == o.names[j]:
			out = append(out, s.names[i])
			i++
			j++
		case s.names[i] < o.names[j]:
			i++
		default:
			j++
		}
	}
	return TypeSet{names: out}
}

func (s TypeSet) Union(o TypeSet) TypeSet {
	if s.Empty() {
		return o
	}
	if o.Empty() {
		return s
	}
	return NewTypeSet(append(s.Names(), o.names...)...)
}

func (s TypeSet) Intersects(o TypeSet) bool {
	return !s.Intersect(o).Empty()
}

func (s TypeSet) Equal(o TypeSet) bool {
	if len(s.names) != len(o.names) {
		return false
	}
	for i := range s.names {
		if s.names[i] != o.names[i] {
			return false
		}
	}
	return true
}

// All reports whether fn holds for every member. It is true for the empty set.
func (s TypeSet) All(fn func(string) bool) bool {
	for _, n := range s.names {
		if !fn(n) {
			return false
		}
	}
	return true
}

// Any reports whether fn holds for some member.
func (s TypeSet) Any(fn func(string) bool) bool {
	for _, n := range s.names {
		if fn(n) {
			return true
		}
	}
	return false
}

// Filter returns the members for which fn holds.
func (s TypeSet) Filter(fn func(string) bool) TypeSet {
	var out []string
	for _, n := range s.names {
		if fn(n) {
			out = append(out, n)
		}
	}
	return TypeSet{names: out}
}

func (s TypeSet) String() string {
	return "{" + strings.Join(s.names, ", ") + "}"
}
