package util

// StackInf is a LIFO stack of arbitrary values used by the tree walkers.
type StackInf struct {
	stA [20]interface{}
	st  []interface{}
	top int
}

// NewStackInf creates a new stack
func NewStackInf() *StackInf {
	s := &StackInf{top: -1}
	s.st = s.stA[:0]
	return s
}

// Push adds a value to the stack
func (s *StackInf) Push(val interface{}) {
	s.top++

	if s.top < len(s.st) {
		s.st[s.top] = val
	} else {
		s.st = append(s.st, val)
	}
}

// Len returns the length of the stack
func (s *StackInf) Len() int {
	return s.top + 1
}

// Peek returns the top value without removing it
func (s *StackInf) Peek() interface{} {
	if s.top == -1 {
		return nil
	}
	return s.st[s.top]
}

// Pop removes and returns the top value
func (s *StackInf) Pop() interface{} {
	if s.top == -1 {
		return nil
	}

	s.top--
	return s.st[(s.top + 1)]
}
