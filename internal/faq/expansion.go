package faq

import "sort"

// Expansion tracks which questions a session has expanded. It is owned by a
// single session and is not safe for concurrent use.
type Expansion struct {
	open map[string]struct{}
}

func NewExpansion() *Expansion {
	return &Expansion{open: make(map[string]struct{})}
}

// Toggle flips the expanded state of question and reports the new state.
func (x *Expansion) Toggle(question string) bool {
	if x.open == nil {
		x.open = make(map[string]struct{})
	}
	if _, ok := x.open[question]; ok {
		delete(x.open, question)
		return false
	}
	x.open[question] = struct{}{}
	return true
}

func (x *Expansion) Expanded(question string) bool {
	_, ok := x.open[question]
	return ok
}

func (x *Expansion) Len() int {
	return len(x.open)
}

// Keys returns the expanded questions in lexical order.
func (x *Expansion) Keys() []string {
	keys := make([]string, 0, len(x.open))
	for k := range x.open {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
