// Package faq holds the static question/answer corpus and its search.
package faq

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

var ErrDuplicateQuestion = errors.New("duplicate question")

type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Index is immutable after construction and safe to share between sessions.
type Index struct {
	entries []Entry
	folded  [][3]string
	byKey   map[string]int
}

func NewIndex(entries []Entry) (*Index, error) {
	ix := &Index{
		entries: append([]Entry(nil), entries...),
		folded:  make([][3]string, len(entries)),
		byKey:   make(map[string]int, len(entries)),
	}

	for i, e := range ix.entries {
		if _, ok := ix.byKey[e.Question]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateQuestion, e.Question)
		}
		ix.byKey[e.Question] = i
		ix.folded[i] = [3]string{fold(e.Question), fold(e.Answer), fold(e.Category)}
	}

	return ix, nil
}

// Default returns the reference corpus.
func Default() *Index {
	ix, err := NewIndex(reference)
	if err != nil {
		panic("faq: reference corpus: " + err.Error())
	}
	return ix
}

// Search returns every entry whose question, answer or category contains
// term, ignoring case. Matches keep corpus order; an empty term matches all.
func (ix *Index) Search(term string) []Entry {
	if term == "" {
		return ix.All()
	}

	needle := fold(term)
	out := make([]Entry, 0, len(ix.entries))
	for i, f := range ix.folded {
		if strings.Contains(f[0], needle) ||
			strings.Contains(f[1], needle) ||
			strings.Contains(f[2], needle) {
			out = append(out, ix.entries[i])
		}
	}
	return out
}

func (ix *Index) All() []Entry {
	return append([]Entry(nil), ix.entries...)
}

func (ix *Index) Lookup(question string) (Entry, bool) {
	i, ok := ix.byKey[question]
	if !ok {
		return Entry{}, false
	}
	return ix.entries[i], true
}

func (ix *Index) Len() int {
	return len(ix.entries)
}

// fold builds a fresh Caser per call: a Caser keeps state and must not be
// shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}
