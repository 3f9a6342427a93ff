package compose

import (
	"errors"
	"fmt"
	"slices"

	"composeim/internal/keysym"
)

// Match is the result of a table lookup.
type Match int

const (
	// NoMatch means no entry starts with the query.
	NoMatch Match = iota
	// Pending means the query is a strict prefix of an entry.
	Pending
	// Complete means the query equals an entry.
	Complete
)

// String returns the match name.
func (m Match) String() string {
	switch m {
	case NoMatch:
		return "no-match"
	case Pending:
		return "pending"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Entry maps a compose sequence to the text it produces.
type Entry struct {
	Keys Sequence
	Text string
}

// Table errors.
var (
	ErrEmptyEntry     = errors.New("compose: entry has no keys")
	ErrEmbeddedZero   = errors.New("compose: keys continue after sentinel")
	ErrEmptyText      = errors.New("compose: entry has no text")
	ErrDuplicateEntry = errors.New("compose: duplicate sequence")
	ErrAmbiguousEntry = errors.New("compose: sequence is a prefix of another")
)

// Table is an immutable, sorted set of compose entries.
type Table struct {
	entries []Entry
}

// NewTable sorts and validates entries. The slice is copied.
func NewTable(entries []Entry) (*Table, error) {
	sorted := slices.Clone(entries)
	for _, e := range sorted {
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Keys, err)
		}
	}

	slices.SortFunc(sorted, func(a, b Entry) int { return order(a.Keys, b.Keys) })

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].Keys, sorted[i].Keys
		if prev == cur {
			return nil, fmt.Errorf("%s: %w", cur, ErrDuplicateEntry)
		}
		// Sorted order puts a prefix directly before its first extension.
		if Compare(prev, cur) == 0 {
			return nil, fmt.Errorf("%s is a prefix of %s: %w", prev, cur, ErrAmbiguousEntry)
		}
	}

	return &Table{entries: sorted}, nil
}

func validateEntry(e Entry) error {
	n := e.Keys.Len()
	if n == 0 {
		return ErrEmptyEntry
	}
	for _, k := range e.Keys[n:] {
		if k != keysym.NoSymbol {
			return ErrEmbeddedZero
		}
	}
	if e.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// Lookup finds an entry the query matches.
//
// The entry's sequence decides between Pending and Complete: if it has no
// key after the query's length the match is complete, even if some other
// entry could extend the same prefix.
func (t *Table) Lookup(query Sequence) (Entry, Match) {
	n := query.Len()
	if n == 0 {
		return Entry{}, NoMatch
	}

	i, found := slices.BinarySearchFunc(t.entries, query, func(e Entry, p Sequence) int {
		return -Compare(p, e.Keys)
	})
	if !found {
		return Entry{}, NoMatch
	}

	e := t.entries[i]
	if n == MaxKeys || e.Keys[n] == keysym.NoSymbol {
		return e, Complete
	}
	return e, Pending
}

// Entries returns the entries in lookup order.
func (t *Table) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

var defaultEntries = []Entry{
	{Seq(keysym.Quotedbl, keysym.A), "Ä"},
	{Seq(keysym.Quotedbl, keysym.O), "Ö"},
	{Seq(keysym.Quotedbl, keysym.U), "Ü"},
	{Seq(keysym.Quotedbl, keysym.LowerA), "ä"},
	{Seq(keysym.Quotedbl, keysym.LowerO), "ö"},
	{Seq(keysym.Quotedbl, keysym.LowerU), "ü"},
	{Seq(keysym.Apostrophe, keysym.A), "Á"},
	{Seq(keysym.Apostrophe, keysym.LowerA), "á"},
	{Seq(keysym.O, keysym.C), "©"},
	{Seq(keysym.O, keysym.R), "®"},
	{Seq(keysym.LowerS, keysym.LowerS), "ß"},
}

var defaultTable = mustTable(defaultEntries)

func mustTable(entries []Entry) *Table {
	t, err := NewTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable returns the built-in compose table.
func DefaultTable() *Table {
	return defaultTable
}
