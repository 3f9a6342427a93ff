package compose

import (
	"cmp"
	"strings"

	"composeim/internal/keysym"
)

// MaxKeys is the capacity of a compose sequence.
const MaxKeys = 4

// Sequence is a zero-terminated run of keysyms. Unused slots hold
// keysym.NoSymbol.
type Sequence [MaxKeys]keysym.Sym

// Seq builds a Sequence from syms. It panics if more than MaxKeys are given,
// since sequences are only built from literal table data.
func Seq(syms ...keysym.Sym) Sequence {
	if len(syms) > MaxKeys {
		panic("compose: sequence longer than MaxKeys")
	}
	var s Sequence
	copy(s[:], syms)
	return s
}

// Len returns the number of keys before the first sentinel.
func (s Sequence) Len() int {
	for i, k := range s {
		if k == keysym.NoSymbol {
			return i
		}
	}
	return MaxKeys
}

// Full reports whether no slot is left.
func (s Sequence) Full() bool {
	return s.Len() == MaxKeys
}

// Keys returns the used slots.
func (s Sequence) Keys() []keysym.Sym {
	return s[:s.Len()]
}

// append returns s with sym added. ok is false if s is already full.
func (s Sequence) append(sym keysym.Sym) (Sequence, bool) {
	n := s.Len()
	if n == MaxKeys {
		return s, false
	}
	s[n] = sym
	return s, true
}

// String renders the sequence with keysym names, e.g. "quotedbl A".
func (s Sequence) String() string {
	keys := s.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = keysym.Name(k)
	}
	return strings.Join(parts, " ")
}

// Compare orders a query sequence against a table sequence.
//
// Slots are compared in order until either sequence reaches its sentinel.
// If both end together, or the query ends first, they compare equal: a query
// that is a prefix of b matches b. Otherwise the first differing sym decides.
func Compare(query, b Sequence) int {
	i := 0
	for ; i < MaxKeys && query[i] != keysym.NoSymbol && b[i] != keysym.NoSymbol; i++ {
		if query[i] != b[i] {
			return cmp.Compare(query[i], b[i])
		}
	}
	if i == MaxKeys || query[i] == b[i] || query[i] == keysym.NoSymbol {
		return 0
	}
	return cmp.Compare(query[i], b[i])
}

// order is the strict total order used to sort table entries.
func order(a, b Sequence) int {
	for i := 0; i < MaxKeys; i++ {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// literal concatenates the text of every key. Keys without a printable
// rendering contribute nothing.
func literal(t Translator, s Sequence) string {
	var sb strings.Builder
	for _, k := range s.Keys() {
		if text, ok := t.ToUTF8(k); ok {
			sb.WriteString(text)
		}
	}
	return sb.String()
}
