package term

import "github.com/cespare/xxhash/v2"

// Table is a structural hash-consing table: terms with identical String
// renderings (and thus identical logical meaning up to the peephole
// simplifications the New* constructors in term.go already apply) are
// interned to a single pointer. Grounded on borzacchiello-gosmt's use of
// xxhash to key its expression-interning cache.
type Table struct {
	buckets map[uint64][]Term
}

// NewTable returns an empty hash-consing table.
func NewTable() *Table {
	return &Table{buckets: make(map[uint64][]Term)}
}

// Intern returns the canonical representative for t: if a structurally
// identical term was interned before, that earlier Term is returned;
// otherwise t itself is interned and returned.
func (tb *Table) Intern(t Term) Term {
	h := hashTerm(t)
	for _, cand := range tb.buckets[h] {
		if TermsEqual(cand, t) {
			return cand
		}
	}
	tb.buckets[h] = append(tb.buckets[h], t)
	return t
}

// Len reports how many distinct terms are currently interned.
func (tb *Table) Len() int {
	n := 0
	for _, bucket := range tb.buckets {
		n += len(bucket)
	}
	return n
}

func hashTerm(t Term) uint64 {
	return xxhash.Sum64String(t.String())
}
