package ledger

import "tracker/internal/core"

// ConceptMemory maps a concept to the category it was first stored with.
// Entries are never overwritten.
type ConceptMemory map[string]string

// Remember registers concept -> category unless the concept is already known.
// It reports whether the entry was added.
func (m ConceptMemory) Remember(concept, category string) bool {
	if _, ok := m[concept]; ok {
		return false
	}
	m[concept] = category
	return true
}

// Lookup returns the remembered category for concept.
func (m ConceptMemory) Lookup(concept string) (string, bool) {
	c, ok := m[concept]
	return c, ok
}

// observe applies the store rule of a single transaction.
func (m ConceptMemory) observe(t core.Transaction) {
	if t.Store {
		m.Remember(t.Concept, t.Category)
	}
}

// Clone returns an independent copy.
func (m ConceptMemory) Clone() ConceptMemory {
	out := make(ConceptMemory, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// BuildConceptMemory walks txs in order, keeping the first stored category
// of every concept.
func BuildConceptMemory(txs []core.Transaction) ConceptMemory {
	m := make(ConceptMemory)
	for _, t := range txs {
		m.observe(t)
	}
	return m
}
