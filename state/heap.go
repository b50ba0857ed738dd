package state

// Heap is a multiset of Chunks (spec.md §3.3). It is immutable:
// mutating operations return a new Heap, grounded on glee/array.go's
// Array.Store copy-on-write discipline (`other := a.Clone()`).
type Heap struct {
	chunks []Chunk
}

// EmptyHeap returns a Heap with no chunks.
func EmptyHeap() *Heap { return &Heap{} }

// Chunks returns the heap's chunk list. Callers must treat the
// returned slice as read-only.
func (h *Heap) Chunks() []Chunk {
	if h == nil {
		return nil
	}
	return h.chunks
}

// Add returns a new Heap with c appended.
func (h *Heap) Add(c Chunk) *Heap {
	next := make([]Chunk, len(h.Chunks())+1)
	copy(next, h.Chunks())
	next[len(next)-1] = c
	return &Heap{chunks: next}
}

// Without returns a new Heap with the chunk at index i removed.
func (h *Heap) Without(i int) *Heap {
	chunks := h.Chunks()
	next := make([]Chunk, 0, len(chunks)-1)
	next = append(next, chunks[:i]...)
	next = append(next, chunks[i+1:]...)
	return &Heap{chunks: next}
}

// Replaced returns a new Heap with the chunk at index i replaced by c.
// This is the escape hatch spec.md §9 calls out ("Heap.replace") for
// tryOrFail's snapshot/restore contract; here it returns a new Heap
// rather than mutating in place, per spec.md §9's preferred design.
func (h *Heap) Replaced(i int, c Chunk) *Heap {
	chunks := h.Chunks()
	next := make([]Chunk, len(chunks))
	copy(next, chunks)
	next[i] = c
	return &Heap{chunks: next}
}

// WithChunks returns a new Heap wholesale-replacing the chunk list, used
// by the heap compressor (an external collaborator, spec.md §4.C) and
// by TryOrFail's Restore hook.
func WithChunks(chunks []Chunk) *Heap {
	next := make([]Chunk, len(chunks))
	copy(next, chunks)
	return &Heap{chunks: next}
}

// FieldChunksFor returns the indices of every FieldChunk/
// QuantifiedFieldChunk in the heap for the given field name -- the
// "candidate" partition of spec.md §4.F step 1.
func (h *Heap) FieldChunksFor(field string) []int {
	var idxs []int
	for i, c := range h.Chunks() {
		switch c := c.(type) {
		case *FieldChunk:
			if c.Field == field {
				idxs = append(idxs, i)
			}
		case *QuantifiedFieldChunk:
			if c.Field == field {
				idxs = append(idxs, i)
			}
		}
	}
	return idxs
}

// PredicateChunksFor returns the indices of every PredicateChunk/
// QuantifiedPredicateChunk in the heap for the given predicate name.
func (h *Heap) PredicateChunksFor(name string) []int {
	var idxs []int
	for i, c := range h.Chunks() {
		switch c := c.(type) {
		case *PredicateChunk:
			if c.Name == name {
				idxs = append(idxs, i)
			}
		case *QuantifiedPredicateChunk:
			if c.Name == name {
				idxs = append(idxs, i)
			}
		}
	}
	return idxs
}

// WandChunks returns the indices of every WandChunk in the heap.
func (h *Heap) WandChunks() []int {
	var idxs []int
	for i, c := range h.Chunks() {
		if _, ok := c.(*WandChunk); ok {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
