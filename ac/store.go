package ac

// A Store owns the contexts of one coding session, addressed by context index.
type Store struct {
	ctxs []Context
}

// Init allocates n contexts, each in the initial state.
// A previous allocation is reused when it is large enough.
func (s *Store) Init(n int) {
	if cap(s.ctxs) >= n {
		s.ctxs = s.ctxs[:n]
	} else {
		s.ctxs = make([]Context, n)
	}
	s.Reset()
}

// Reset restores every context to the initial state without changing the allocation.
func (s *Store) Reset() {
	for i := range s.ctxs {
		s.ctxs[i].Reset()
	}
}

// At returns the context with index i.
func (s *Store) At(i int) *Context {
	return &s.ctxs[i]
}

// Len returns the number of allocated contexts.
func (s *Store) Len() int {
	return len(s.ctxs)
}
