package corogo

// Token is a stable integer key identifying one descriptor registered with
// the reactor's poller.
type Token uint64

// slab is a dense table mapping Token to *ReadyStates, owned exclusively by
// the reactor thread — it is never touched from a Processor or coroutine
// goroutine, so it needs no synchronization of its own. It grows by doubling
// and reuses freed slots via a free list, with eager deletion on Deregister:
// a ReadyStates here is explicitly owned by the reactor for exactly the
// registration's lifetime, so nothing needs a GC-driven scavenger to detect
// abandoned entries. Lookup by Token is intentionally absent: the poller's
// registered callback already closes over the ReadyStates it dispatches to,
// so the reactor never needs to go from Token back to ReadyStates; slab only
// exists to own the slot for insert/remove bookkeeping.
type slab struct {
	entries []*ReadyStates
	free    []Token
}

func newSlab() *slab {
	return &slab{}
}

// insert allocates a slot (growing by doubling if the free list is empty and
// the table is full) and returns its Token.
func (s *slab) insert(rs *ReadyStates) Token {
	if len(s.free) > 0 {
		tok := s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		s.entries[tok] = rs
		return tok
	}

	idx := len(s.entries)
	if cap(s.entries) == idx {
		newCap := cap(s.entries) * 2
		if newCap == 0 {
			newCap = 16
		}
		grown := make([]*ReadyStates, idx, newCap)
		copy(grown, s.entries)
		s.entries = grown
	}
	s.entries = append(s.entries, rs)
	return Token(idx)
}

// remove frees tok's slot for reuse and returns the ReadyStates that
// occupied it, or nil if it was already empty.
func (s *slab) remove(tok Token) *ReadyStates {
	if int(tok) >= len(s.entries) {
		return nil
	}
	rs := s.entries[tok]
	if rs == nil {
		return nil
	}
	s.entries[tok] = nil
	s.free = append(s.free, tok)
	return rs
}

// len returns the number of live (non-freed) entries.
func (s *slab) len() int {
	return len(s.entries) - len(s.free)
}
