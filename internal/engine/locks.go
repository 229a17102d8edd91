package engine

import "sync"

// symbolLocks hands out one mutex per symbol so that the buy branch's
// position-check-then-place sequence is serialized within the process. Two
// concurrent buy signals for the same symbol would otherwise both observe
// "no position" and both place orders.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for symbol and returns its unlock function.
// Mutexes are retained for the process lifetime; the symbol universe is
// small enough that they are never reclaimed.
func (s *symbolLocks) Lock(symbol string) func() {
	s.mu.Lock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
