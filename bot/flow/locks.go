package flow

import "sync"

// subjectLocks serializes handling per subject id. Distinct subjects proceed
// concurrently. Entries are never evicted; the map is bounded by the number
// of subjects the bot has ever talked to.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[int64]*sync.Mutex)}
}

func (s *subjectLocks) lock(id int64) *sync.Mutex {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l
}
