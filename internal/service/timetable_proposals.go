package service

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// ProposalState is the lifecycle position of a generated timetable.
type ProposalState string

const (
	ProposalConfiguring ProposalState = "CONFIGURING"
	ProposalProposed    ProposalState = "PROPOSED"
	ProposalApplied     ProposalState = "APPLIED"
	ProposalRejected    ProposalState = "REJECTED"
)

type timetableProposal struct {
	ID          string
	ClassID     string
	State       ProposalState
	Settings    dto.TimetableSettings
	Plan        scheduler.DemandPlan
	Entries     []scheduler.Entry
	Conflicts   []scheduler.Conflict
	Stats       scheduler.AssignStats
	Lookups     scheduler.Lookups
	GeneratedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]timetableProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]timetableProposal),
	}
}

func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (timetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false
	}
	if s.expired(proposal) {
		s.Delete(id)
		return timetableProposal{}, false
	}
	return proposal, true
}

// SetState moves a live proposal to state and reports whether it was found.
func (s *proposalStore) SetState(id string, state ProposalState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok || s.expired(proposal) {
		return false
	}
	proposal.State = state
	s.items[id] = proposal
	return true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *proposalStore) ExpiresAt(proposal timetableProposal) time.Time {
	return proposal.GeneratedAt.Add(s.ttl)
}

func (s *proposalStore) expired(proposal timetableProposal) bool {
	return s.now().Sub(proposal.GeneratedAt) > s.ttl
}

func (s *proposalStore) evictExpiredLocked() {
	for id, proposal := range s.items {
		if s.expired(proposal) {
			delete(s.items, id)
		}
	}
}

// classLocks serialises replace operations per class. A lock is dropped once
// no caller holds or waits on it.
type classLocks struct {
	mu    sync.Mutex
	locks map[string]*classLock
}

type classLock struct {
	sync.Mutex
	refs int
}

func newClassLocks() *classLocks {
	return &classLocks{locks: make(map[string]*classLock)}
}

func (l *classLocks) Lock(classID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[classID]
	if !ok {
		lock = &classLock{}
		l.locks[classID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, classID)
		}
		l.mu.Unlock()
	}
}

func (l *classLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
