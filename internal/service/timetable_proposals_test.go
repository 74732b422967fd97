package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalStoreExpiry(t *testing.T) {
	store := newProposalStore(time.Minute)
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Save(timetableProposal{ID: "p-1", ClassID: "class-1", State: ProposalProposed, GeneratedAt: now})
	got, ok := store.Get("p-1")
	require.True(t, ok)
	assert.Equal(t, "class-1", got.ClassID)
	assert.Equal(t, now.Add(time.Minute), store.ExpiresAt(got))

	now = now.Add(2 * time.Minute)
	_, ok = store.Get("p-1")
	assert.False(t, ok)
	assert.False(t, store.SetState("p-1", ProposalApplied))
	assert.Zero(t, store.Len())
}

func TestProposalStoreEvictsOnSave(t *testing.T) {
	store := newProposalStore(time.Minute)
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Save(timetableProposal{ID: "old", GeneratedAt: now})
	now = now.Add(time.Hour)
	store.Save(timetableProposal{ID: "new", GeneratedAt: now})

	assert.Equal(t, 1, store.Len())
}

func TestProposalStoreSetState(t *testing.T) {
	store := newProposalStore(time.Minute)
	store.Save(timetableProposal{ID: "p-1", State: ProposalProposed, GeneratedAt: time.Now()})

	require.True(t, store.SetState("p-1", ProposalRejected))
	got, ok := store.Get("p-1")
	require.True(t, ok)
	assert.Equal(t, ProposalRejected, got.State)
	assert.False(t, store.SetState("missing", ProposalApplied))
}

func TestClassLocksSerialiseSameClass(t *testing.T) {
	locks := newClassLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("class-1")
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, locks.Len())
}

func TestClassLocksReleasedAfterUse(t *testing.T) {
	locks := newClassLocks()

	first := locks.Lock("class-1")
	second := locks.Lock("class-2")
	assert.Equal(t, 2, locks.Len())

	first()
	assert.Equal(t, 1, locks.Len())
	second()
	assert.Zero(t, locks.Len())

	unlock := locks.Lock("class-1")
	assert.Equal(t, 1, locks.Len())
	unlock()
	assert.Zero(t, locks.Len())
}
