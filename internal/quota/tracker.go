package quota

import (
	"context"
	"sync"
	"time"

	"headline_aggregator/internal/domain"
)

// Store persists per-provider, per-day quota rows.
type Store interface {
	GetOrCreate(ctx context.Context, provider string, day time.Time) (*domain.QuotaState, error)
	Increment(ctx context.Context, provider string, day time.Time) (int, error)
	MarkRateLimited(ctx context.Context, provider string, day time.Time, at time.Time) error
}

// Tracker serializes quota reads and writes per provider and pins the day
// boundary to UTC. The clock is injectable so tests can roll the day over.
type Tracker struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTracker(store Store) *Tracker {
	return &Tracker{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// WithClock replaces the tracker's clock. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Today returns the quota state for the provider's current UTC day, creating
// the row on first use.
func (t *Tracker) Today(ctx context.Context, provider string) (*domain.QuotaState, error) {
	lock := t.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	return t.store.GetOrCreate(ctx, provider, t.day())
}

// RecordSuccess counts one consumed request and returns the new total for
// the day. Persisted before the caller moves to the next unit of work.
func (t *Tracker) RecordSuccess(ctx context.Context, provider string) (int, error) {
	lock := t.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	return t.store.Increment(ctx, provider, t.day())
}

// RecordRateLimited arms the provider's cooldown marker. The request count is
// untouched: a 429'd attempt consumed no quota.
func (t *Tracker) RecordRateLimited(ctx context.Context, provider string) error {
	lock := t.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	return t.store.MarkRateLimited(ctx, provider, t.day(), t.now().UTC())
}

func (t *Tracker) day() time.Time {
	y, m, d := t.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (t *Tracker) providerLock(provider string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[provider]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[provider] = lock
	}
	return lock
}
