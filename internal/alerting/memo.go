package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// memoFeatures caches feature lookups for the lifetime of one run. Rules that
// share a feature (two attendance rules, say) hit the provider once per
// subject. Errors are never cached.
type memoFeatures struct {
	next  FeatureProvider
	cache *cache.Cache
}

func newMemoFeatures(next FeatureProvider) *memoFeatures {
	// No expiry and no janitor: the cache is dropped with the run.
	return &memoFeatures{next: next, cache: cache.New(cache.NoExpiration, 0)}
}

type planTotals struct{ planned, executed int }

func (m *memoFeatures) ConsecutiveAbsences(ctx context.Context, participantID, activityID uint, asOf time.Time) (int, error) {
	key := fmt.Sprintf("abs:%d:%d:%s", participantID, activityID, asOf.Format(dateLayout))
	if v, ok := m.cache.Get(key); ok {
		return v.(int), nil
	}
	n, err := m.next.ConsecutiveAbsences(ctx, participantID, activityID, asOf)
	if err != nil {
		return 0, err
	}
	m.cache.SetDefault(key, n)
	return n, nil
}

func (m *memoFeatures) PlanVsExecuted(ctx context.Context, programID uint, yearMonth string) (int, int, error) {
	key := fmt.Sprintf("plan:%d:%s", programID, yearMonth)
	if v, ok := m.cache.Get(key); ok {
		t := v.(planTotals)
		return t.planned, t.executed, nil
	}
	planned, executed, err := m.next.PlanVsExecuted(ctx, programID, yearMonth)
	if err != nil {
		return 0, 0, err
	}
	m.cache.SetDefault(key, planTotals{planned, executed})
	return planned, executed, nil
}

func (m *memoFeatures) FieldDecimalValue(ctx context.Context, instanceID uint, fieldKey string, programID, activityID, participantID *uint) (*float64, error) {
	key := fmt.Sprintf("field:%d:%s:%s:%s:%s", instanceID, fieldKey, optID(programID), optID(activityID), optID(participantID))
	if v, ok := m.cache.Get(key); ok {
		return v.(*float64), nil
	}
	v, err := m.next.FieldDecimalValue(ctx, instanceID, fieldKey, programID, activityID, participantID)
	if err != nil {
		return nil, err
	}
	m.cache.SetDefault(key, v)
	return v, nil
}

func (m *memoFeatures) AttendancePercentage(ctx context.Context, participantID, programID uint, from, to time.Time) (float64, error) {
	key := fmt.Sprintf("att:%d:%d:%s:%s", participantID, programID, from.Format(dateLayout), to.Format(dateLayout))
	if v, ok := m.cache.Get(key); ok {
		return v.(float64), nil
	}
	pct, err := m.next.AttendancePercentage(ctx, participantID, programID, from, to)
	if err != nil {
		return 0, err
	}
	m.cache.SetDefault(key, pct)
	return pct, nil
}

func optID(id *uint) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

// keyedMutex serialises work per string key. Entries are removed once no
// goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
