package pending

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/snapshot"
)

const (
	// EntryTTL is how long a pending payment correlation stays usable. A user
	// retrying later than this has to restart checkout.
	EntryTTL = 30 * time.Minute

	// SweepInterval is how often expired entries are garbage-collected.
	SweepInterval = 5 * time.Minute
)

// Entry bridges a provider-side payment id back to the local order and the
// snapshot it was priced from. Deliberately not durable: a restart drops
// in-flight correlations and confirm falls back to the ledger's metadata
// lookup.
type Entry struct {
	UserID             string
	OrderID            uuid.UUID
	Snapshot           *snapshot.Snapshot
	Total              decimal.Decimal
	ShippingOptionID   string
	ShippingCost       decimal.Decimal
	ShippingOptionName string
	CreatedAt          time.Time
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration

	stopSweep chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRegistry() *Registry {
	return newRegistry(EntryTTL, SweepInterval)
}

func newRegistry(ttl, sweepInterval time.Duration) *Registry {
	r := &Registry{
		entries:   make(map[string]*Entry),
		ttl:       ttl,
		stopSweep: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sweepLoop(sweepInterval)

	return r
}

func (r *Registry) Put(providerID string, entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries[providerID] = entry
}

// Get returns the entry for a provider id, treating an expired entry as
// absent even if the sweeper has not collected it yet.
func (r *Registry) Get(providerID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[providerID]
	if !ok || time.Since(entry.CreatedAt) > r.ttl {
		return nil, false
	}
	return entry, true
}

func (r *Registry) Delete(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, providerID)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) sweepLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopSweep:
			return
		}
	}
}

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.entries {
		if time.Since(entry.CreatedAt) > r.ttl {
			delete(r.entries, id)
		}
	}
}

func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stopSweep)
	})
	r.wg.Wait()
}
