package store

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yangwenmai/taskforge/internal/model"
)

var _ RecordRegistry = (*Registry)(nil)

// Registry keeps processing records for the lifetime of the process.
// Records never expire and are not persisted.
type Registry struct {
	// mu serializes read-modify-write of a record; the cache itself is safe for
	// concurrent reads.
	mu    sync.Mutex
	cache *gocache.Cache
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cache: gocache.New(gocache.NoExpiration, 0),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new record. Tracking ids must be unique.
func (r *Registry) Create(rec model.Record) error {
	if err := r.cache.Add(rec.TrackingID, rec, gocache.NoExpiration); err != nil {
		return fmt.Errorf("tracking id %s: %w", rec.TrackingID, err)
	}
	return nil
}

// Get returns a copy of the record.
func (r *Registry) Get(trackingID string) (model.Record, bool) {
	v, ok := r.cache.Get(trackingID)
	if !ok {
		return model.Record{}, false
	}
	return v.(model.Record), true
}

// Len returns the number of tracked records.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Transition moves a record to status, enforcing the allowed lifecycle.
func (r *Registry) Transition(trackingID, status string) error {
	return r.update(trackingID, status, func(*model.Record) {})
}

// Complete marks a record completed with its publication result.
func (r *Registry) Complete(trackingID string, res model.PublicationResult) error {
	return r.update(trackingID, model.StatusCompleted, func(rec *model.Record) {
		rec.Result = &res
	})
}

// Fail marks a record failed with the error detail.
func (r *Registry) Fail(trackingID string, info model.ErrorInfo) error {
	return r.update(trackingID, model.StatusFailed, func(rec *model.Record) {
		rec.Error = info.Message
		rec.ErrorInfo = &info
	})
}

func (r *Registry) update(trackingID, status string, mutate func(*model.Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(trackingID)
	if !ok {
		return fmt.Errorf("tracking id %s: %w", trackingID, ErrNotFound)
	}
	rec := v.(model.Record)
	if rec.Terminal() {
		return fmt.Errorf("tracking id %s: %w (%s)", trackingID, ErrTerminal, rec.Status)
	}
	if err := rec.ValidateTransition(status); err != nil {
		return fmt.Errorf("tracking id %s: %w", trackingID, err)
	}
	rec.Status = status
	rec.UpdatedAt = r.now()
	mutate(&rec)
	r.cache.Set(trackingID, rec, gocache.NoExpiration)
	return nil
}
