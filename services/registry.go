package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pocketbase/pocketbase/tools/types"

	"karaoke-live/internal/status"
	"karaoke-live/models"
	"karaoke-live/store"
	"karaoke-live/utils"
)

// Registry resolves and isolates instances. It is the single source of
// truth for "is this tenant usable": every public path goes through
// Resolve, which hides paused, closed and expired instances behind
// NotFound so their existence never leaks to unauthenticated callers.
//
// Resolved snapshots are cached and kept fresh by watching the
// dispatcher's own change stream, so a status flip propagates within
// the realtime bound instead of waiting for a cache TTL.
type Registry struct {
	store store.InstanceStore
	now   func() time.Time

	mu     sync.RWMutex
	byCode map[string]*models.Instance
}

func NewRegistry(st store.InstanceStore) *Registry {
	return &Registry{
		store:  st,
		now:    time.Now,
		byCode: make(map[string]*models.Instance),
	}
}

// Watch consumes instance changes until the context is cancelled.
// Stale notifications (older than the cached snapshot) are discarded;
// this is last-write-wins at row granularity.
func (r *Registry) Watch(ctx context.Context, sub *Subscriber) {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C():
			if !ok {
				return
			}
			if c.Collection != "instances" {
				continue
			}
			r.apply(c)
		}
	}
}

func (r *Registry) apply(c Change) {
	code, _ := c.Record["code"].(string)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Action == ActionDelete {
		if code != "" {
			delete(r.byCode, code)
			return
		}
		// Delete without a snapshot: drop whichever entry matches.
		for k, inst := range r.byCode {
			if inst.ID == c.RowID {
				delete(r.byCode, k)
			}
		}
		return
	}

	cached, ok := r.byCode[code]
	if ok && cached.UpdatedAt.After(c.Timestamp) {
		return
	}

	inst := instanceFromSnapshot(c)
	if inst.Code == "" {
		return
	}

	// A code change must not leave the row resolvable under its old
	// code; drop any cached entry for the same row first.
	for k, old := range r.byCode {
		if old.ID == inst.ID && k != inst.Code {
			delete(r.byCode, k)
		}
	}
	r.byCode[inst.Code] = inst
}

func instanceFromSnapshot(c Change) *models.Instance {
	inst := &models.Instance{ID: c.RowID, UpdatedAt: c.Timestamp}
	if v, ok := c.Record["name"].(string); ok {
		inst.Name = v
	}
	if v, ok := c.Record["code"].(string); ok {
		inst.Code = v
	}
	if v, ok := c.Record["status"].(string); ok {
		inst.Status = v
	}
	if v, ok := c.Record["owner"].(string); ok {
		inst.Owner = v
	}
	// Snapshots from the record hooks carry dates as types.DateTime;
	// hand-built changes may carry time.Time.
	switch v := c.Record["expires_at"].(type) {
	case time.Time:
		inst.ExpiresAt = v
	case types.DateTime:
		inst.ExpiresAt = v.Time()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			inst.ExpiresAt = t
		}
	}
	return inst
}

// ResolveByCode maps a join code to its instance. Anything not
// currently usable reads as NotFound.
func (r *Registry) ResolveByCode(ctx context.Context, code string) (*models.Instance, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, status.ErrNotFound
	}

	r.mu.RLock()
	cached, ok := r.byCode[code]
	r.mu.RUnlock()

	inst := cached
	if !ok {
		var err error
		inst, err = r.store.InstanceByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.byCode[inst.Code] = inst
		r.mu.Unlock()
	}

	if !inst.Usable(r.now()) {
		return nil, status.ErrNotFound
	}
	return inst, nil
}

// ResolveByID gates direct instance-id access the same way the code
// selector is gated; entity handlers call it before touching any row
// of the instance.
func (r *Registry) ResolveByID(ctx context.Context, id string) (*models.Instance, error) {
	inst, err := r.store.InstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.Usable(r.now()) {
		return nil, status.ErrNotFound
	}
	return inst, nil
}

// Get returns an instance by id without the usability gate; reserved
// for authorization checks on authenticated coordinator operations.
func (r *Registry) Get(ctx context.Context, id string) (*models.Instance, error) {
	return r.store.InstanceByID(ctx, id)
}

// ResolveByOwner is the owner-selector flavor of ResolveByCode and
// applies the same usability gate.
func (r *Registry) ResolveByOwner(ctx context.Context, owner string) (*models.Instance, error) {
	inst, err := r.store.InstanceByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !inst.Usable(r.now()) {
		return nil, status.ErrNotFound
	}
	return inst, nil
}

// Owned returns the coordinator's instance regardless of status, for
// authorized coordinator views that must see a paused instance in
// order to reactivate it.
func (r *Registry) Owned(ctx context.Context, owner string) (*models.Instance, error) {
	return r.store.InstanceByOwner(ctx, owner)
}

// Create mints a fresh join code and stores the instance as active.
// Code collisions are retried a few times before giving up.
func (r *Registry) Create(ctx context.Context, name, owner string, expiresAt time.Time, codeLen int) (*models.Instance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, status.ErrNameRequired
	}
	if codeLen <= 0 {
		codeLen = 6
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := utils.GenerateJoinCode(codeLen)
		if err != nil {
			return nil, err
		}

		inst := &models.Instance{
			Name:      name,
			Code:      code,
			Status:    models.InstanceStatusActive,
			Owner:     owner,
			ExpiresAt: expiresAt,
		}
		err = r.store.CreateInstance(ctx, inst)
		if errors.Is(err, status.ErrConflict) {
			log.Printf("join code collision on %q, retrying", code)
			continue
		}
		if err != nil {
			return nil, err
		}
		return inst, nil
	}
	return nil, status.ErrUnavailable
}

// SetStatus drives the instance lifecycle; only the three known
// states are accepted.
func (r *Registry) SetStatus(ctx context.Context, id, newStatus string) (*models.Instance, error) {
	switch newStatus {
	case models.InstanceStatusActive, models.InstanceStatusPaused, models.InstanceStatusClosed:
	default:
		return nil, status.ErrInvalid
	}
	return r.store.SetInstanceStatus(ctx, id, newStatus)
}
