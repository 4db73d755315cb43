package services

import (
	"context"
	"strings"

	"karaoke-live/internal/status"
	"karaoke-live/models"
	"karaoke-live/monitoring"
	"karaoke-live/store"
)

// QueueService owns the singer waitlist of each instance and the
// fairness policy deciding who sings next: waiting entries are ordered
// by (rotation asc, created asc), so whoever has performed the fewest
// times goes first and ties fall back to first-come-first-served.
type QueueService struct {
	store store.WaitlistStore
}

func NewQueueService(st store.WaitlistStore) *QueueService {
	return &QueueService{store: st}
}

// Enqueue appends a singer to the waitlist. The rotation counter is
// seeded from the singer's highest previously recorded rotation in the
// instance, so leaving and re-enqueuing cannot reset a singer's place
// in the fairness order.
func (s *QueueService) Enqueue(ctx context.Context, instanceID, singer, song, videoRef string) (*models.WaitlistEntry, error) {
	singer = strings.TrimSpace(singer)
	if singer == "" {
		return nil, status.ErrNameRequired
	}

	rotation, seen, err := s.store.MaxRotation(ctx, instanceID, singer)
	if err != nil {
		return nil, err
	}
	if !seen {
		rotation = 0
	}

	entry := &models.WaitlistEntry{
		InstanceID: instanceID,
		Singer:     singer,
		Song:       strings.TrimSpace(song),
		VideoRef:   videoRef,
		Rotation:   rotation,
		Status:     models.WaitlistStatusWaiting,
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	monitoring.TrackQueueOperation("enqueue", instanceID)
	return entry, nil
}

// Get returns one entry by id.
func (s *QueueService) Get(ctx context.Context, entryID string) (*models.WaitlistEntry, error) {
	return s.store.EntryByID(ctx, entryID)
}

// List returns the waiting entries in queue order.
func (s *QueueService) List(ctx context.Context, instanceID string) ([]*models.WaitlistEntry, error) {
	return s.store.WaitingEntries(ctx, instanceID)
}

// PeekNext returns the waiting entry that sings next, or
// status.ErrNotFound when the queue is empty.
func (s *QueueService) PeekNext(ctx context.Context, instanceID string) (*models.WaitlistEntry, error) {
	entries, err := s.store.WaitingEntries(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, status.ErrNotFound
	}

	// The store returns queue order, but do not rely on it: the
	// ordering rule lives here.
	next := entries[0]
	for _, e := range entries[1:] {
		if e.Before(next) {
			next = e
		}
	}
	return next, nil
}

// NowSinging returns the instance's singing entry, if any.
func (s *QueueService) NowSinging(ctx context.Context, instanceID string) (*models.WaitlistEntry, error) {
	return s.store.SingingEntry(ctx, instanceID)
}

// Promote moves a waiting entry into the "now performing" slot. The
// store refuses while another entry of the instance is singing, so two
// racing coordinators cannot both succeed.
func (s *QueueService) Promote(ctx context.Context, entryID string) (*models.WaitlistEntry, error) {
	entry, err := s.store.PromoteEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	monitoring.TrackQueueOperation("promote", entry.InstanceID)
	return entry, nil
}

// Complete finishes the singing entry and bumps the rotation of every
// other waiting entry with the same singer name, in one storage
// transaction, so all of the singer's queued slots reflect the new
// experience count at once or the entry stays singing and Complete
// can be retried.
func (s *QueueService) Complete(ctx context.Context, entryID string) (*models.WaitlistEntry, error) {
	entry, bumped, err := s.store.CompleteEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if bumped > 0 {
		monitoring.TrackQueueOperation("rotation_bump", entry.InstanceID)
	}

	monitoring.TrackQueueOperation("complete", entry.InstanceID)
	return entry, nil
}

// Remove cancels a non-terminal entry; done entries stay for the
// record.
func (s *QueueService) Remove(ctx context.Context, entryID string) error {
	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return err
	}

	monitoring.TrackQueueOperation("remove", "")
	return nil
}
