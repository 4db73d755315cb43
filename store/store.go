package store

import (
	"context"

	"karaoke-live/models"
)

// The services consume these narrow interfaces; the PocketBase adapter
// in this package implements all of them. State transitions are
// conditional at this layer: the check and the write happen inside one
// storage transaction so racing coordinators cannot both succeed.

type InstanceStore interface {
	InstanceByID(ctx context.Context, id string) (*models.Instance, error)
	InstanceByCode(ctx context.Context, code string) (*models.Instance, error)
	InstanceByOwner(ctx context.Context, owner string) (*models.Instance, error)
	CreateInstance(ctx context.Context, inst *models.Instance) error
	SetInstanceStatus(ctx context.Context, id, status string) (*models.Instance, error)
}

type ParticipantStore interface {
	ParticipantByDevice(ctx context.Context, instanceID, device string) (*models.Participant, error)
	// CreateParticipant rejects duplicates with status.ErrDeviceRegistered
	// or status.ErrEmailTaken depending on the violated constraint.
	CreateParticipant(ctx context.Context, p *models.Participant) error
}

type WaitlistStore interface {
	EntryByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	// WaitingEntries returns the waiting entries of an instance ordered
	// by (rotation asc, created asc).
	WaitingEntries(ctx context.Context, instanceID string) ([]*models.WaitlistEntry, error)
	SingingEntry(ctx context.Context, instanceID string) (*models.WaitlistEntry, error)
	// MaxRotation returns the highest rotation recorded for the singer
	// (folded via models.SingerKey) across all entry statuses, and
	// whether the singer has appeared at all.
	MaxRotation(ctx context.Context, instanceID, singer string) (int, bool, error)
	CreateEntry(ctx context.Context, e *models.WaitlistEntry) error
	// PromoteEntry moves a waiting entry to singing iff no other entry
	// of the instance is singing.
	PromoteEntry(ctx context.Context, id string) (*models.WaitlistEntry, error)
	// CompleteEntry moves a singing entry to done, increments its
	// rotation to record the completed performance, and in the same
	// transaction bumps the rotation of every other waiting entry of
	// the singer. Returns the entry and the sibling bump count; the
	// transition and the bumps commit together or not at all.
	CompleteEntry(ctx context.Context, id string) (*models.WaitlistEntry, int, error)
	// DeleteEntry removes a non-terminal entry.
	DeleteEntry(ctx context.Context, id string) error
}

type PerformanceStore interface {
	PerformanceByID(ctx context.Context, id string) (*models.Performance, error)
	ActivePerformance(ctx context.Context, instanceID string) (*models.Performance, error)
	// Performances returns all (or only ended) performances of an
	// instance; ordering is left to the ranking projection.
	Performances(ctx context.Context, instanceID string, endedOnly bool) ([]*models.Performance, error)
	// CreatePerformance rejects with status.ErrPerformanceActive while
	// another performance of the instance is still active.
	CreatePerformance(ctx context.Context, p *models.Performance) error
	EndPerformance(ctx context.Context, id string) (*models.Performance, error)
	SetPerformanceVideo(ctx context.Context, id, videoRef string) (*models.Performance, error)
	// CreateVote inserts the vote and recomputes the performance
	// aggregates in the same transaction. Duplicate (performance,
	// device) pairs are rejected with status.ErrAlreadyVoted, votes on
	// ended performances with status.ErrPerformanceEnded.
	CreateVote(ctx context.Context, v *models.Vote) (*models.Performance, error)
	VotesFor(ctx context.Context, performanceID string) ([]*models.Vote, error)
}
