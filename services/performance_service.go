package services

import (
	"context"
	"fmt"
	"strings"

	"karaoke-live/internal/status"
	"karaoke-live/models"
	"karaoke-live/monitoring"
	"karaoke-live/store"
)

// PerformanceService tracks the active performance of each instance
// and its votes. At most one performance is active per instance, and
// the policy is explicit: callers must End the current one before
// Start succeeds again.
type PerformanceService struct {
	store store.PerformanceStore
}

func NewPerformanceService(st store.PerformanceStore) *PerformanceService {
	return &PerformanceService{store: st}
}

// Start opens a new active performance with zero aggregated votes.
// entryID records which waitlist row spawned it and may be empty.
func (s *PerformanceService) Start(ctx context.Context, instanceID, entryID, singer, song, videoRef string) (*models.Performance, error) {
	singer = strings.TrimSpace(singer)
	if singer == "" {
		return nil, status.ErrNameRequired
	}

	p := &models.Performance{
		InstanceID: instanceID,
		EntryID:    entryID,
		Singer:     singer,
		Song:       strings.TrimSpace(song),
		VideoRef:   videoRef,
		Status:     models.PerformanceStatusActive,
	}
	if err := s.store.CreatePerformance(ctx, p); err != nil {
		return nil, err
	}

	monitoring.TrackPerformanceStarted(instanceID)
	return p, nil
}

// Get returns one performance by id.
func (s *PerformanceService) Get(ctx context.Context, performanceID string) (*models.Performance, error) {
	return s.store.PerformanceByID(ctx, performanceID)
}

// Active returns the instance's active performance, if any.
func (s *PerformanceService) Active(ctx context.Context, instanceID string) (*models.Performance, error) {
	return s.store.ActivePerformance(ctx, instanceID)
}

// CastVote records one device's score. Scores are whole numbers in
// [0, 10]; each device votes at most once per performance and a
// resubmission is rejected, never overwritten. On success the
// performance aggregates are recomputed over all of its votes.
func (s *PerformanceService) CastVote(ctx context.Context, performanceID, device string, score int) (*models.Performance, error) {
	if device == "" {
		return nil, fmt.Errorf("%w: device identifier is required", status.ErrInvalid)
	}
	if !models.ValidScore(score) {
		return nil, status.ErrScoreOutOfRange
	}

	perf, err := s.store.CreateVote(ctx, &models.Vote{
		PerformanceID: performanceID,
		Device:        device,
		Score:         score,
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackVote(perf.InstanceID, score)
	return perf, nil
}

// End closes voting; the transition is terminal and later votes are
// rejected even if they raced the transition.
func (s *PerformanceService) End(ctx context.Context, performanceID string) (*models.Performance, error) {
	perf, err := s.store.EndPerformance(ctx, performanceID)
	if err != nil {
		return nil, err
	}

	monitoring.TrackPerformanceEnded(perf.InstanceID)
	return perf, nil
}

// ChangeVideo swaps the backing video of the active performance and
// stamps the change time.
func (s *PerformanceService) ChangeVideo(ctx context.Context, performanceID, videoRef string) (*models.Performance, error) {
	if strings.TrimSpace(videoRef) == "" {
		return nil, fmt.Errorf("%w: video reference is required", status.ErrInvalid)
	}
	return s.store.SetPerformanceVideo(ctx, performanceID, videoRef)
}

// Votes lists the recorded votes of a performance.
func (s *PerformanceService) Votes(ctx context.Context, performanceID string) ([]*models.Vote, error) {
	return s.store.VotesFor(ctx, performanceID)
}
