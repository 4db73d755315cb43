package services

import (
	"context"
	"sort"

	"karaoke-live/models"
	"karaoke-live/store"
)

// RankingService is a pure read-side projection over an instance's
// performances. It owns no mutable state and is recomputed on every
// read, so it can never diverge from the vote rows.
type RankingService struct {
	store store.PerformanceStore
}

func NewRankingService(st store.PerformanceStore) *RankingService {
	return &RankingService{store: st}
}

// Ranking returns the instance's performances ordered best-first.
// endedOnly restricts the board to closed performances.
func (s *RankingService) Ranking(ctx context.Context, instanceID string, endedOnly bool) ([]*models.Performance, error) {
	perfs, err := s.store.Performances(ctx, instanceID, endedOnly)
	if err != nil {
		return nil, err
	}
	return Rank(perfs), nil
}

// Rank sorts performances by average score descending, vote count
// descending, then creation time ascending. The last key makes the
// order total: re-sorting any permutation yields the same sequence.
func Rank(perfs []*models.Performance) []*models.Performance {
	ranked := make([]*models.Performance, len(perfs))
	copy(ranked, perfs)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.AvgScore != b.AvgScore {
			return a.AvgScore > b.AvgScore
		}
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return ranked
}
