package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinScore = 0
	MaxScore = 10
)

// Vote is one device's score for one performance. Unique on
// (performance, device); immutable once created.
type Vote struct {
	ID            string    `json:"id"`
	PerformanceID string    `json:"performance_id"`
	Device        string    `json:"device"`
	Score         int       `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidScore reports whether s is inside the accepted voting range.
func ValidScore(s int) bool {
	return s >= MinScore && s <= MaxScore
}

// AverageScore computes the arithmetic mean of the given scores.
// Decimal division keeps the stored aggregate free of binary-float
// drift; rounding happens at display time only.
func AverageScore(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}

	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(decimal.NewFromInt(int64(s)))
	}

	avg, _ := sum.Div(decimal.NewFromInt(int64(len(scores)))).Float64()
	return avg
}
