package models

import (
	"time"
)

const (
	PerformanceStatusActive = "active"
	PerformanceStatusEnded  = "ended"
)

// Performance is a realized singing slot accepting votes. AvgScore and
// VoteCount are derived from the vote rows, never hand-set. EntryID
// points back at the waitlist row the performance was started from;
// it is informational, rotation fairness stays keyed on singer name.
type Performance struct {
	ID             string    `json:"id"`
	InstanceID     string    `json:"instance_id"`
	EntryID        string    `json:"entry_id,omitempty"`
	Singer         string    `json:"singer"`
	Song           string    `json:"song"`
	VideoRef       string    `json:"video_ref,omitempty"`
	Status         string    `json:"status"` // active, ended
	AvgScore       float64   `json:"avg_score"`
	VoteCount      int       `json:"vote_count"`
	VideoChangedAt time.Time `json:"video_changed_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
