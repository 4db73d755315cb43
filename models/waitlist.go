package models

import (
	"strings"
	"time"
)

const (
	WaitlistStatusWaiting = "waiting"
	WaitlistStatusSinging = "singing"
	WaitlistStatusDone    = "done"
)

// WaitlistEntry is a queued request to sing. Rotation carries the
// singer's fairness state: the number of times this singer has already
// performed, as known when the entry was created or last bumped.
type WaitlistEntry struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Singer     string    `json:"singer"`
	Song       string    `json:"song"`
	VideoRef   string    `json:"video_ref,omitempty"`
	Rotation   int       `json:"rotation"`
	Status     string    `json:"status"` // waiting, singing, done
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SingerKey folds a singer display name for fairness comparisons.
// Rotation is tracked per singer identity, not per queue slot.
func SingerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Before reports whether e precedes other in the queue order:
// lower rotation first, earlier creation breaks ties.
func (e *WaitlistEntry) Before(other *WaitlistEntry) bool {
	if e.Rotation != other.Rotation {
		return e.Rotation < other.Rotation
	}
	return e.CreatedAt.Before(other.CreatedAt)
}
