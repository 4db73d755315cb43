package models

import (
	"time"
)

const (
	InstanceStatusActive = "active"
	InstanceStatusPaused = "paused"
	InstanceStatusClosed = "closed"
)

// Instance is one isolated karaoke event. Every other entity carries its id
// and is never visible across instance boundaries.
type Instance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Status    string    `json:"status"` // active, paused, closed
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Usable reports whether the instance may be served to public callers
// at the given wall-clock time. Expiry is checked at access time,
// there is no background sweep.
func (i *Instance) Usable(now time.Time) bool {
	if i.Status != InstanceStatusActive {
		return false
	}
	if !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt) {
		return false
	}
	return true
}
