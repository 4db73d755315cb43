package models

import (
	"strings"
	"time"
)

// Participant is one device's identity within one instance. Unique on
// (instance, device) and, when email is present, on (instance, email).
// Write-once: there is no update path.
type Participant struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Device     string    `json:"device"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Normalize trims the fields that participate in comparisons and
// lower-cases the email before any uniqueness check.
func (p *Participant) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Device = strings.TrimSpace(p.Device)
}
