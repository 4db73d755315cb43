package services

import (
	"context"
	"fmt"

	"karaoke-live/internal/status"
	"karaoke-live/models"
	"karaoke-live/store"
)

// IdentityService maps an anonymous device to a participant record
// scoped to one instance. Identity is write-once per device: there is
// no update or delete path.
type IdentityService struct {
	store store.ParticipantStore
	gate  Gate
}

func NewIdentityService(st store.ParticipantStore, gate Gate) *IdentityService {
	return &IdentityService{store: st, gate: gate}
}

// Lookup returns the participant registered for the device, or
// status.ErrNotFound.
func (s *IdentityService) Lookup(ctx context.Context, instanceID, device string) (*models.Participant, error) {
	if device == "" {
		return nil, status.ErrNotFound
	}
	return s.store.ParticipantByDevice(ctx, instanceID, device)
}

// Register creates the device's identity. Conflicts keep their
// constraint-specific reason: the caller's remediation for "this
// device already has an identity" differs from "that email is taken".
func (s *IdentityService) Register(ctx context.Context, instanceID, device, name, phone, email string) (*models.Participant, error) {
	p := &models.Participant{
		InstanceID: instanceID,
		Name:       name,
		Phone:      phone,
		Email:      email,
		Device:     device,
	}
	p.Normalize()

	if p.Name == "" {
		return nil, status.ErrNameRequired
	}
	if p.Device == "" {
		return nil, fmt.Errorf("%w: device identifier is required", status.ErrInvalid)
	}

	open, err := s.gate.RegistrationOpen(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, status.ErrRegistrationClosed
	}

	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
