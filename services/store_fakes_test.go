package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"karaoke-live/internal/status"
	"karaoke-live/models"
)

// memStore is an in-memory stand-in for the PocketBase adapter. It
// honors the same contract: typed conflicts, conditional transitions
// under a single lock, aggregates recomputed on vote insert.
type memStore struct {
	mu     sync.Mutex
	lastID int
	clock  time.Time

	instances    map[string]*models.Instance
	participants []*models.Participant
	entries      map[string]*models.WaitlistEntry
	perfs        map[string]*models.Performance
	votes        []*models.Vote
}

func newMemStore() *memStore {
	return &memStore{
		clock:     time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC),
		instances: make(map[string]*models.Instance),
		entries:   make(map[string]*models.WaitlistEntry),
		perfs:     make(map[string]*models.Performance),
	}
}

// tick returns a strictly increasing timestamp so creation order is
// always distinguishable.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memStore) newID() string {
	m.lastID++
	return fmt.Sprintf("rec%012d", m.lastID)
}

// ---- InstanceStore ----

func (m *memStore) InstanceByID(ctx context.Context, id string) (*models.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (m *memStore) InstanceByCode(ctx context.Context, code string) (*models.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inst := range m.instances {
		if inst.Code == code {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (m *memStore) InstanceByOwner(ctx context.Context, owner string) (*models.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inst := range m.instances {
		if inst.Owner == owner {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (m *memStore) CreateInstance(ctx context.Context, inst *models.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.instances {
		if other.Code == inst.Code {
			return fmt.Errorf("%w: join code already in use", status.ErrConflict)
		}
	}

	inst.ID = m.newID()
	inst.CreatedAt = m.tick()
	inst.UpdatedAt = inst.CreatedAt
	cp := *inst
	m.instances[inst.ID] = &cp
	return nil
}

func (m *memStore) SetInstanceStatus(ctx context.Context, id, newStatus string) (*models.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	inst.Status = newStatus
	inst.UpdatedAt = m.tick()
	cp := *inst
	return &cp, nil
}

// ---- ParticipantStore ----

func (m *memStore) ParticipantByDevice(ctx context.Context, instanceID, device string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.participants {
		if p.InstanceID == instanceID && p.Device == device {
			cp := *p
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (m *memStore) CreateParticipant(ctx context.Context, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.participants {
		if other.InstanceID != p.InstanceID {
			continue
		}
		if other.Device == p.Device {
			return status.ErrDeviceRegistered
		}
		if p.Email != "" && other.Email == p.Email {
			return status.ErrEmailTaken
		}
	}

	p.ID = m.newID()
	p.CreatedAt = m.tick()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.participants = append(m.participants, &cp)
	return nil
}

// ---- WaitlistStore ----

func (m *memStore) EntryByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) WaitingEntries(ctx context.Context, instanceID string) ([]*models.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.WaitlistEntry
	for _, e := range m.entries {
		if e.InstanceID == instanceID && e.Status == models.WaitlistStatusWaiting {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *memStore) SingingEntry(ctx context.Context, instanceID string) (*models.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.InstanceID == instanceID && e.Status == models.WaitlistStatusSinging {
			cp := *e
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (m *memStore) MaxRotation(ctx context.Context, instanceID, singer string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.SingerKey(singer)
	max, seen := 0, false
	for _, e := range m.entries {
		if e.InstanceID != instanceID || models.SingerKey(e.Singer) != key {
			continue
		}
		if !seen || e.Rotation > max {
			max = e.Rotation
		}
		seen = true
	}
	return max, seen, nil
}

func (m *memStore) CreateEntry(ctx context.Context, e *models.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.newID()
	e.CreatedAt = m.tick()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *memStore) PromoteEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	if e.Status != models.WaitlistStatusWaiting {
		return nil, status.ErrNotWaiting
	}
	for _, other := range m.entries {
		if other.InstanceID == e.InstanceID && other.ID != id && other.Status == models.WaitlistStatusSinging {
			return nil, status.ErrAlreadySinging
		}
	}

	e.Status = models.WaitlistStatusSinging
	e.UpdatedAt = m.tick()
	cp := *e
	return &cp, nil
}

func (m *memStore) CompleteEntry(ctx context.Context, id string) (*models.WaitlistEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, 0, status.ErrNotFound
	}
	switch e.Status {
	case models.WaitlistStatusSinging:
	case models.WaitlistStatusDone:
		return nil, 0, status.ErrEntryDone
	default:
		return nil, 0, fmt.Errorf("%w: entry is not singing", status.ErrConflict)
	}

	// Done transition and sibling bumps commit under the same lock,
	// matching the adapter's single-transaction contract.
	e.Status = models.WaitlistStatusDone
	e.Rotation++
	e.UpdatedAt = m.tick()

	key := models.SingerKey(e.Singer)
	bumped := 0
	for _, sib := range m.entries {
		if sib.InstanceID != e.InstanceID || sib.ID == id {
			continue
		}
		if sib.Status != models.WaitlistStatusWaiting || models.SingerKey(sib.Singer) != key {
			continue
		}
		sib.Rotation++
		sib.UpdatedAt = m.tick()
		bumped++
	}

	cp := *e
	return &cp, bumped, nil
}

func (m *memStore) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return status.ErrNotFound
	}
	if e.Status == models.WaitlistStatusDone {
		return status.ErrEntryDone
	}
	delete(m.entries, id)
	return nil
}

// ---- PerformanceStore ----

func (m *memStore) PerformanceByID(ctx context.Context, id string) (*models.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.perfs[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ActivePerformance(ctx context.Context, instanceID string) (*models.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.perfs {
		if p.InstanceID == instanceID && p.Status == models.PerformanceStatusActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (m *memStore) Performances(ctx context.Context, instanceID string, endedOnly bool) ([]*models.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Performance
	for _, p := range m.perfs {
		if p.InstanceID != instanceID {
			continue
		}
		if endedOnly && p.Status != models.PerformanceStatusEnded {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreatePerformance(ctx context.Context, p *models.Performance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.perfs {
		if other.InstanceID == p.InstanceID && other.Status == models.PerformanceStatusActive {
			return status.ErrPerformanceActive
		}
	}

	p.ID = m.newID()
	p.Status = models.PerformanceStatusActive
	p.CreatedAt = m.tick()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.perfs[p.ID] = &cp
	return nil
}

func (m *memStore) EndPerformance(ctx context.Context, id string) (*models.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.perfs[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	if p.Status != models.PerformanceStatusActive {
		return nil, status.ErrPerformanceEnded
	}

	p.Status = models.PerformanceStatusEnded
	p.UpdatedAt = m.tick()
	cp := *p
	return &cp, nil
}

func (m *memStore) SetPerformanceVideo(ctx context.Context, id, videoRef string) (*models.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.perfs[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	if p.Status != models.PerformanceStatusActive {
		return nil, status.ErrPerformanceEnded
	}

	p.VideoRef = videoRef
	p.VideoChangedAt = m.tick()
	p.UpdatedAt = p.VideoChangedAt
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateVote(ctx context.Context, v *models.Vote) (*models.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.perfs[v.PerformanceID]
	if !ok {
		return nil, status.ErrNotFound
	}
	if p.Status != models.PerformanceStatusActive {
		return nil, status.ErrPerformanceEnded
	}
	for _, other := range m.votes {
		if other.PerformanceID == v.PerformanceID && other.Device == v.Device {
			return nil, status.ErrAlreadyVoted
		}
	}

	v.ID = m.newID()
	v.CreatedAt = m.tick()
	cp := *v
	m.votes = append(m.votes, &cp)

	var scores []int
	for _, vote := range m.votes {
		if vote.PerformanceID == v.PerformanceID {
			scores = append(scores, vote.Score)
		}
	}
	p.AvgScore = models.AverageScore(scores)
	p.VoteCount = len(scores)
	p.UpdatedAt = m.tick()

	out := *p
	return &out, nil
}

func (m *memStore) VotesFor(ctx context.Context, performanceID string) ([]*models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Vote
	for _, v := range m.votes {
		if v.PerformanceID == performanceID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}
