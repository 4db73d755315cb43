package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInstanceUsable(t *testing.T) {
	now := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)

	inst := &Instance{Status: InstanceStatusActive}
	assert.True(t, inst.Usable(now), "active without expiry")

	inst.Status = InstanceStatusPaused
	assert.False(t, inst.Usable(now))

	inst.Status = InstanceStatusClosed
	assert.False(t, inst.Usable(now))

	inst = &Instance{Status: InstanceStatusActive, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, inst.Usable(now))

	inst.ExpiresAt = now.Add(-time.Minute)
	assert.False(t, inst.Usable(now), "expiry is checked at access time")
}

func TestParticipantNormalize(t *testing.T) {
	p := &Participant{
		Name:   "  Alice  ",
		Phone:  " 555-0101 ",
		Email:  "  Alice@Example.COM ",
		Device: " dev-1 ",
	}
	p.Normalize()

	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "555-0101", p.Phone)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, "dev-1", p.Device)
}

func TestSingerKey(t *testing.T) {
	assert.Equal(t, SingerKey("alice"), SingerKey("  ALICE "))
	assert.Equal(t, SingerKey("Bob"), SingerKey("bob"))
	assert.NotEqual(t, SingerKey("alice"), SingerKey("alicia"))
}

func TestWaitlistEntryBefore(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	a := &WaitlistEntry{Rotation: 0, CreatedAt: t0.Add(time.Minute)}
	b := &WaitlistEntry{Rotation: 1, CreatedAt: t0}

	// Lower rotation wins even against an older entry.
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))

	// Same rotation falls back to creation order.
	c := &WaitlistEntry{Rotation: 0, CreatedAt: t0}
	assert.True(t, c.Before(a))
	assert.False(t, a.Before(c))
}

func TestValidScore(t *testing.T) {
	assert.True(t, ValidScore(MinScore))
	assert.True(t, ValidScore(MaxScore))
	assert.True(t, ValidScore(7))
	assert.False(t, ValidScore(MinScore-1))
	assert.False(t, ValidScore(MaxScore+1))
}

func TestAverageScore(t *testing.T) {
	assert.Equal(t, 0.0, AverageScore(nil))
	assert.Equal(t, 8.0, AverageScore([]int{8}))
	assert.Equal(t, 7.0, AverageScore([]int{8, 6}))

	// 1/3 has no exact binary representation; decimal division keeps
	// the result at the closest float64 to the true mean.
	assert.InDelta(t, 1.0/3.0, AverageScore([]int{0, 0, 1}), 1e-15)
	assert.Equal(t, 7.5, AverageScore([]int{10, 5}))
}
