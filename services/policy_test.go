package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karaoke-live/internal/status"
)

func TestRedisGate_DefaultsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	gate := NewRedisGate(db)

	// No policy key means open: tenants predating the feature keep
	// accepting registrations.
	mock.ExpectGet("policy:registration_open:inst1").RedisNil()

	open, err := gate.RegistrationOpen(context.Background(), "inst1")
	require.NoError(t, err)
	assert.True(t, open)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGate_Closed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	gate := NewRedisGate(db)

	for _, val := range []string{"0", "false", "closed"} {
		mock.ExpectGet("policy:registration_open:inst1").SetVal(val)

		open, err := gate.RegistrationOpen(context.Background(), "inst1")
		require.NoError(t, err)
		assert.False(t, open, "value %q should close the gate", val)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGate_Open(t *testing.T) {
	db, mock := redismock.NewClientMock()
	gate := NewRedisGate(db)

	mock.ExpectGet("policy:registration_open:inst1").SetVal("1")

	open, err := gate.RegistrationOpen(context.Background(), "inst1")
	require.NoError(t, err)
	assert.True(t, open)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGate_Unavailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	gate := NewRedisGate(db)

	mock.ExpectGet("policy:registration_open:inst1").SetErr(errors.New("connection refused"))

	_, err := gate.RegistrationOpen(context.Background(), "inst1")
	assert.ErrorIs(t, err, status.ErrUnavailable)
}

func TestRedisGate_SetRegistrationOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	gate := NewRedisGate(db)

	mock.ExpectSet("policy:registration_open:inst1", "0", 0).SetVal("OK")

	err := gate.SetRegistrationOpen(context.Background(), "inst1", false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
