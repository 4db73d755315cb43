package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"karaoke-live/internal/status"
)

// Gate answers whether an instance currently accepts registrations.
type Gate interface {
	RegistrationOpen(ctx context.Context, instanceID string) (bool, error)
}

// RedisGate reads the registration policy from Redis, where operators
// flip it per instance. An absent key means open: tenants that predate
// the policy feature have no key and must keep working.
type RedisGate struct {
	Redis *redis.Client
}

func NewRedisGate(client *redis.Client) *RedisGate {
	return &RedisGate{Redis: client}
}

func registrationKey(instanceID string) string {
	return fmt.Sprintf("policy:registration_open:%s", instanceID)
}

func (g *RedisGate) RegistrationOpen(ctx context.Context, instanceID string) (bool, error) {
	val, err := g.Redis.Get(ctx, registrationKey(instanceID)).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: registration policy read: %v", status.ErrUnavailable, err)
	}

	switch val {
	case "0", "false", "closed":
		return false, nil
	default:
		return true, nil
	}
}

// SetRegistrationOpen flips the policy; used by coordinator tooling.
func (g *RedisGate) SetRegistrationOpen(ctx context.Context, instanceID string, open bool) error {
	val := "1"
	if !open {
		val = "0"
	}
	if err := g.Redis.Set(ctx, registrationKey(instanceID), val, 0).Err(); err != nil {
		return fmt.Errorf("%w: registration policy write: %v", status.ErrUnavailable, err)
	}
	return nil
}
