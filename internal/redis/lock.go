package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dental-booking/internal/slotlock"
)

var _ slotlock.Locker = (*Locker)(nil)

// Locker is a slot lock shared by every api-server instance.
// The key holds the owner id so only that owner can renew or release it.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = slotlock.DefaultStaleAfter
	}
	return &Locker{
		client: client,
		ttl:    ttl,
		prefix: "lock:slot:",
	}
}

// acquireScript sets the key when absent, or refreshes the ttl when the caller
// already owns it.
var acquireScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 1
end
if val then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *Locker) Acquire(ctx context.Context, slotID, ownerID string) (bool, error) {
	n, err := acquireScript.Run(ctx, l.client, []string{l.prefix + slotID}, ownerID, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("acquire slot lock: %w", err)
	}
	return n == 1, nil
}

func (l *Locker) Release(ctx context.Context, slotID, ownerID string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{l.prefix + slotID}, ownerID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
