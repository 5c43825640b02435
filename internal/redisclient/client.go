package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_slot.lua
var claimSlotScript string

//go:embed scripts/release_slot.lua
var releaseSlotScript string

// Client fronts the coupon-ticket counters kept in Redis. The counters are
// a fast admission gate for coupon claims; the database ticket pool stays
// authoritative.
type Client struct {
	rdb           *redis.Client
	claimScript   *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with the gate scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		claimScript:   redis.NewScript(claimSlotScript),
		releaseScript: redis.NewScript(releaseSlotScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func couponKey(couponID int64) string {
	return fmt.Sprintf("coupon:tickets:%d", couponID)
}

// ClaimSlot atomically takes one slot from a coupon counter. Returns
// (true, nil) when a slot was taken, (false, nil) when the counter is
// exhausted. An uninitialized counter is an error so callers fall back to
// the database rather than treating it as sold out.
func (c *Client) ClaimSlot(ctx context.Context, couponID int64) (bool, error) {
	result, err := c.claimScript.Run(ctx, c.rdb, []string{couponKey(couponID)}).Result()
	if err != nil {
		return false, fmt.Errorf("claim slot script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("coupon counter not initialized: %d", couponID)
	}
}

// ReleaseSlot returns one slot to a coupon counter (claim compensation)
func (c *Client) ReleaseSlot(ctx context.Context, couponID int64) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{couponKey(couponID)}).Result()
	if err != nil {
		return fmt.Errorf("release slot script failed: %w", err)
	}
	return nil
}

// InitCounter seeds a coupon counter with the remaining ticket count
func (c *Client) InitCounter(ctx context.Context, couponID int64, remaining int) error {
	return c.rdb.Set(ctx, couponKey(couponID), remaining, 0).Err()
}
