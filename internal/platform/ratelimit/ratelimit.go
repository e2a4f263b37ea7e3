// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

/*
Package ratelimit implements a fixed-window request counter backed by Redis.

It throttles sensitive unauthenticated endpoints (password-reset flows) keyed
by (action, client identifier). Unlike the in-process token bucket in the
middleware package, this limiter externalizes its counters so that every
instance of the service enforces the same quota.

Algorithm:

  - First request for a (action, identifier) pair creates a counter = 1 with
    TTL = window length.
  - Subsequent requests within the window atomically increment the counter.
  - The request is limited when the post-increment count exceeds the action's
    configured limit. Limited callers still increment, so repeated probing
    counts against the quota instead of silently extending the window.
  - When the key expires, the next request starts a fresh window.

The increment is a single INCR round trip; a read-then-write pattern would let
two concurrent requests both pass under the limit.
*/
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jyotirlabs/jyotir/internal/platform/constants"
)

// Config holds the per-action request quotas for one fixed window.
type Config struct {
	// Window is the length of the fixed counting window.
	Window time.Duration

	// Limits maps an action name to its maximum requests per window.
	Limits map[string]int

	// DefaultLimit applies to actions absent from Limits.
	DefaultLimit int
}

// Limiter enforces per-action fixed-window quotas against a Redis store.
type Limiter struct {
	client *redis.Client
	config Config
}

// NewLimiter constructs a [Limiter] with the given quota configuration.
func NewLimiter(client *redis.Client, config Config) *Limiter {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 5
	}
	return &Limiter{client: client, config: config}
}

/*
IsLimited records one request for (action, identifier) and reports whether the
caller is over quota for the current window.

Description: The counter is incremented unconditionally, including for
already-limited callers. Window creation and expiry are driven entirely by
the key's TTL; there is no sliding decay.

Parameters:
  - context: context.Context
  - action: string (e.g. "forgot_password")
  - identifier: string (client IP or account identifier)

Returns:
  - bool: true when the post-increment count exceeds the action's limit
  - error: Store connectivity failures (fail closed is the caller's choice)
*/
func (limiter *Limiter) IsLimited(context context.Context, action, identifier string) (bool, error) {

	key := fmt.Sprintf("%s%s:%s", constants.RedisPrefixRateLimit, action, identifier)

	// Atomic single-round-trip increment. INCR creates the key at 1 when absent.
	count, err := limiter.client.Incr(context, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit_incr_failed: %w", err)
	}

	// A count of 1 means this request opened a fresh window; arm its TTL.
	// If the process dies between INCR and EXPIRE the key would persist, so
	// NX-expire is retried on every request that observes a missing TTL.
	if count == 1 {
		if err := limiter.client.Expire(context, key, limiter.config.Window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit_expire_failed: %w", err)
		}
	} else if count > 1 {
		// ExpireNX only sets a TTL when none exists; repairs orphaned keys.
		_ = limiter.client.ExpireNX(context, key, limiter.config.Window).Err()
	}

	return count > int64(limiter.limitFor(action)), nil
}

// Window returns the configured fixed-window length.
func (limiter *Limiter) Window() time.Duration {
	return limiter.config.Window
}

// limitFor resolves the quota for an action, falling back to DefaultLimit.
func (limiter *Limiter) limitFor(action string) int {
	if limit, ok := limiter.config.Limits[action]; ok && limit > 0 {
		return limit
	}
	return limiter.config.DefaultLimit
}
