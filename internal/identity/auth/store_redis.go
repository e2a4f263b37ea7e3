// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/constants"
)

// # OTP Repository

// RedisOtpRepository implements OtpRepository using Redis.
type RedisOtpRepository struct {
	client *redis.Client
}

// NewOtpRepository creates a new Redis-backed OtpRepository.
func NewOtpRepository(client *redis.Client) *RedisOtpRepository {
	return &RedisOtpRepository{client: client}
}

/*
Set stores a challenge code keyed by email with a TTL.

Description: A plain SET, so re-issuing overwrites the previous challenge
and restarts its clock.

Parameters:
  - context: context.Context
  - email: string
  - code: string
  - ttl: time.Duration

Returns:
  - error: Storage failures
*/
func (repository *RedisOtpRepository) Set(context context.Context, email, code string, ttl time.Duration) error {

	// Use constants for key prefix
	key := constants.RedisPrefixOtp + email

	// Set the code with TTL
	if err := repository.client.Set(context, key, code, ttl).Err(); err != nil {
		return fmt.Errorf("redis_otp_set_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Get retrieves the active challenge code for an email.

Description: Returns apperr.NotFound if absent or expired.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - string: Challenge code
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisOtpRepository) Get(context context.Context, email string) (string, error) {

	// Use constants for key prefix
	key := constants.RedisPrefixOtp + email

	// Get the code from Redis
	code, err := repository.client.Get(context, key).Result()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("OTP")
		}
		return "", fmt.Errorf("redis_otp_get_failed: %w", err)
	}

	// Return the code
	return code, nil
}

/*
Delete removes the challenge from Redis.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisOtpRepository) Delete(context context.Context, email string) error {

	// Use constants for key prefix
	key := constants.RedisPrefixOtp + email

	// Delete the code from Redis
	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_otp_delete_failed: %w", err)
	}

	// Return nil on success
	return nil
}

// # Registration Staging Repository

// RedisRegistrationRepository implements RegistrationRepository using Redis.
type RedisRegistrationRepository struct {
	client *redis.Client
}

// NewRegistrationRepository creates a new Redis-backed RegistrationRepository.
func NewRegistrationRepository(client *redis.Client) *RedisRegistrationRepository {
	return &RedisRegistrationRepository{client: client}
}

/*
Stage serializes the pending registration to JSON and stores it keyed by
email with its own TTL, independent of the OTP window.

Parameters:
  - context: context.Context
  - registration: *PendingRegistration
  - ttl: time.Duration

Returns:
  - error: Serialization or storage failures
*/
func (repository *RedisRegistrationRepository) Stage(context context.Context, registration *PendingRegistration, ttl time.Duration) error {

	// Use constants for key prefix
	key := constants.RedisPrefixRegistration + registration.Email

	// Serialize the full payload
	payload, err := json.Marshal(registration)
	if err != nil {
		return fmt.Errorf("redis_registration_marshal_failed: %w", err)
	}

	// Set the payload with TTL
	if err := repository.client.Set(context, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_registration_set_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Fetch retrieves and deserializes the staged registration for an email.

Description: Returns apperr.NotFound if absent or expired.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *PendingRegistration: Deserialized payload
  - error: apperr.NotFound, deserialization or connectivity errors
*/
func (repository *RedisRegistrationRepository) Fetch(context context.Context, email string) (*PendingRegistration, error) {

	// Use constants for key prefix
	key := constants.RedisPrefixRegistration + email

	// Get the payload from Redis
	payload, err := repository.client.Get(context, key).Bytes()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Registration")
		}
		return nil, fmt.Errorf("redis_registration_get_failed: %w", err)
	}

	// Deserialize the payload
	registration := &PendingRegistration{}
	if err := json.Unmarshal(payload, registration); err != nil {
		return nil, fmt.Errorf("redis_registration_unmarshal_failed: %w", err)
	}

	// Return the registration
	return registration, nil
}

/*
Exists reports whether a staged registration is present for the email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - bool: Presence flag
  - error: Connectivity errors
*/
func (repository *RedisRegistrationRepository) Exists(context context.Context, email string) (bool, error) {

	// Use constants for key prefix
	key := constants.RedisPrefixRegistration + email

	// Check key presence
	count, err := repository.client.Exists(context, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis_registration_exists_failed: %w", err)
	}

	// Return the presence flag
	return count > 0, nil
}

/*
Discard removes the staged registration from Redis.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisRegistrationRepository) Discard(context context.Context, email string) error {

	// Use constants for key prefix
	key := constants.RedisPrefixRegistration + email

	// Delete the payload from Redis
	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_registration_delete_failed: %w", err)
	}

	// Return nil on success
	return nil
}

// # Reset Token Repository

// RedisResetTokenRepository implements ResetTokenRepository using Redis.
type RedisResetTokenRepository struct {
	client *redis.Client
}

// NewResetTokenRepository creates a new Redis-backed ResetTokenRepository.
func NewResetTokenRepository(client *redis.Client) *RedisResetTokenRepository {
	return &RedisResetTokenRepository{client: client}
}

/*
Set stores a reset token with its associated userID and TTL.

Parameters:
  - context: context.Context
  - token: string
  - userID: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisResetTokenRepository) Set(context context.Context, token string, userID string, ttl time.Duration) error {

	// Use constants for key prefix
	key := constants.RedisPrefixResetToken + token

	// Set the token with TTL
	if err := repository.client.Set(context, key, userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_reset_token_set_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Get retrieves the userID for a given token.

Description: Returns apperr.NotFound if the token is absent or expired.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - string: Original UserID
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisResetTokenRepository) Get(context context.Context, token string) (string, error) {

	// Use constants for key prefix
	key := constants.RedisPrefixResetToken + token

	// Get the token from Redis
	userID, err := repository.client.Get(context, key).Result()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Reset token")
		}
		return "", fmt.Errorf("redis_reset_token_get_failed: %w", err)
	}

	// Return the userID
	return userID, nil
}

/*
Delete removes the token from Redis.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisResetTokenRepository) Delete(context context.Context, token string) error {

	// Use constants for key prefix
	key := constants.RedisPrefixResetToken + token

	// Delete the token from Redis
	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_reset_token_delete_failed: %w", err)
	}

	// Return nil on success
	return nil
}
