// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for durable user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByEmailOrPhone returns the account matching either identifier.

		Description: Used for duplicate detection during registration; the
		caller inspects which identifier collided.

		Parameters:
		  - context: context.Context
		  - email: string
		  - phone: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmailOrPhone(context context.Context, email, phone string) (*User, error)

	/*
		Create persists a brand-new verified user account.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.Conflict on unique violations, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error
}

// ProfileRepository defines the data access contract for astrologer provider
// profiles created during registration promotion.
type ProfileRepository interface {

	/*
		CreateAstrologerProfile persists the provider profile for a new astrologer.

		Parameters:
		  - context: context.Context
		  - profile: *AstrologerProfile

		Returns:
		  - error: Persistence failures
	*/
	CreateAstrologerProfile(context context.Context, profile *AstrologerProfile) error
}

// # Session Data Access

// SessionRepository defines the data access contract for refresh-token sessions.
type SessionRepository interface {

	/*
		Create persists a new active session for an authenticated login.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: apperr.Conflict if the refresh token collides with an
		    existing row (unique-index backstop), or persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindActiveByRefreshToken returns the active session holding the token.

		Description: Revoked and never-issued tokens are indistinguishable;
		both surface as apperr.NotFound.

		Parameters:
		  - context: context.Context
		  - refreshToken: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindActiveByRefreshToken(context context.Context, refreshToken string) (*Session, error)

	/*
		CountActive returns the number of active sessions held by the user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int: Active session count
		  - error: Database retrieval failures
	*/
	CountActive(context context.Context, userID string) (int, error)

	/*
		FindOldestActive returns the user's active session with the earliest
		creation time, ties broken deterministically by id.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindOldestActive(context context.Context, userID string) (*Session, error)

	/*
		Deactivate flips a session to its terminal inactive state.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Persistence failures
	*/
	Deactivate(context context.Context, sessionID string) error

	/*
		DeactivateAllForUser flips every active session of the user to inactive.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	DeactivateAllForUser(context context.Context, userID string) error

	/*
		UpdateOnRefresh stores the newly signed access token and the latest
		client metadata on an existing session, bumping updatedat.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - accessToken: string
		  - ipAddress: string
		  - userAgent: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateOnRefresh(context context.Context, sessionID, accessToken, ipAddress, userAgent string) error

	/*
		DeleteExpired physically removes sessions whose expiry precedes now.

		Description: Storage hygiene only; correctness never depends on it
		because expiry is also enforced lazily on every touch.

		Parameters:
		  - context: context.Context
		  - now: time.Time

		Returns:
		  - int64: Number of rows removed
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}

// # Volatile Data Access

// OtpRepository defines the contract for storing short-lived email challenges.
type OtpRepository interface {

	/*
		Set stores the challenge code keyed by email with the given TTL,
		overwriting any previous challenge for that email.

		Parameters:
		  - context: context.Context
		  - email: string
		  - code: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, email, code string, ttl time.Duration) error

	/*
		Get retrieves the active challenge code for an email.

		Description: Returns apperr.NotFound when absent or expired; the two
		cases are indistinguishable.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - string: Challenge code
		  - error: apperr.NotFound or retrieval failures
	*/
	Get(context context.Context, email string) (string, error)

	/*
		Delete removes the challenge after successful consumption.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, email string) error
}

// RegistrationRepository defines the contract for the registration staging cache.
type RegistrationRepository interface {

	/*
		Stage serializes and stores the pending registration keyed by email,
		with a TTL independent of the OTP window. Overwrites any previous
		staging for the same email.

		Parameters:
		  - context: context.Context
		  - registration: *PendingRegistration
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Stage(context context.Context, registration *PendingRegistration, ttl time.Duration) error

	/*
		Fetch returns the staged registration for an email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *PendingRegistration: Deserialized payload
		  - error: apperr.NotFound or retrieval failures
	*/
	Fetch(context context.Context, email string) (*PendingRegistration, error)

	/*
		Exists reports whether a staged registration is present for the email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - bool: Presence flag
		  - error: Retrieval failures
	*/
	Exists(context context.Context, email string) (bool, error)

	/*
		Discard removes the staged registration after promotion or abandonment.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Persistence failures
	*/
	Discard(context context.Context, email string) error
}

// ResetTokenRepository defines the contract for storing volatile password reset tokens.
type ResetTokenRepository interface {

	/*
		Set stores a reset token associated with a userID for a limited duration.

		Parameters:
		  - context: context.Context
		  - token: string
		  - userID: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, token string, userID string, ttl time.Duration) error

	/*
		Get retrieves the userID associated with a given reset token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - string: UserID
		  - error: apperr.NotFound or retrieval failures
	*/
	Get(context context.Context, token string) (string, error)

	/*
		Delete removes a reset token after successful use.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, token string) error
}
