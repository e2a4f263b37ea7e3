// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

// PostgreSQL implementations of the durable repositories.
//
// # Architecture
//
// Repositories here are strictly separated from domain logic. They implement
// the domain-defined interfaces ([UserRepository], [SessionRepository],
// [ProfileRepository]) on top of a shared [pgxpool.Pool].
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, phone, passwordhash, firstname, lastname, gender, role, isemailverified, isblocked, createdat, updatedat`

// scanUser hydrates a User from a row carrying userColumns.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Gender,
		&user.Role,
		&user.IsEmailVerified,
		&user.IsBlocked,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
Create persists a new user record into the users.account table.

Description: Only ever called during promotion of a verified registration,
so isemailverified is already true.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr.Conflict for duplicate email/phone, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, email, phone, passwordhash, firstname, lastname, gender, role, isemailverified, isblocked, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Gender,
		user.Role,
		user.IsEmailVerified,
		user.IsBlocked,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("An account with this email or phone already exists")
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a user record by their unique ID.

Description: Primary key resolution for user accounts.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE id = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

/*
FindByEmail retrieves a user record by their unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE email = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_email_failed: %w", err)
	}

	return user, nil
}

/*
FindByEmailOrPhone retrieves the account matching either identifier.

Description: Duplicate detection for registration. Email matches win over
phone matches when both collide on different rows.

Parameters:
  - context: context.Context
  - email: string
  - phone: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmailOrPhone(context context.Context, email, phone string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE email = $1 OR phone = $2
		ORDER BY (email = $1) DESC
		LIMIT 1`

	user, err := scanUser(repository.pool.QueryRow(context, query, email, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_email_or_phone_failed: %w", err)
	}

	return user, nil
}

/*
UpdatePassword updates only the password hash for a specific user.

Parameters:
  - context: context.Context
  - userID: string
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash string) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, userID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

// # Profile Repository

// PostgresProfileRepository implements the ProfileRepository interface.
type PostgresProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new PostgreSQL implementation of ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

/*
CreateAstrologerProfile persists the provider profile created during promotion.

Parameters:
  - context: context.Context
  - profile: *AstrologerProfile

Returns:
  - error: Storage failures
*/
func (repository *PostgresProfileRepository) CreateAstrologerProfile(context context.Context, profile *AstrologerProfile) error {
	const query = `
		INSERT INTO users.astrologerprofile (
			userid, displayname, bio, experienceyears, languages, specializations, feeperhour, minconsultationminutes, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		profile.UserID,
		profile.DisplayName,
		profile.Bio,
		profile.ExperienceYears,
		profile.Languages,
		profile.Specializations,
		profile.FeePerHour,
		profile.MinConsultationMinutes,
		profile.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_profile_repo_create_failed: %w", err)
	}

	return nil
}

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

const sessionColumns = `id, userid, accesstoken, refreshtoken, expiresat, isactive, ipaddress, useragent, createdat, updatedat`

// scanSession hydrates a Session from a row carrying sessionColumns.
func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.AccessToken,
		&session.RefreshToken,
		&session.ExpiresAt,
		&session.IsActive,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

/*
Create persists a new session record into the users.session table.

Description: The unique index on refreshtoken is the authoritative backstop
against token collisions; a collision surfaces as apperr.Conflict rather
than being retried here.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: apperr.Conflict on token collision, or storage failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (
			id, userid, accesstoken, refreshtoken, expiresat, isactive, ipaddress, useragent, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.UserID,
		session.AccessToken,
		session.RefreshToken,
		session.ExpiresAt,
		session.IsActive,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Session token collision")
		}
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindActiveByRefreshToken retrieves the active session holding the token.

Description: Expiry is deliberately NOT filtered here; the caller performs
lazy expiry so it can deactivate the row it finds.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *Session: Hydrated session metadata
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindActiveByRefreshToken(context context.Context, refreshToken string) (*Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM users.session
		WHERE refreshtoken = $1 AND isactive = TRUE`

	session, err := scanSession(repository.pool.QueryRow(context, query, refreshToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
CountActive returns the number of active sessions held by a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int: Active session count
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) CountActive(context context.Context, userID string) (int, error) {
	const query = "SELECT COUNT(*) FROM users.session WHERE userid = $1 AND isactive = TRUE"

	var count int
	if err := repository.pool.QueryRow(context, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_session_repo_count_failed: %w", err)
	}

	return count, nil
}

/*
FindOldestActive retrieves the user's longest-lived active session.

Description: Ordering by createdat with id as tiebreaker makes capacity
eviction deterministic.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Session: Hydrated session metadata
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindOldestActive(context context.Context, userID string) (*Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM users.session
		WHERE userid = $1 AND isactive = TRUE
		ORDER BY createdat ASC, id ASC
		LIMIT 1`

	session, err := scanSession(repository.pool.QueryRow(context, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_oldest_failed: %w", err)
	}

	return session, nil
}

/*
Deactivate flips a single session to its terminal inactive state.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Revocation failures
*/
func (repository *PostgresSessionRepository) Deactivate(context context.Context, sessionID string) error {
	const query = "UPDATE users.session SET isactive = FALSE, updatedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_session_repo_deactivate_failed: %w", err)
	}
	return nil
}

/*
DeactivateAllForUser flips all active sessions of a user to inactive.

Description: Security nuking of all active sessions, used by revoke-all and
password reset.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (repository *PostgresSessionRepository) DeactivateAllForUser(context context.Context, userID string) error {
	const query = "UPDATE users.session SET isactive = FALSE, updatedat = $2 WHERE userid = $1 AND isactive = TRUE"
	_, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_session_repo_deactivate_all_failed: %w", err)
	}
	return nil
}

/*
UpdateOnRefresh stores the latest signed access token and client metadata.

Parameters:
  - context: context.Context
  - sessionID: string
  - accessToken: string
  - ipAddress: string
  - userAgent: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) UpdateOnRefresh(context context.Context, sessionID, accessToken, ipAddress, userAgent string) error {
	const query = `
		UPDATE users.session
		SET accesstoken = $2, ipaddress = $3, useragent = $4, updatedat = $5
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, sessionID, accessToken, ipAddress, userAgent, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_session_repo_update_refresh_failed: %w", err)
	}
	return nil
}

/*
DeleteExpired permanently removes sessions that have passed their expiration.

Description: Cleanup task to reclaim storage from stale sessions.

Parameters:
  - context: context.Context
  - now: time.Time

Returns:
  - int64: Number of rows removed
  - error: Cleanup failures
*/
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	const query = "DELETE FROM users.session WHERE expiresat <= $1"
	tag, err := repository.pool.Exec(context, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_delete_expired_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
