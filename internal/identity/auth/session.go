// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/sec"
	"github.com/jyotirlabs/jyotir/pkg/uuid"
)

// # Session Policy

// SessionPolicy bundles the tunables governing session issuance and lifetime.
type SessionPolicy struct {
	// MaxActiveSessions caps concurrent active sessions per user. When a
	// login would exceed the cap the oldest active session is revoked first.
	MaxActiveSessions int
	// RefreshTokenBytes is the entropy, in bytes, of generated refresh tokens.
	RefreshTokenBytes int
	// RefreshTokenTTL is the session lifetime measured from creation. The
	// refresh token does not rotate, so this bounds the whole session.
	RefreshTokenTTL time.Duration
	// AccessTokenTTL is the lifetime of each signed access token.
	AccessTokenTTL time.Duration
}

// ClientMetadata carries per-request client attributes recorded on sessions.
type ClientMetadata struct {
	IPAddress string
	UserAgent string
}

// TokenSigner abstracts access-token signing so the manager can be tested
// without key material.
type TokenSigner interface {
	GenerateAccessToken(userID, email, role string, timeToLive time.Duration) (string, error)
}

// # Session Manager

// SessionManager owns the lifecycle of refresh-token sessions: creation with
// cap enforcement, access-token refresh, revocation and expiry sweeping.
type SessionManager struct {
	sessions SessionRepository
	users    UserRepository
	signer   TokenSigner
	policy   SessionPolicy
	logger   *slog.Logger
	now      func() time.Time
}

/*
NewSessionManager creates a session manager.

Parameters:
  - sessions: SessionRepository
  - users: UserRepository - Resolves session owners during refresh
  - signer: TokenSigner
  - policy: SessionPolicy
  - logger: *slog.Logger

Returns:
  - *SessionManager: Configured manager
*/
func NewSessionManager(sessions SessionRepository, users UserRepository, signer TokenSigner, policy SessionPolicy, logger *slog.Logger) *SessionManager {
	if policy.MaxActiveSessions <= 0 {
		policy.MaxActiveSessions = DefaultMaxActiveSessions
	}
	if policy.RefreshTokenBytes <= 0 {
		policy.RefreshTokenBytes = DefaultRefreshTokenBytes
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		signer:   signer,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// TokenPair is the credential set returned to a freshly authenticated client.
type TokenPair struct {
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

/*
CreateSession mints a new session for an authenticated user. When the user is
already at the active-session cap, the oldest active session (earliest
createdat, ties broken by id) is revoked to make room before the new one is
persisted.

Parameters:
  - context: context.Context
  - user: *User - Authenticated account
  - meta: ClientMetadata

Returns:
  - *TokenPair: Signed access token and opaque refresh token
  - error: Signing or persistence failures
*/
func (manager *SessionManager) CreateSession(context context.Context, user *User, meta ClientMetadata) (*TokenPair, error) {
	active, err := manager.sessions.CountActive(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("session_count_failed: %w", err)
	}

	if active >= manager.policy.MaxActiveSessions {
		oldest, err := manager.sessions.FindOldestActive(context, user.ID)
		if err != nil {
			return nil, fmt.Errorf("session_evict_lookup_failed: %w", err)
		}
		if err := manager.sessions.Deactivate(context, oldest.ID); err != nil {
			return nil, fmt.Errorf("session_evict_failed: %w", err)
		}
		manager.logger.InfoContext(context, "session cap reached, oldest revoked",
			slog.String("userId", user.ID),
			slog.String("sessionId", oldest.ID))
	}

	accessToken, err := manager.signer.GenerateAccessToken(user.ID, user.Email, string(user.Role), manager.policy.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("session_sign_failed: %w", err)
	}

	refreshToken, err := sec.GenerateSecureToken(manager.policy.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("session_token_failed: %w", err)
	}

	now := manager.now()
	session := &Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(manager.policy.RefreshTokenTTL),
		IsActive:     true,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := manager.sessions.Create(context, session); err != nil {
		return nil, fmt.Errorf("session_create_failed: %w", err)
	}

	return &TokenPair{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: now.Add(manager.policy.AccessTokenTTL),
	}, nil
}

// RefreshResult carries the outcome of a successful token refresh. The
// refresh token is echoed unchanged: it never rotates.
type RefreshResult struct {
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

/*
RefreshAccessToken exchanges a valid refresh token for a newly signed access
token. Sessions found past their expiry are revoked on the spot (lazy
expiry) and the exchange fails. Unknown and revoked tokens fail identically,
so callers cannot probe which case they hit.

Parameters:
  - context: context.Context
  - refreshToken: string - Opaque token presented by the client
  - meta: ClientMetadata - Recorded on the session as latest-seen client

Returns:
  - *RefreshResult: New access token, the unchanged refresh token, and the
    new access-token expiry
  - error: apperr.Expired for invalid tokens, apperr.Locked for blocked
    accounts, or infrastructure failures
*/
func (manager *SessionManager) RefreshAccessToken(context context.Context, refreshToken string, meta ClientMetadata) (*RefreshResult, error) {
	session, err := manager.sessions.FindActiveByRefreshToken(context, refreshToken)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Expired("Session expired or invalid. Please login again.")
		}
		return nil, fmt.Errorf("session_lookup_failed: %w", err)
	}

	if manager.now().After(session.ExpiresAt) {
		if err := manager.sessions.Deactivate(context, session.ID); err != nil {
			manager.logger.ErrorContext(context, "lazy expiry deactivate failed",
				slog.String("sessionId", session.ID),
				slog.String("error", err.Error()))
		}
		return nil, apperr.Expired("Session expired or invalid. Please login again.")
	}

	user, err := manager.users.FindByID(context, session.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Expired("Session expired or invalid. Please login again.")
		}
		return nil, fmt.Errorf("session_owner_lookup_failed: %w", err)
	}
	if user.IsBlocked {
		return nil, apperr.Locked("Account is blocked. Contact support.")
	}

	accessToken, err := manager.signer.GenerateAccessToken(user.ID, user.Email, string(user.Role), manager.policy.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("session_sign_failed: %w", err)
	}

	if err := manager.sessions.UpdateOnRefresh(context, session.ID, accessToken, meta.IPAddress, meta.UserAgent); err != nil {
		return nil, fmt.Errorf("session_update_failed: %w", err)
	}

	return &RefreshResult{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: manager.now().Add(manager.policy.AccessTokenTTL),
	}, nil
}

/*
Revoke deactivates the session holding the given refresh token. Revoking a
token that is unknown or already revoked is a no-op; revocation is idempotent
and the boolean reports whether an active session was actually deactivated.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - bool: True when an active session matched and was deactivated
  - error: Infrastructure failures only
*/
func (manager *SessionManager) Revoke(context context.Context, refreshToken string) (bool, error) {
	session, err := manager.sessions.FindActiveByRefreshToken(context, refreshToken)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("session_lookup_failed: %w", err)
	}
	if err := manager.sessions.Deactivate(context, session.ID); err != nil {
		return false, fmt.Errorf("session_revoke_failed: %w", err)
	}
	return true, nil
}

/*
RevokeAll deactivates every active session held by a user, typically after a
password reset or an administrative lockout.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Persistence failures
*/
func (manager *SessionManager) RevokeAll(context context.Context, userID string) error {
	if err := manager.sessions.DeactivateAllForUser(context, userID); err != nil {
		return fmt.Errorf("session_revoke_all_failed: %w", err)
	}
	return nil
}

/*
SweepExpired removes sessions whose lifetime has elapsed. Hygiene only;
expired sessions are already unusable through lazy expiry on touch.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of sessions removed
  - error: Persistence failures
*/
func (manager *SessionManager) SweepExpired(context context.Context) (int64, error) {
	removed, err := manager.sessions.DeleteExpired(context, manager.now())
	if err != nil {
		return 0, fmt.Errorf("session_sweep_failed: %w", err)
	}
	if removed > 0 {
		manager.logger.InfoContext(context, "expired sessions swept", slog.Int64("removed", removed))
	}
	return removed, nil
}

// isNotFound reports whether err carries the NOT_FOUND application error.
func isNotFound(err error) bool {
	var ae *apperr.AppError
	return errors.As(err, &ae) && ae.Code == "NOT_FOUND"
}
