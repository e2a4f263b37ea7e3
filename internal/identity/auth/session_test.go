// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyotirlabs/jyotir/internal/identity/auth"
	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/sec"
)

// # Test Doubles

// memorySessionRepository is an in-memory SessionRepository.
type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{sessions: make(map[string]*auth.Session)}
}

func (repository *memorySessionRepository) Create(_ context.Context, session *auth.Session) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, existing := range repository.sessions {
		if existing.RefreshToken == session.RefreshToken {
			return apperr.Conflict("Session token collision")
		}
	}
	clone := *session
	repository.sessions[session.ID] = &clone
	return nil
}

func (repository *memorySessionRepository) FindActiveByRefreshToken(_ context.Context, refreshToken string) (*auth.Session, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, session := range repository.sessions {
		if session.RefreshToken == refreshToken && session.IsActive {
			clone := *session
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Session")
}

func (repository *memorySessionRepository) CountActive(_ context.Context, userID string) (int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	count := 0
	for _, session := range repository.sessions {
		if session.UserID == userID && session.IsActive {
			count++
		}
	}
	return count, nil
}

func (repository *memorySessionRepository) FindOldestActive(_ context.Context, userID string) (*auth.Session, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	active := make([]*auth.Session, 0)
	for _, session := range repository.sessions {
		if session.UserID == userID && session.IsActive {
			active = append(active, session)
		}
	}
	if len(active) == 0 {
		return nil, apperr.NotFound("Session")
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	clone := *active[0]
	return &clone, nil
}

func (repository *memorySessionRepository) Deactivate(_ context.Context, sessionID string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	if session, ok := repository.sessions[sessionID]; ok {
		session.IsActive = false
	}
	return nil
}

func (repository *memorySessionRepository) DeactivateAllForUser(_ context.Context, userID string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, session := range repository.sessions {
		if session.UserID == userID {
			session.IsActive = false
		}
	}
	return nil
}

func (repository *memorySessionRepository) UpdateOnRefresh(_ context.Context, sessionID, accessToken, ipAddress, userAgent string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	if session, ok := repository.sessions[sessionID]; ok {
		session.AccessToken = accessToken
		session.IPAddress = ipAddress
		session.UserAgent = userAgent
		session.UpdatedAt = time.Now()
	}
	return nil
}

func (repository *memorySessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	var removed int64
	for id, session := range repository.sessions {
		if !session.ExpiresAt.After(now) {
			delete(repository.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// get returns the stored session by id, bypassing activity filters.
func (repository *memorySessionRepository) get(sessionID string) *auth.Session {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	if session, ok := repository.sessions[sessionID]; ok {
		clone := *session
		return &clone
	}
	return nil
}

// put stores a session verbatim, bypassing the manager.
func (repository *memorySessionRepository) put(session *auth.Session) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	clone := *session
	repository.sessions[session.ID] = &clone
}

// memoryUserRepository is an in-memory UserRepository keyed by id.
type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*auth.User)}
}

func (repository *memoryUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	if user, ok := repository.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (repository *memoryUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, user := range repository.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *memoryUserRepository) FindByEmailOrPhone(_ context.Context, email, phone string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, user := range repository.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	for _, user := range repository.users {
		if user.Phone == phone {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *memoryUserRepository) Create(_ context.Context, user *auth.User) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, existing := range repository.users {
		if existing.Email == user.Email || existing.Phone == user.Phone {
			return apperr.Conflict("An account with this email or phone already exists")
		}
	}
	clone := *user
	repository.users[user.ID] = &clone
	return nil
}

func (repository *memoryUserRepository) UpdatePassword(_ context.Context, userID, newHash string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	if user, ok := repository.users[userID]; ok {
		user.PasswordHash = newHash
	}
	return nil
}

// put stores a user verbatim.
func (repository *memoryUserRepository) put(user *auth.User) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	clone := *user
	repository.users[user.ID] = &clone
}

// staticSigner returns deterministic tokens so assertions can count issuance.
type staticSigner struct {
	mu     sync.Mutex
	issued int
}

func (signer *staticSigner) GenerateAccessToken(userID, email, role string, timeToLive time.Duration) (string, error) {
	signer.mu.Lock()
	defer signer.mu.Unlock()
	signer.issued++
	return fmt.Sprintf("access-%s-%d", userID, signer.issued), nil
}

// # Helpers

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() auth.SessionPolicy {
	return auth.SessionPolicy{
		MaxActiveSessions: 5,
		RefreshTokenBytes: 32,
		RefreshTokenTTL:   30 * 24 * time.Hour,
		AccessTokenTTL:    2 * time.Hour,
	}
}

func newTestSessionManager(t *testing.T) (*auth.SessionManager, *memorySessionRepository, *memoryUserRepository, *auth.User) {
	t.Helper()

	sessions := newMemorySessionRepository()
	users := newMemoryUserRepository()
	user := &auth.User{
		ID:    "0195c3a8-0000-7000-8000-000000000001",
		Email: "client@example.com",
		Role:  sec.RoleClient,
	}
	users.put(user)

	manager := auth.NewSessionManager(sessions, users, &staticSigner{}, testPolicy(), testLogger())
	return manager, sessions, users, user
}

// # Tests

/*
TestSessionManager_CreateSession verifies that a login produces a usable
token pair and an active session record.
*/
func TestSessionManager_CreateSession(t *testing.T) {
	manager, sessions, _, user := newTestSessionManager(t)
	ctx := context.Background()

	// 1. Open a session
	pair, err := manager.CreateSession(ctx, user, auth.ClientMetadata{IPAddress: "10.0.0.1", UserAgent: "test-agent"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.TokenExpiresAt.After(time.Now()))

	// 2. The session should be resolvable by its refresh token
	session, err := sessions.FindActiveByRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.True(t, session.IsActive)
	assert.Equal(t, "10.0.0.1", session.IPAddress)
	assert.Equal(t, "test-agent", session.UserAgent)
}

/*
TestSessionManager_CapEviction verifies that opening a session past the cap
revokes exactly the oldest active session.
*/
func TestSessionManager_CapEviction(t *testing.T) {
	manager, sessions, _, user := newTestSessionManager(t)
	ctx := context.Background()

	// 1. Fill the user's session quota
	tokens := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		pair, err := manager.CreateSession(ctx, user, auth.ClientMetadata{})
		require.NoError(t, err)
		tokens = append(tokens, pair.RefreshToken)
		// Distinct creation times keep eviction order unambiguous.
		time.Sleep(2 * time.Millisecond)
	}

	count, err := sessions.CountActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// 2. A sixth login must evict the oldest session
	sixth, err := manager.CreateSession(ctx, user, auth.ClientMetadata{})
	require.NoError(t, err)

	count, err = sessions.CountActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// 3. The first session is gone, the rest survive
	_, err = sessions.FindActiveByRefreshToken(ctx, tokens[0])
	assert.Error(t, err)

	for _, token := range tokens[1:] {
		_, err = sessions.FindActiveByRefreshToken(ctx, token)
		assert.NoError(t, err)
	}
	_, err = sessions.FindActiveByRefreshToken(ctx, sixth.RefreshToken)
	assert.NoError(t, err)
}

/*
TestSessionManager_Refresh verifies that a refresh returns a new access token
while keeping the same refresh token valid.
*/
func TestSessionManager_Refresh(t *testing.T) {
	manager, _, _, user := newTestSessionManager(t)
	ctx := context.Background()

	pair, err := manager.CreateSession(ctx, user, auth.ClientMetadata{})
	require.NoError(t, err)

	// 1. First refresh yields a fresh access token and echoes the same
	// refresh token with a future expiry
	first, err := manager.RefreshAccessToken(ctx, pair.RefreshToken, auth.ClientMetadata{IPAddress: "10.0.0.2"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.AccessToken)
	assert.NotEqual(t, pair.AccessToken, first.AccessToken)
	assert.Equal(t, pair.RefreshToken, first.RefreshToken)
	assert.True(t, first.TokenExpiresAt.After(time.Now()))

	// 2. The refresh token does not rotate: it keeps working
	second, err := manager.RefreshAccessToken(ctx, pair.RefreshToken, auth.ClientMetadata{})
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, pair.RefreshToken, second.RefreshToken)
}

/*
TestSessionManager_RefreshUnknownToken verifies that unknown and revoked
tokens fail identically with the EXPIRED code.
*/
func TestSessionManager_RefreshUnknownToken(t *testing.T) {
	manager, _, _, user := newTestSessionManager(t)
	ctx := context.Background()

	// 1. A token that was never issued
	_, err := manager.RefreshAccessToken(ctx, "never-issued", auth.ClientMetadata{})
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "EXPIRED", appError.Code)

	// 2. A revoked token produces the exact same failure
	pair, err := manager.CreateSession(ctx, user, auth.ClientMetadata{})
	require.NoError(t, err)
	revoked, err := manager.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, revoked)

	_, err = manager.RefreshAccessToken(ctx, pair.RefreshToken, auth.ClientMetadata{})
	require.Error(t, err)
	revokedError := apperr.As(err)
	require.NotNil(t, revokedError)
	assert.Equal(t, appError.Code, revokedError.Code)
	assert.Equal(t, appError.Message, revokedError.Message)
}

/*
TestSessionManager_LazyExpiry verifies that a refresh against an expired
session fails AND deactivates the session on the spot.
*/
func TestSessionManager_LazyExpiry(t *testing.T) {
	manager, sessions, _, user := newTestSessionManager(t)
	ctx := context.Background()

	// 1. Plant a session whose lifetime has already elapsed
	expired := &auth.Session{
		ID:           "0195c3a8-0000-7000-8000-00000000beef",
		UserID:       user.ID,
		RefreshToken: "stale-refresh-token",
		ExpiresAt:    time.Now().Add(-time.Minute),
		IsActive:     true,
		CreatedAt:    time.Now().Add(-31 * 24 * time.Hour),
	}
	sessions.put(expired)

	// 2. The exchange is rejected
	_, err := manager.RefreshAccessToken(ctx, "stale-refresh-token", auth.ClientMetadata{})
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "EXPIRED", appError.Code)

	// 3. The session was flipped to inactive as a side effect
	stored := sessions.get(expired.ID)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)
}

/*
TestSessionManager_RevokeIdempotent verifies that revoking twice, or revoking
a token that never existed, succeeds silently.
*/
func TestSessionManager_RevokeIdempotent(t *testing.T) {
	manager, sessions, _, user := newTestSessionManager(t)
	ctx := context.Background()

	pair, err := manager.CreateSession(ctx, user, auth.ClientMetadata{})
	require.NoError(t, err)

	// 1. First revoke deactivates the session
	revoked, err := manager.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, revoked)
	count, err := sessions.CountActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// 2. Second revoke is a silent no-op
	revoked, err = manager.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, revoked)

	// 3. Revoking garbage is also a no-op
	revoked, err = manager.Revoke(ctx, "no-such-token")
	require.NoError(t, err)
	assert.False(t, revoked)
}

/*
TestSessionManager_RevokeAll verifies that every active session of the user
is terminated at once.
*/
func TestSessionManager_RevokeAll(t *testing.T) {
	manager, sessions, _, user := newTestSessionManager(t)
	ctx := context.Background()

	// 1. Open several sessions
	for i := 0; i < 3; i++ {
		_, err := manager.CreateSession(ctx, user, auth.ClientMetadata{})
		require.NoError(t, err)
	}

	// 2. Nuke them all
	require.NoError(t, manager.RevokeAll(ctx, user.ID))

	count, err := sessions.CountActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

/*
TestSessionManager_SweepExpired verifies that the sweeper removes only
sessions past their expiry.
*/
func TestSessionManager_SweepExpired(t *testing.T) {
	manager, sessions, _, user := newTestSessionManager(t)
	ctx := context.Background()

	// 1. One live session through the manager
	_, err := manager.CreateSession(ctx, user, auth.ClientMetadata{})
	require.NoError(t, err)

	// 2. Two stale sessions planted directly
	for i := 0; i < 2; i++ {
		sessions.put(&auth.Session{
			ID:           fmt.Sprintf("0195c3a8-0000-7000-8000-0000000000a%d", i),
			UserID:       user.ID,
			RefreshToken: fmt.Sprintf("stale-%d", i),
			ExpiresAt:    time.Now().Add(-time.Hour),
			IsActive:     false,
		})
	}

	// 3. Sweep removes exactly the stale pair
	removed, err := manager.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	count, err := sessions.CountActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
