// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyotirlabs/jyotir/internal/identity/auth"
)

// captureNotifier records dispatched mails so tests can read the codes that
// production code never logs.
type captureNotifier struct {
	mu         sync.Mutex
	otpCodes   map[string]string
	resetLinks map[string]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{
		otpCodes:   make(map[string]string),
		resetLinks: make(map[string]string),
	}
}

func (notifier *captureNotifier) SendOtpMail(_ context.Context, recipient, code string, _ int64) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.otpCodes[recipient] = code
	return nil
}

func (notifier *captureNotifier) SendPasswordResetMail(_ context.Context, recipient, resetToken string, _ int64) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.resetLinks[recipient] = resetToken
	return nil
}

func (notifier *captureNotifier) lastOtp(recipient string) string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return notifier.otpCodes[recipient]
}

func (notifier *captureNotifier) lastResetToken(recipient string) string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return notifier.resetLinks[recipient]
}

/*
TestOtpManager_IssueAndVerify verifies the happy path: an issued code is a
six-digit string that verifies exactly as sent.
*/
func TestOtpManager_IssueAndVerify(t *testing.T) {
	_, client := newTestRedis(t)
	notifier := newCaptureNotifier()
	manager := auth.NewOtpManager(auth.NewOtpRepository(client), notifier, 10*time.Minute, testLogger())
	ctx := context.Background()

	// 1. Issue dispatches a code to the recipient
	require.NoError(t, manager.Issue(ctx, "user@example.com"))
	code := notifier.lastOtp("user@example.com")
	require.Len(t, code, auth.OtpLength)
	assert.Regexp(t, `^\d{6}$`, code)

	// 2. The exact code verifies
	matched, err := manager.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.True(t, matched)

	// 3. A wrong code does not, and produces no error
	matched, err = manager.Verify(ctx, "user@example.com", "000000")
	require.NoError(t, err)
	if code == "000000" {
		t.Skip("generated code collided with the probe value")
	}
	assert.False(t, matched)
}

/*
TestOtpManager_VerifyMissing verifies that never-issued and expired codes
fail identically: false with no error.
*/
func TestOtpManager_VerifyMissing(t *testing.T) {
	server, client := newTestRedis(t)
	notifier := newCaptureNotifier()
	manager := auth.NewOtpManager(auth.NewOtpRepository(client), notifier, 10*time.Minute, testLogger())
	ctx := context.Background()

	// 1. Nothing was ever issued
	matched, err := manager.Verify(ctx, "ghost@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, matched)

	// 2. An issued code stops verifying once its TTL elapses
	require.NoError(t, manager.Issue(ctx, "user@example.com"))
	code := notifier.lastOtp("user@example.com")

	server.FastForward(11 * time.Minute)
	matched, err = manager.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.False(t, matched)
}

/*
TestOtpManager_ReissueSupersedes verifies that issuing again replaces the
previous challenge entirely.
*/
func TestOtpManager_ReissueSupersedes(t *testing.T) {
	_, client := newTestRedis(t)
	notifier := newCaptureNotifier()
	manager := auth.NewOtpManager(auth.NewOtpRepository(client), notifier, 10*time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, manager.Issue(ctx, "user@example.com"))
	first := notifier.lastOtp("user@example.com")

	require.NoError(t, manager.Issue(ctx, "user@example.com"))
	second := notifier.lastOtp("user@example.com")

	// 1. The latest code verifies
	matched, err := manager.Verify(ctx, "user@example.com", second)
	require.NoError(t, err)
	assert.True(t, matched)

	// 2. The superseded code does not (unless the two collided)
	if first != second {
		matched, err = manager.Verify(ctx, "user@example.com", first)
		require.NoError(t, err)
		assert.False(t, matched)
	}
}

/*
TestOtpManager_Invalidate verifies that a consumed challenge cannot be
verified a second time.
*/
func TestOtpManager_Invalidate(t *testing.T) {
	_, client := newTestRedis(t)
	notifier := newCaptureNotifier()
	manager := auth.NewOtpManager(auth.NewOtpRepository(client), notifier, 10*time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, manager.Issue(ctx, "user@example.com"))
	code := notifier.lastOtp("user@example.com")

	require.NoError(t, manager.Invalidate(ctx, "user@example.com"))

	matched, err := manager.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.False(t, matched)
}
