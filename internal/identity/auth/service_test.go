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
	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/sec"
)

// memoryProfileRepository is an in-memory ProfileRepository.
type memoryProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]*auth.AstrologerProfile
}

func newMemoryProfileRepository() *memoryProfileRepository {
	return &memoryProfileRepository{profiles: make(map[string]*auth.AstrologerProfile)}
}

func (repository *memoryProfileRepository) CreateAstrologerProfile(_ context.Context, profile *auth.AstrologerProfile) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	clone := *profile
	repository.profiles[profile.UserID] = &clone
	return nil
}

func (repository *memoryProfileRepository) get(userID string) *auth.AstrologerProfile {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	return repository.profiles[userID]
}

// serviceHarness bundles the service with every collaborator a test may
// want to inspect.
type serviceHarness struct {
	service  *auth.Service
	users    *memoryUserRepository
	profiles *memoryProfileRepository
	sessions *memorySessionRepository
	notifier *captureNotifier
}

func newTestService(t *testing.T) *serviceHarness {
	t.Helper()

	_, client := newTestRedis(t)

	users := newMemoryUserRepository()
	profiles := newMemoryProfileRepository()
	sessions := newMemorySessionRepository()
	notifier := newCaptureNotifier()
	logger := testLogger()

	otpManager := auth.NewOtpManager(auth.NewOtpRepository(client), notifier, 10*time.Minute, logger)
	sessionManager := auth.NewSessionManager(sessions, users, &staticSigner{}, testPolicy(), logger)

	service := auth.NewService(
		users,
		profiles,
		auth.NewRegistrationRepository(client),
		auth.NewResetTokenRepository(client),
		otpManager,
		sessionManager,
		notifier,
		2*time.Hour,
		10*time.Minute,
		logger,
	)

	return &serviceHarness{
		service:  service,
		users:    users,
		profiles: profiles,
		sessions: sessions,
		notifier: notifier,
	}
}

func clientRegistration() auth.RegisterInput {
	return auth.RegisterInput{
		Role:      "client",
		Email:     "client@example.com",
		Phone:     "9000000001",
		Password:  "correct-horse-battery",
		FirstName: "Ravi",
		LastName:  "Kumar",
		Gender:    "male",
		Client: &auth.ClientDetails{
			BirthDate:  "1994-03-21",
			BirthPlace: "Pune",
		},
	}
}

func astrologerRegistration() auth.RegisterInput {
	return auth.RegisterInput{
		Role:      "astrologer",
		Email:     "astro@example.com",
		Phone:     "9000000002",
		Password:  "correct-horse-battery",
		FirstName: "Asha",
		LastName:  "Sharma",
		Astrologer: &auth.AstrologerDetails{
			DisplayName:            "Asha S.",
			ExperienceYears:        12,
			FeePerHour:             1500,
			MinConsultationMinutes: 15,
		},
	}
}

/*
TestService_RegisterAndVerify walks the happy path: register, receive OTP,
verify, and end up with a durable verified account.
*/
func TestService_RegisterAndVerify(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	// 1. Registration stages, no account yet
	require.NoError(t, harness.service.Register(ctx, input))
	_, err := harness.users.FindByEmail(ctx, input.Email)
	assert.Error(t, err)

	// 2. The OTP arrives by mail
	code := harness.notifier.lastOtp(input.Email)
	require.NotEmpty(t, code)

	// 3. Verification promotes the staging into a real account
	user, err := harness.service.VerifyEmail(ctx, input.Email, code)
	require.NoError(t, err)
	assert.Equal(t, input.Email, user.Email)
	assert.Equal(t, sec.RoleClient, user.Role)
	assert.True(t, user.IsEmailVerified)
	assert.NotEqual(t, input.Password, user.PasswordHash)

	stored, err := harness.users.FindByEmail(ctx, input.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

/*
TestService_VerifyOnce verifies that a consumed OTP cannot promote a second
account.
*/
func TestService_VerifyOnce(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	code := harness.notifier.lastOtp(input.Email)

	_, err := harness.service.VerifyEmail(ctx, input.Email, code)
	require.NoError(t, err)

	// Replaying the same code fails with the merged expired/invalid error
	_, err = harness.service.VerifyEmail(ctx, input.Email, code)
	require.Error(t, err)
	assert.Equal(t, "EXPIRED", apperr.As(err).Code)
}

/*
TestService_VerifyWrongCode verifies that a mismatched code is rejected and
leaves the staging intact for another attempt.
*/
func TestService_VerifyWrongCode(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	code := harness.notifier.lastOtp(input.Email)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	// 1. Wrong code fails
	_, err := harness.service.VerifyEmail(ctx, input.Email, wrong)
	require.Error(t, err)
	assert.Equal(t, "EXPIRED", apperr.As(err).Code)

	// 2. The correct code still works afterwards
	user, err := harness.service.VerifyEmail(ctx, input.Email, code)
	require.NoError(t, err)
	assert.NotNil(t, user)
}

/*
TestService_AstrologerPromotion verifies that verifying an astrologer
registration also creates the provider profile.
*/
func TestService_AstrologerPromotion(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := astrologerRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	code := harness.notifier.lastOtp(input.Email)

	user, err := harness.service.VerifyEmail(ctx, input.Email, code)
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAstrologer, user.Role)

	profile := harness.profiles.get(user.ID)
	require.NotNil(t, profile)
	assert.Equal(t, "Asha S.", profile.DisplayName)
	assert.Equal(t, 12, profile.ExperienceYears)
}

/*
TestService_RegisterRoleMismatch verifies the explicit role discriminator:
an astrologer registration without astrologer details is rejected, as is a
client registration carrying them.
*/
func TestService_RegisterRoleMismatch(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()

	// 1. Astrologer role demands astrologer details
	broken := astrologerRegistration()
	broken.Astrologer = nil
	err := harness.service.Register(ctx, broken)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	// 2. Client role must not carry them
	mixed := clientRegistration()
	mixed.Astrologer = &auth.AstrologerDetails{DisplayName: "Sneaky"}
	err = harness.service.Register(ctx, mixed)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	// 3. An unknown role never falls back to a guess
	unknown := clientRegistration()
	unknown.Role = "superuser"
	err = harness.service.Register(ctx, unknown)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

/*
TestService_RegisterConflict verifies that a verified account blocks
re-registration of its email or phone.
*/
func TestService_RegisterConflict(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	code := harness.notifier.lastOtp(input.Email)
	_, err := harness.service.VerifyEmail(ctx, input.Email, code)
	require.NoError(t, err)

	// 1. Same email is a conflict
	err = harness.service.Register(ctx, input)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)

	// 2. Same phone with a fresh email is also a conflict
	samePhone := clientRegistration()
	samePhone.Email = "other@example.com"
	err = harness.service.Register(ctx, samePhone)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

/*
TestService_ResendOtp verifies that resend supersedes the previous code but
requires an existing staged registration.
*/
func TestService_ResendOtp(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	// 1. Resend without staging fails
	err := harness.service.ResendOtp(ctx, input.Email)
	require.Error(t, err)
	assert.Equal(t, "EXPIRED", apperr.As(err).Code)

	// 2. After registration, resend issues a new working code
	require.NoError(t, harness.service.Register(ctx, input))
	first := harness.notifier.lastOtp(input.Email)

	require.NoError(t, harness.service.ResendOtp(ctx, input.Email))
	second := harness.notifier.lastOtp(input.Email)
	require.NotEmpty(t, second)

	user, err := harness.service.VerifyEmail(ctx, input.Email, second)
	require.NoError(t, err)
	assert.NotNil(t, user)

	_ = first // superseded; collision with second is possible and harmless
}

/*
TestService_Login verifies credential checks and session issuance.
*/
func TestService_Login(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	_, err := harness.service.VerifyEmail(ctx, input.Email, harness.notifier.lastOtp(input.Email))
	require.NoError(t, err)

	// 1. Wrong password is unauthorized
	_, err = harness.service.Login(ctx, auth.LoginInput{Email: input.Email, Password: "wrong"}, auth.ClientMetadata{})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	// 2. Unknown email fails with the identical error
	_, err = harness.service.Login(ctx, auth.LoginInput{Email: "ghost@example.com", Password: "wrong"}, auth.ClientMetadata{})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	// 3. Correct credentials open a session
	result, err := harness.service.Login(ctx, auth.LoginInput{Email: input.Email, Password: input.Password}, auth.ClientMetadata{IPAddress: "10.1.1.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, input.Email, result.User.Email)

	// 4. The refresh token works through the service and is echoed unchanged
	refreshed, err := harness.service.Refresh(ctx, result.RefreshToken, auth.ClientMetadata{})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, result.RefreshToken, refreshed.RefreshToken)
}

/*
TestService_Revoke verifies that revoking terminates the session and that an
unknown or replayed token reports the same expired failure as Refresh.
*/
func TestService_Revoke(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	_, err := harness.service.VerifyEmail(ctx, input.Email, harness.notifier.lastOtp(input.Email))
	require.NoError(t, err)

	result, err := harness.service.Login(ctx, auth.LoginInput{Email: input.Email, Password: input.Password}, auth.ClientMetadata{})
	require.NoError(t, err)

	// 1. Revoking an active session succeeds
	require.NoError(t, harness.service.Revoke(ctx, result.RefreshToken))

	// 2. The refresh token no longer works
	_, err = harness.service.Refresh(ctx, result.RefreshToken, auth.ClientMetadata{})
	require.Error(t, err)
	assert.Equal(t, "EXPIRED", apperr.As(err).Code)

	// 3. Revoking again fails identically to an unknown token
	err = harness.service.Revoke(ctx, result.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "EXPIRED", apperr.As(err).Code)

	err = harness.service.Revoke(ctx, "never-issued")
	require.Error(t, err)
	assert.Equal(t, "EXPIRED", apperr.As(err).Code)
}

/*
TestService_LoginBlocked verifies that a blocked account cannot authenticate
even with correct credentials.
*/
func TestService_LoginBlocked(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	user, err := harness.service.VerifyEmail(ctx, input.Email, harness.notifier.lastOtp(input.Email))
	require.NoError(t, err)

	user.IsBlocked = true
	harness.users.put(user)

	_, err = harness.service.Login(ctx, auth.LoginInput{Email: input.Email, Password: input.Password}, auth.ClientMetadata{})
	require.Error(t, err)
	assert.Equal(t, "ACCOUNT_LOCKED", apperr.As(err).Code)
}

/*
TestService_PasswordResetFlow verifies the full recovery loop: request,
validate, reset, sessions revoked, token single-use.
*/
func TestService_PasswordResetFlow(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()
	input := clientRegistration()

	require.NoError(t, harness.service.Register(ctx, input))
	user, err := harness.service.VerifyEmail(ctx, input.Email, harness.notifier.lastOtp(input.Email))
	require.NoError(t, err)

	// Open a session that the reset must kill
	_, err = harness.service.Login(ctx, auth.LoginInput{Email: input.Email, Password: input.Password}, auth.ClientMetadata{})
	require.NoError(t, err)

	// 1. Request recovery; the token arrives by mail
	require.NoError(t, harness.service.RequestPasswordReset(ctx, input.Email))
	token := harness.notifier.lastResetToken(input.Email)
	require.NotEmpty(t, token)

	// 2. The token validates without being consumed
	require.NoError(t, harness.service.ValidateResetToken(ctx, token))
	require.NoError(t, harness.service.ValidateResetToken(ctx, token))

	// 3. Reset succeeds and revokes every session
	require.NoError(t, harness.service.ResetPassword(ctx, auth.ResetPasswordInput{
		Token:           token,
		NewPassword:     "new-battery-staple",
		ConfirmPassword: "new-battery-staple",
	}))

	active, err := harness.sessions.CountActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, active)

	// 4. The token is single-use
	err = harness.service.ValidateResetToken(ctx, token)
	require.Error(t, err)
	assert.Equal(t, "EXPIRED", apperr.As(err).Code)

	// 5. Only the new password logs in
	_, err = harness.service.Login(ctx, auth.LoginInput{Email: input.Email, Password: input.Password}, auth.ClientMetadata{})
	require.Error(t, err)

	result, err := harness.service.Login(ctx, auth.LoginInput{Email: input.Email, Password: "new-battery-staple"}, auth.ClientMetadata{})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

/*
TestService_PasswordResetUnknownEmail verifies the anti-enumeration
behavior: requesting recovery for a ghost address succeeds silently.
*/
func TestService_PasswordResetUnknownEmail(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()

	require.NoError(t, harness.service.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Empty(t, harness.notifier.lastResetToken("ghost@example.com"))
}

/*
TestService_ResetPasswordMismatch verifies that the confirmation password
must match before any token is consumed.
*/
func TestService_ResetPasswordMismatch(t *testing.T) {
	harness := newTestService(t)
	ctx := context.Background()

	err := harness.service.ResetPassword(ctx, auth.ResetPasswordInput{
		Token:           "whatever",
		NewPassword:     "new-battery-staple",
		ConfirmPassword: "different",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}
