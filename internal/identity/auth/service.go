// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/email"
	"github.com/jyotirlabs/jyotir/internal/platform/sec"
	"github.com/jyotirlabs/jyotir/internal/platform/validate"
	"github.com/jyotirlabs/jyotir/pkg/uuid"
)

// # Service

// Service orchestrates the identity lifecycle: OTP-gated registration,
// login, token refresh, revocation and password recovery.
type Service struct {
	users       UserRepository
	profiles    ProfileRepository
	staging     RegistrationRepository
	resetTokens ResetTokenRepository
	otp         *OtpManager
	sessions    *SessionManager
	notifier    email.Notifier
	logger      *slog.Logger

	registrationTTL time.Duration
	resetTokenTTL   time.Duration
}

/*
NewService creates the identity service.

Parameters:
  - users: UserRepository
  - profiles: ProfileRepository
  - staging: RegistrationRepository
  - resetTokens: ResetTokenRepository
  - otp: *OtpManager
  - sessions: *SessionManager
  - notifier: email.Notifier
  - registrationTTL: time.Duration - Staged registration lifetime
  - resetTokenTTL: time.Duration - Password-reset token lifetime
  - logger: *slog.Logger

Returns:
  - *Service: Configured service
*/
func NewService(
	users UserRepository,
	profiles ProfileRepository,
	staging RegistrationRepository,
	resetTokens ResetTokenRepository,
	otp *OtpManager,
	sessions *SessionManager,
	notifier email.Notifier,
	registrationTTL time.Duration,
	resetTokenTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:           users,
		profiles:        profiles,
		staging:         staging,
		resetTokens:     resetTokens,
		otp:             otp,
		sessions:        sessions,
		notifier:        notifier,
		logger:          logger,
		registrationTTL: registrationTTL,
		resetTokenTTL:   resetTokenTTL,
	}
}

// # Registration

// RegisterInput is the payload for a new registration request.
type RegisterInput struct {
	Role       string             `json:"role"`
	Email      string             `json:"email"`
	Phone      string             `json:"phone"`
	Password   string             `json:"password"`
	FirstName  string             `json:"first_name"`
	LastName   string             `json:"last_name"`
	Gender     string             `json:"gender"`
	Client     *ClientDetails     `json:"client,omitempty"`
	Astrologer *AstrologerDetails `json:"astrologer,omitempty"`
}

/*
Register validates and stages a registration, then issues an email challenge.
No durable account is created here; the payload waits in the staging cache
until the challenge is answered. Re-registering the same email before
verification overwrites the previous staging.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - error: Validation failures, apperr.Conflict for existing accounts, or
    infrastructure failures
*/
func (service *Service) Register(context context.Context, input RegisterInput) error {
	v := &validate.Validator{}
	v.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	v.Required(FieldPhone, input.Phone).MinLen(FieldPhone, input.Phone, 7).MaxLen(FieldPhone, input.Phone, 15)
	v.Required(FieldPassword, input.Password).MinLen(FieldPassword, input.Password, 8).MaxLen(FieldPassword, input.Password, 72)
	v.Required(FieldFirstName, input.FirstName).MaxLen(FieldFirstName, input.FirstName, 100)
	v.Required(FieldLastName, input.LastName).MaxLen(FieldLastName, input.LastName, 100)
	v.OneOf(FieldRole, input.Role, string(RegistrationRoleClient), string(RegistrationRoleAstrologer))
	if input.Gender != "" {
		v.OneOf(FieldGender, input.Gender, "male", "female", "other")
	}
	if err := v.Err(); err != nil {
		return err
	}

	// Durable accounts win over pending ones: a verified user blocks
	// re-registration outright.
	existing, err := service.users.FindByEmailOrPhone(context, input.Email, input.Phone)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("auth_duplicate_check_failed: %w", err)
	}
	if existing != nil {
		if existing.Email == input.Email {
			return apperr.Conflict("An account with this email already exists")
		}
		return apperr.Conflict("An account with this phone number already exists")
	}

	// Hash before staging so plaintext credentials never enter the cache.
	hash, err := sec.HashPassword(input.Password)
	if err != nil {
		return fmt.Errorf("auth_hash_failed: %w", err)
	}

	pending := &PendingRegistration{
		Role:       RegistrationRole(input.Role),
		Email:      input.Email,
		Phone:      input.Phone,
		Hash:       hash,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Gender:     input.Gender,
		Client:     input.Client,
		Astrologer: input.Astrologer,
		StagedAt:   time.Now(),
	}
	if err := pending.Validate(); err != nil {
		return err
	}

	if err := service.staging.Stage(context, pending, service.registrationTTL); err != nil {
		return fmt.Errorf("auth_stage_failed: %w", err)
	}

	if err := service.otp.Issue(context, input.Email); err != nil {
		return err
	}

	service.logger.InfoContext(context, "registration staged",
		slog.String("email", input.Email),
		slog.String("role", input.Role))
	return nil
}

/*
VerifyEmail consumes the email challenge and promotes the staged
registration into a durable account. Astrologer registrations additionally
get a provider profile. The challenge and the staging entry are discarded
after promotion, so a code verifies at most once.

Parameters:
  - context: context.Context
  - emailAddress: string
  - code: string - Submitted challenge code

Returns:
  - *User: The newly created account
  - error: apperr.Expired for wrong/expired codes or missing staging,
    apperr.Conflict for accounts created concurrently, or infrastructure
    failures
*/
func (service *Service) VerifyEmail(context context.Context, emailAddress, code string) (*User, error) {
	v := &validate.Validator{}
	v.Required(FieldEmail, emailAddress).Email(FieldEmail, emailAddress)
	v.Required(FieldOtp, code).MinLen(FieldOtp, code, OtpLength).MaxLen(FieldOtp, code, OtpLength)
	if err := v.Err(); err != nil {
		return nil, err
	}

	matched, err := service.otp.Verify(context, emailAddress, code)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, apperr.Expired("Invalid or expired OTP")
	}

	pending, err := service.staging.Fetch(context, emailAddress)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Expired("Registration expired. Please register again.")
		}
		return nil, fmt.Errorf("auth_staging_fetch_failed: %w", err)
	}

	now := time.Now()
	user := &User{
		ID:              uuid.New(),
		Email:           pending.Email,
		Phone:           pending.Phone,
		PasswordHash:    pending.Hash,
		FirstName:       pending.FirstName,
		LastName:        pending.LastName,
		Gender:          pending.Gender,
		Role:            pending.Role.UserRole(),
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}

	if pending.Role == RegistrationRoleAstrologer {
		profile := &AstrologerProfile{
			UserID:                 user.ID,
			DisplayName:            pending.Astrologer.DisplayName,
			Bio:                    pending.Astrologer.Bio,
			ExperienceYears:        pending.Astrologer.ExperienceYears,
			Languages:              pending.Astrologer.Languages,
			Specializations:        pending.Astrologer.Specializations,
			FeePerHour:             pending.Astrologer.FeePerHour,
			MinConsultationMinutes: pending.Astrologer.MinConsultationMinutes,
			CreatedAt:              now,
		}
		if err := service.profiles.CreateAstrologerProfile(context, profile); err != nil {
			return nil, fmt.Errorf("auth_profile_create_failed: %w", err)
		}
	}

	// Best-effort cleanup; TTLs reclaim both entries if either delete fails.
	if err := service.otp.Invalidate(context, emailAddress); err != nil {
		service.logger.WarnContext(context, "otp cleanup failed", slog.String("email", emailAddress))
	}
	if err := service.staging.Discard(context, emailAddress); err != nil {
		service.logger.WarnContext(context, "staging cleanup failed", slog.String("email", emailAddress))
	}

	service.logger.InfoContext(context, "registration promoted",
		slog.String("userId", user.ID),
		slog.String("role", string(user.Role)))
	return user, nil
}

/*
ResendOtp issues a fresh challenge for a pending registration, superseding
the previous one. Fails when no registration is staged for the email; the
registration form must be re-submitted in that case.

Parameters:
  - context: context.Context
  - emailAddress: string

Returns:
  - error: apperr.Expired when nothing is staged, or infrastructure failures
*/
func (service *Service) ResendOtp(context context.Context, emailAddress string) error {
	v := &validate.Validator{}
	v.Required(FieldEmail, emailAddress).Email(FieldEmail, emailAddress)
	if err := v.Err(); err != nil {
		return err
	}

	staged, err := service.staging.Exists(context, emailAddress)
	if err != nil {
		return fmt.Errorf("auth_staging_check_failed: %w", err)
	}
	if !staged {
		return apperr.Expired("Registration expired. Please register again.")
	}

	return service.otp.Issue(context, emailAddress)
}

// OtpValidity reports how long an issued challenge code stays valid.
func (service *Service) OtpValidity() time.Duration {
	return service.otp.validity
}

// # Authentication

// LoginInput is the payload for a credential login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the issued credentials plus the authenticated account.
type LoginResult struct {
	TokenPair
	User *User `json:"user"`
}

/*
Login authenticates a user by email and password and opens a new session.
Unknown emails and wrong passwords fail identically.

Parameters:
  - context: context.Context
  - input: LoginInput
  - meta: ClientMetadata

Returns:
  - *LoginResult: Token pair and account
  - error: apperr.Unauthorized for bad credentials, apperr.Locked for
    blocked accounts, or infrastructure failures
*/
func (service *Service) Login(context context.Context, input LoginInput, meta ClientMetadata) (*LoginResult, error) {
	v := &validate.Validator{}
	v.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	v.Required(FieldPassword, input.Password)
	if err := v.Err(); err != nil {
		return nil, err
	}

	user, err := service.users.FindByEmail(context, input.Email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Unauthorized("Invalid email or password")
		}
		return nil, fmt.Errorf("auth_user_lookup_failed: %w", err)
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	if user.IsBlocked {
		return nil, apperr.Locked("Account is blocked. Contact support.")
	}

	pair, err := service.sessions.CreateSession(context, user, meta)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "login succeeded", slog.String("userId", user.ID))
	return &LoginResult{TokenPair: *pair, User: user}, nil
}

/*
Refresh exchanges a refresh token for a fresh access token. The refresh
token itself never rotates.

Parameters:
  - context: context.Context
  - refreshToken: string
  - meta: ClientMetadata

Returns:
  - *RefreshResult: New access token
  - error: Validation failures, apperr.Expired for invalid sessions, or
    infrastructure failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string, meta ClientMetadata) (*RefreshResult, error) {
	if err := (&validate.Validator{}).Required(FieldRefreshToken, refreshToken).Err(); err != nil {
		return nil, err
	}
	return service.sessions.RefreshAccessToken(context, refreshToken, meta)
}

/*
Revoke logs out the session holding the refresh token. An unknown or already
revoked token reports the same expired-session failure as Refresh so callers
cannot probe token validity.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Validation or infrastructure failures, or an expired-session
    failure when no active session matched
*/
func (service *Service) Revoke(context context.Context, refreshToken string) error {
	if err := (&validate.Validator{}).Required(FieldRefreshToken, refreshToken).Err(); err != nil {
		return err
	}

	revoked, err := service.sessions.Revoke(context, refreshToken)
	if err != nil {
		return err
	}
	if !revoked {
		return apperr.Expired("Session expired or invalid. Please login again.")
	}
	return nil
}

/*
RevokeAll logs the user out of every device.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Validation or infrastructure failures
*/
func (service *Service) RevokeAll(context context.Context, userID string) error {
	if err := (&validate.Validator{}).Required(FieldUserID, userID).UUID(FieldUserID, userID).Err(); err != nil {
		return err
	}
	return service.sessions.RevokeAll(context, userID)
}

// # Password Recovery

/*
RequestPasswordReset issues a reset token to the account's email. To avoid
disclosing which emails are registered, an unknown email succeeds silently.

Parameters:
  - context: context.Context
  - emailAddress: string

Returns:
  - error: Validation or infrastructure failures
*/
func (service *Service) RequestPasswordReset(context context.Context, emailAddress string) error {
	v := &validate.Validator{}
	v.Required(FieldEmail, emailAddress).Email(FieldEmail, emailAddress)
	if err := v.Err(); err != nil {
		return err
	}

	user, err := service.users.FindByEmail(context, emailAddress)
	if err != nil {
		if isNotFound(err) {
			service.logger.InfoContext(context, "password reset for unknown email", slog.String("email", emailAddress))
			return nil
		}
		return fmt.Errorf("auth_user_lookup_failed: %w", err)
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return fmt.Errorf("auth_reset_token_failed: %w", err)
	}

	if err := service.resetTokens.Set(context, token, user.ID, service.resetTokenTTL); err != nil {
		return fmt.Errorf("auth_reset_token_store_failed: %w", err)
	}

	if err := service.notifier.SendPasswordResetMail(context, user.Email, token, int64(service.resetTokenTTL.Minutes())); err != nil {
		return fmt.Errorf("auth_reset_dispatch_failed: %w", err)
	}

	service.logger.InfoContext(context, "password reset issued", slog.String("userId", user.ID))
	return nil
}

/*
ValidateResetToken reports whether a reset token is still usable without
consuming it. Lets the client gate the new-password form.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: apperr.Expired for unknown/expired tokens, or infrastructure failures
*/
func (service *Service) ValidateResetToken(context context.Context, token string) error {
	if err := (&validate.Validator{}).Required(FieldToken, token).Err(); err != nil {
		return err
	}

	if _, err := service.resetTokens.Get(context, token); err != nil {
		if isNotFound(err) {
			return apperr.Expired("Invalid or expired reset token")
		}
		return fmt.Errorf("auth_reset_token_lookup_failed: %w", err)
	}
	return nil
}

// ResetPasswordInput is the payload completing a password recovery.
type ResetPasswordInput struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

/*
ResetPassword consumes a reset token, replaces the account password and
revokes every active session, forcing a fresh login on all devices.

Parameters:
  - context: context.Context
  - input: ResetPasswordInput

Returns:
  - error: Validation failures, apperr.Expired for bad tokens, or
    infrastructure failures
*/
func (service *Service) ResetPassword(context context.Context, input ResetPasswordInput) error {
	v := &validate.Validator{}
	v.Required(FieldToken, input.Token)
	v.Required(FieldNewPassword, input.NewPassword).MinLen(FieldNewPassword, input.NewPassword, 8).MaxLen(FieldNewPassword, input.NewPassword, 72)
	v.Custom(FieldConfirmPassword, input.NewPassword != input.ConfirmPassword, "Passwords do not match")
	if err := v.Err(); err != nil {
		return err
	}

	userID, err := service.resetTokens.Get(context, input.Token)
	if err != nil {
		if isNotFound(err) {
			return apperr.Expired("Invalid or expired reset token")
		}
		return fmt.Errorf("auth_reset_token_lookup_failed: %w", err)
	}

	hash, err := sec.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("auth_hash_failed: %w", err)
	}

	if err := service.users.UpdatePassword(context, userID, hash); err != nil {
		return fmt.Errorf("auth_password_update_failed: %w", err)
	}

	// Single-use: consumed before sessions are torn down.
	if err := service.resetTokens.Delete(context, input.Token); err != nil {
		service.logger.WarnContext(context, "reset token cleanup failed", slog.String("userId", userID))
	}

	if err := service.sessions.RevokeAll(context, userID); err != nil {
		return err
	}

	service.logger.InfoContext(context, "password reset completed", slog.String("userId", userID))
	return nil
}
