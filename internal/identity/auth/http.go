// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

// HTTP delivery layer for the identity lifecycle.
//
// # Architecture
//
// The handler acts as a thin mediation layer between the web and the domain
// service:
//   - Protocol: Standard RESTful JSON interface.
//   - Security: Sensitive unauthenticated endpoints sit behind the
//     Redis-backed fixed-window limiter.
//   - Verification: Input shape is checked here; semantic validation lives
//     in [Service].
//
// This layer is strictly responsible for transport concerns (status codes,
// headers, JSON).

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/constants"
	"github.com/jyotirlabs/jyotir/internal/platform/middleware"
	"github.com/jyotirlabs/jyotir/internal/platform/ratelimit"
	requestutil "github.com/jyotirlabs/jyotir/internal/platform/request"
	"github.com/jyotirlabs/jyotir/internal/platform/respond"
	"github.com/jyotirlabs/jyotir/internal/platform/sec"
	"github.com/jyotirlabs/jyotir/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements identity-related HTTP endpoints.
//
// # Scope
//
// This handler manages the user lifecycle entry points (registration and
// verification, login, token refresh and revocation, password recovery).
type Handler struct {
	authService *Service
	limiter     *ratelimit.Limiter
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{authService: service, limiter: limiter}
}

// Routes returns a [chi.Router] configured with identity routes.
//
// # Endpoints
//   - POST /register             : Stages a registration and sends an OTP.
//   - POST /verify-email         : Promotes a staged registration.
//   - POST /resend-otp           : Re-issues the email challenge.
//   - POST /login                : Authenticates and opens a session.
//   - POST /refresh              : Exchanges a refresh token for an access token.
//   - POST /revoke               : Logs out one session.
//   - POST /revoke-all           : Logs out every session (self or admin).
//   - POST /forgot-password      : Starts password recovery (rate limited).
//   - POST /validate-reset-token : Probes a reset token (rate limited).
//   - POST /reset-password       : Completes password recovery (rate limited).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/resend-otp", handler.resendOtp)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/revoke", handler.revoke)

	// Sensitive recovery endpoints behind the fixed-window limiter
	router.Group(func(r chi.Router) {
		r.Post("/forgot-password", handler.limit(constants.ActionForgotPassword, handler.forgotPassword))
		r.Post("/validate-reset-token", handler.limit(constants.ActionValidateResetToken, handler.validateResetToken))
		r.Post("/reset-password", handler.limit(constants.ActionResetPassword, handler.resetPassword))
	})

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/revoke-all", handler.revokeAll)
	})

	return router
}

// limit wraps a handler with the fixed-window quota for one action, keyed by
// client IP. Limited callers still consume quota.
func (handler *Handler) limit(action string, next http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		limited, err := handler.limiter.IsLimited(request.Context(), action, middleware.RealIP(request))
		if err != nil {
			respond.Error(writer, request, apperr.Internal(err))
			return
		}
		if limited {
			respond.Error(writer, request, apperr.RateLimited(int(handler.limiter.Window().Seconds())))
			return
		}
		next(writer, request)
	}
}

// metadata captures the calling client's attributes for session records.
func metadata(request *http.Request) ClientMetadata {
	return ClientMetadata{
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	}
}

// # Request Payloads

type verifyEmailRequest struct {
	Email string `json:"email"`
	Otp   string `json:"otp"`
}

type resendOtpRequest struct {
	Email string `json:"email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type revokeRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type otpIssuedResponse struct {
	Email              string `json:"email"`
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
	OtpValiditySeconds int64  `json:"otp_validity_seconds"`
}

type validateResetTokenRequest struct {
	Token string `json:"token"`
}

// # Handlers

/*
Register stages a new registration and issues the email challenge.

POST /api/v1/auth/register

Description: No durable account is created; the payload waits in the staging
cache until the OTP is verified. Re-registering before verification
overwrites the previous attempt.

Request:
  - Body: RegisterInput (Role, Email, Phone, Password, names, variant details)

Response:
  - 200: otpIssuedResponse: Identity echo plus the OTP validity window
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email or phone already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input RegisterInput

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.Register(request.Context(), input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, otpIssuedResponse{
		Email:              input.Email,
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		OtpValiditySeconds: int64(handler.authService.OtpValidity().Seconds()),
	})
}

/*
VerifyEmail consumes the OTP and creates the durable account.

POST /api/v1/auth/verify-email

Description: A code verifies at most once; the challenge and the staged
payload are discarded on success.

Request:
  - Body: verifyEmailRequest (Email, Otp)

Response:
  - 200: User: Created account
  - 400: EXPIRED: Wrong/expired code or staging gone
  - 409: ErrConflict: Account created concurrently
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.authService.VerifyEmail(request.Context(), input.Email, input.Otp)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
ResendOtp re-issues the email challenge for a pending registration.

POST /api/v1/auth/resend-otp

Request:
  - Body: resendOtpRequest (Email)

Response:
  - 200: otpIssuedResponse: New validity window for the superseding code
  - 400: EXPIRED: No registration staged for this email
*/
func (handler *Handler) resendOtp(writer http.ResponseWriter, request *http.Request) {
	var input resendOtpRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.ResendOtp(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, otpIssuedResponse{
		Email:              input.Email,
		OtpValiditySeconds: int64(handler.authService.OtpValidity().Seconds()),
	})
}

/*
Login authenticates a user and opens a session.

POST /api/v1/auth/login

Description: Verifies credentials and returns a bearer access token plus an
opaque refresh token. Opening a session past the per-user cap silently
revokes the oldest one.

Request:
  - Body: LoginInput (Email, Password)

Response:
  - 200: LoginResult: Token pair and user profile
  - 401: ErrUnauthorized: Invalid credentials
  - 403: ACCOUNT_LOCKED: Blocked account
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input LoginInput

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	result, err := handler.authService.Login(request.Context(), input, metadata(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
Refresh issues a new access token for a valid refresh token.

POST /api/v1/auth/refresh

Description: The refresh token itself does not rotate; only a new access
token is returned. Expired, revoked and unknown tokens fail identically.

Request:
  - Body: refreshRequest (RefreshToken)

Response:
  - 200: RefreshResult: New access token, same refresh token, new expiry
  - 400: EXPIRED: Session expired or invalid
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	result, err := handler.authService.Refresh(request.Context(), input.RefreshToken, metadata(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
Revoke logs out the session holding the refresh token.

POST /api/v1/auth/revoke

Description: An unknown or already-revoked token returns the same expired
failure as Refresh, so the endpoint leaks nothing about token validity.

Request:
  - Body: revokeRequest (RefreshToken)

Response:
  - 200: OK: Session terminated
  - 400: Bad Request: No active session matched the token
*/
func (handler *Handler) revoke(writer http.ResponseWriter, request *http.Request) {
	var input revokeRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.Revoke(request.Context(), input.RefreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Session revoked",
	})
}

/*
RevokeAll logs a user out of every device.

POST /api/v1/auth/revoke-all?userId=<uuid>

Description: Without the userId query parameter the caller's own sessions
are revoked. Targeting another user requires the admin role.

Response:
  - 200: Message: All sessions terminated
  - 401: ErrUnauthorized: Not authenticated
  - 403: ErrForbidden: Targeting another user without admin role
*/
func (handler *Handler) revokeAll(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	targetID := request.URL.Query().Get(FieldUserID)
	if targetID == "" {
		targetID = claims.UserID
	}

	if targetID != claims.UserID && !sec.UserRole(claims.Role).AtLeast(sec.RoleAdmin) {
		respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
		return
	}

	if err := handler.authService.RevokeAll(request.Context(), targetID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "All sessions revoked",
	})
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Description: Sends a reset token to the email if an account exists. Unknown
emails receive the same generic success response.

Request:
  - Body: forgotPasswordRequest (Email)

Response:
  - 200: Message: Generic confirmation
  - 429: RATE_LIMITED: Quota exceeded for this client
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a reset token has been sent.",
	})
}

/*
ValidateResetToken probes whether a reset token is still usable.

POST /api/v1/auth/validate-reset-token

Description: Non-consuming check so the client can gate its new-password
form before submission.

Request:
  - Body: validateResetTokenRequest (Token)

Response:
  - 200: Message: Token is valid
  - 400: EXPIRED: Unknown or expired token
  - 429: RATE_LIMITED: Quota exceeded for this client
*/
func (handler *Handler) validateResetToken(writer http.ResponseWriter, request *http.Request) {
	var input validateResetTokenRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.ValidateResetToken(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Reset token is valid",
	})
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Description: Consumes the reset token, updates the password and revokes
every active session of the account.

Request:
  - Body: ResetPasswordInput (Token, NewPassword, ConfirmPassword)

Response:
  - 200: Message: Password updated
  - 400: EXPIRED: Unknown or expired token
  - 429: RATE_LIMITED: Quota exceeded for this client
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input ResetPasswordInput

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password has been reset. Please login again.",
	})
}
