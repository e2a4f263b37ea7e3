// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

/*
Package auth implements the identity and session lifecycle subsystem.

It defines the core domain entities (User, Session, PendingRegistration) and
the logic for OTP-gated registration, authentication, session management, and
password recovery.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to user identity.
*/
package auth

import (
	"time"

	"github.com/jyotirlabs/jyotir/internal/platform/apperr"
	"github.com/jyotirlabs/jyotir/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the Jyotir platform.
//
// A User row only ever comes into existence through a verified registration;
// unverified signups live exclusively in the staging cache.
type User struct {
	ID              string       `json:"id"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	PasswordHash    string       `json:"-"` // Explicitly omitted from JSON for security.
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Gender          string       `json:"gender"`
	Role            sec.UserRole `json:"role"`
	IsEmailVerified bool         `json:"is_email_verified"`
	IsBlocked       bool         `json:"is_blocked"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Session represents one access/refresh token pair bound to a device.
//
// # Lifecycle
//
// ACTIVE → EXPIRED when the refresh-token TTL elapses (detected lazily on the
// next touch), or ACTIVE → REVOKED on logout, capacity eviction, or
// revoke-all. Both terminal states are persisted as isactive = false; a
// terminal session never transitions back to active. ExpiresAt only ever
// moves forward or the row is deactivated, never backward.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"` // Current signed access token. Omitted for security.
	RefreshToken string    `json:"-"` // Opaque long-lived secret. Omitted for security.
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// # Registration Staging

// RegistrationRole is the explicit discriminator selecting which payload
// variant a staged registration carries. Role is never inferred from which
// optional fields happen to be present.
type RegistrationRole string

const (
	// RegistrationRoleClient enrolls a consultation-booking member.
	RegistrationRoleClient RegistrationRole = "client"

	// RegistrationRoleAstrologer enrolls a consultation provider.
	RegistrationRoleAstrologer RegistrationRole = "astrologer"
)

// IsValid reports whether the discriminator names a known variant.
func (r RegistrationRole) IsValid() bool {
	return r == RegistrationRoleClient || r == RegistrationRoleAstrologer
}

// UserRole maps the registration discriminator to the durable account role.
func (r RegistrationRole) UserRole() sec.UserRole {
	if r == RegistrationRoleAstrologer {
		return sec.RoleAstrologer
	}
	return sec.RoleClient
}

// ClientDetails is the client-variant payload of a staged registration.
type ClientDetails struct {
	BirthDate  string `json:"birth_date,omitempty"`
	BirthTime  string `json:"birth_time,omitempty"`
	BirthPlace string `json:"birth_place,omitempty"`
}

// AstrologerDetails is the astrologer-variant payload of a staged registration.
type AstrologerDetails struct {
	DisplayName            string   `json:"display_name"`
	Bio                    string   `json:"bio,omitempty"`
	ExperienceYears        int      `json:"experience_years"`
	Languages              []string `json:"languages,omitempty"`
	Specializations        []string `json:"specializations,omitempty"`
	FeePerHour             int      `json:"fee_per_hour"`
	MinConsultationMinutes int      `json:"min_consultation_minutes"`
}

// PendingRegistration is the full registration payload staged in the cache
// until the email challenge is answered.
//
// # Lifecycle
//
// Created on a registration request, destroyed on successful verification or
// TTL expiry. Never mutated in place; re-registration overwrites. The
// password is hashed before staging, so plaintext credentials never enter
// the cache. Exactly one variant pointer matches the Role discriminator.
type PendingRegistration struct {
	Role       RegistrationRole   `json:"role"`
	Email      string             `json:"email"`
	Phone      string             `json:"phone"`
	Hash       string             `json:"password_hash"`
	FirstName  string             `json:"first_name"`
	LastName   string             `json:"last_name"`
	Gender     string             `json:"gender"`
	Client     *ClientDetails     `json:"client,omitempty"`
	Astrologer *AstrologerDetails `json:"astrologer,omitempty"`
	StagedAt   time.Time          `json:"staged_at"`
}

// Validate checks that the discriminator is known and matches the populated
// variant. An astrologer payload without astrologer details is rejected
// rather than guessed at.
func (p *PendingRegistration) Validate() error {
	if !p.Role.IsValid() {
		return apperr.ValidationError("Validation failed", apperr.FieldError{
			Field: FieldRole, Message: "Must be one of: client, astrologer",
		})
	}
	if p.Role == RegistrationRoleAstrologer && p.Astrologer == nil {
		return apperr.ValidationError("Validation failed", apperr.FieldError{
			Field: FieldAstrologer, Message: "Astrologer details are required for this role",
		})
	}
	if p.Role == RegistrationRoleClient && p.Astrologer != nil {
		return apperr.ValidationError("Validation failed", apperr.FieldError{
			Field: FieldAstrologer, Message: "Astrologer details are not allowed for this role",
		})
	}
	return nil
}

// AstrologerProfile is the durable provider profile created during promotion
// of an astrologer registration.
type AstrologerProfile struct {
	UserID                 string    `json:"user_id"`
	DisplayName            string    `json:"display_name"`
	Bio                    string    `json:"bio,omitempty"`
	ExperienceYears        int       `json:"experience_years"`
	Languages              []string  `json:"languages,omitempty"`
	Specializations        []string  `json:"specializations,omitempty"`
	FeePerHour             int       `json:"fee_per_hour"`
	MinConsultationMinutes int       `json:"min_consultation_minutes"`
	CreatedAt              time.Time `json:"created_at"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldGender          = "gender"
	FieldRole            = "role"
	FieldAstrologer      = "astrologer"
	FieldOtp             = "otp"
	FieldToken           = "token"
	FieldRefreshToken    = "refresh_token"
	FieldNewPassword     = "new_password"
	FieldConfirmPassword = "confirm_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresAt       = "token_expires_at"
	FieldUser            = "user"
	FieldMessage         = "message"
	FieldUserID          = "userId"
)
