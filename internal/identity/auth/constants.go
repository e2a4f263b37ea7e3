// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth

// # Authentication Constraints

const (
	// OtpLength is the digit count of a generated email challenge code.
	OtpLength = 6

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// DefaultRefreshTokenBytes is the refresh-token entropy used when the
	// configured value is missing or non-positive.
	DefaultRefreshTokenBytes = 64

	// DefaultMaxActiveSessions caps concurrent sessions per user when the
	// configured value is missing or non-positive.
	DefaultMaxActiveSessions = 5
)
