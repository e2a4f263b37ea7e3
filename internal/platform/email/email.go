// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

/*
Package email defines the outbound notification boundary of the identity
subsystem.

Delivery is fire-and-forget: the auth service never fails a request because a
mail could not be sent. The concrete transport (SMTP relay, transactional
provider) is wired in main; this package ships a structured-log implementation
used in development and tests.
*/
package email

import (
	"context"
	"log/slog"
)

// Notifier is the contract the auth service uses to reach a user's inbox.
type Notifier interface {

	// SendOtpMail delivers a one-time passcode for email verification.
	SendOtpMail(context context.Context, recipient, code string, validitySeconds int64) error

	// SendPasswordResetMail delivers a password-reset link.
	SendPasswordResetMail(context context.Context, recipient, resetToken string, validityMinutes int64) error
}

// LogNotifier writes would-be emails to the structured log instead of a
// mail transport. Default wiring for development environments.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a [LogNotifier].
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendOtpMail logs the OTP delivery. The code itself is never logged.
func (notifier *LogNotifier) SendOtpMail(context context.Context, recipient, code string, validitySeconds int64) error {
	notifier.logger.InfoContext(context, "otp_mail_dispatched",
		slog.String("recipient", recipient),
		slog.Int64("validity_seconds", validitySeconds),
	)
	return nil
}

// SendPasswordResetMail logs the reset-link delivery. The token is never logged.
func (notifier *LogNotifier) SendPasswordResetMail(context context.Context, recipient, resetToken string, validityMinutes int64) error {
	notifier.logger.InfoContext(context, "password_reset_mail_dispatched",
		slog.String("recipient", recipient),
		slog.Int64("validity_minutes", validityMinutes),
	)
	return nil
}
