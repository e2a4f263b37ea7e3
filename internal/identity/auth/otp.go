// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/jyotirlabs/jyotir/internal/platform/email"
)

// OtpManager issues and verifies short-lived numeric challenges used to
// prove ownership of an email address during registration.
type OtpManager struct {
	store    OtpRepository
	notifier email.Notifier
	validity time.Duration
	logger   *slog.Logger
}

/*
NewOtpManager creates a challenge manager bound to a volatile store and a
mail notifier.

Parameters:
  - store: OtpRepository
  - notifier: email.Notifier
  - validity: time.Duration - Lifetime of an issued challenge
  - logger: *slog.Logger

Returns:
  - *OtpManager: Configured manager
*/
func NewOtpManager(store OtpRepository, notifier email.Notifier, validity time.Duration, logger *slog.Logger) *OtpManager {
	return &OtpManager{
		store:    store,
		notifier: notifier,
		validity: validity,
		logger:   logger,
	}
}

/*
Issue generates a fresh challenge for the email, stores it with the
configured validity and dispatches it to the recipient. Any previously
active challenge for the same email is superseded.

Parameters:
  - context: context.Context
  - recipient: string - Email address being verified

Returns:
  - error: Generation, storage or dispatch failures
*/
func (manager *OtpManager) Issue(context context.Context, recipient string) error {
	code, err := generateNumericCode(OtpLength)
	if err != nil {
		return fmt.Errorf("otp_generate_failed: %w", err)
	}

	if err := manager.store.Set(context, recipient, code, manager.validity); err != nil {
		return fmt.Errorf("otp_store_failed: %w", err)
	}

	if err := manager.notifier.SendOtpMail(context, recipient, code, int64(manager.validity.Seconds())); err != nil {
		return fmt.Errorf("otp_dispatch_failed: %w", err)
	}

	manager.logger.InfoContext(context, "otp issued", slog.String("email", recipient))
	return nil
}

/*
Verify checks a submitted code against the active challenge for the email.
A missing, expired or mismatched challenge yields false rather than an
error; only infrastructure failures are reported.

Parameters:
  - context: context.Context
  - recipient: string
  - submitted: string - Code provided by the caller

Returns:
  - bool: Whether the submission matched the active challenge
  - error: Retrieval failures only
*/
func (manager *OtpManager) Verify(context context.Context, recipient, submitted string) (bool, error) {
	stored, err := manager.store.Get(context, recipient)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("otp_lookup_failed: %w", err)
	}

	if len(stored) != len(submitted) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1, nil
}

/*
Invalidate removes the active challenge for an email once consumed.

Parameters:
  - context: context.Context
  - recipient: string

Returns:
  - error: Persistence failures
*/
func (manager *OtpManager) Invalidate(context context.Context, recipient string) error {
	return manager.store.Delete(context, recipient)
}

// generateNumericCode produces a zero-padded random decimal string of the
// requested length using a cryptographic source.
func generateNumericCode(length int) (string, error) {
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	value, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, value), nil
}
