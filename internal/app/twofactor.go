/**
 * @description
 * Two-factor verification gate. Sensitive operations (outbound transfers,
 * beneficiary creation) are gated behind a TOTP code for users who enrolled.
 * Users without an enabled credential pass vacuously. Repeated wrong codes
 * trip a lockout, mirrored by a failed-attempt counter maintained in the
 * database so it survives restarts and is shared across instances.
 *
 * Every verification attempt, success or failure, is recorded in the audit
 * trail.
 *
 * @dependencies
 * - github.com/pquerna/otp/totp: RFC 6238 TOTP validation and enrollment.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

type twoFactorOutcome int

const (
	twoFactorPassed twoFactorOutcome = iota
	twoFactorRequired
	twoFactorInvalid
	twoFactorLocked
)

// gateTwoFactor runs the second-factor gate for a sensitive operation. Users
// without an enabled credential pass through; enrolled users must present a
// valid, unexpired code. A non-nil error is technical.
func (s *Service) gateTwoFactor(ctx context.Context, userID uuid.UUID, code string, meta domain.RequestMetadata) (twoFactorOutcome, error) {
	credential, err := s.repo.GetTwoFactorCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrTwoFactorNotEnrolled) {
			return twoFactorPassed, nil
		}
		return twoFactorInvalid, err
	}
	if !credential.Enabled {
		return twoFactorPassed, nil
	}

	if strings.TrimSpace(code) == "" {
		return twoFactorRequired, nil
	}

	if credential.LockedUntil != nil && credential.LockedUntil.After(s.now()) {
		s.audit.LogSecurityEvent(ctx, userID, domain.ActionTwoFactorVerify, domain.EventStatusBlocked, meta, map[string]string{
			"reason": "locked out",
		})
		return twoFactorLocked, nil
	}

	if !s.validateTOTP(code, credential.Secret) {
		updated, recordErr := s.repo.RecordFailedTwoFactorAttempt(ctx, userID, s.twoFactorMaxAttempts, s.twoFactorLockoutSeconds)
		if recordErr != nil {
			log.Printf("level=error component=two_factor msg=\"failed attempt record failed\" user_id=%s err=%v", userID, recordErr)
		}
		details := map[string]string{"reason": "invalid code"}
		if updated != nil {
			details["failed_attempts"] = fmt.Sprintf("%d", updated.FailedAttempts)
		}
		s.audit.LogSecurityEvent(ctx, userID, domain.ActionTwoFactorVerify, domain.EventStatusFailed, meta, details)
		return twoFactorInvalid, nil
	}

	if resetErr := s.repo.ResetTwoFactorFailureState(ctx, userID); resetErr != nil {
		log.Printf("level=warn component=two_factor msg=\"failure state reset failed\" user_id=%s err=%v", userID, resetErr)
	}
	s.audit.LogSecurityEvent(ctx, userID, domain.ActionTwoFactorVerify, domain.EventStatusSuccess, meta, nil)
	return twoFactorPassed, nil
}

// VerifyTwoFactor validates a TOTP code for the user. Verification is
// vacuously true when the user has no enabled credential.
func (s *Service) VerifyTwoFactor(ctx context.Context, userID uuid.UUID, meta domain.RequestMetadata, code string) (bool, error) {
	outcome, err := s.gateTwoFactor(ctx, userID, code, meta)
	if err != nil {
		return false, err
	}
	return outcome == twoFactorPassed, nil
}

// validateTOTP checks a code against a secret with a 30-second step and one
// step of clock drift tolerance in each direction.
func (s *Service) validateTOTP(code, secret string) bool {
	valid, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// EnrollTwoFactor generates a fresh TOTP secret for the user and stores it in a
// disabled state. The credential only becomes enforced once the user confirms
// a code via ConfirmTwoFactor.
func (s *Service) EnrollTwoFactor(ctx context.Context, userID uuid.UUID) (*domain.TwoFactorEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: userID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	if err := s.repo.UpsertTwoFactorSecret(ctx, userID, key.Secret()); err != nil {
		return nil, fmt.Errorf("failed to store totp secret: %w", err)
	}

	return &domain.TwoFactorEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// ConfirmTwoFactor enables the pending credential once the user proves they
// hold the secret by presenting a valid code.
func (s *Service) ConfirmTwoFactor(ctx context.Context, userID uuid.UUID, meta domain.RequestMetadata, code string) (bool, error) {
	credential, err := s.repo.GetTwoFactorCredential(ctx, userID)
	if err != nil {
		return false, err
	}

	if !s.validateTOTP(code, credential.Secret) {
		s.audit.LogSecurityEvent(ctx, userID, domain.ActionTwoFactorEnroll, domain.EventStatusFailed, meta, map[string]string{
			"reason": "invalid confirmation code",
		})
		return false, nil
	}

	if err := s.repo.EnableTwoFactor(ctx, userID); err != nil {
		return false, err
	}
	s.audit.LogSecurityEvent(ctx, userID, domain.ActionTwoFactorEnroll, domain.EventStatusSuccess, meta, nil)
	return true, nil
}
