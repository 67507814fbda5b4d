package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

type twoFactorRepoStub struct {
	store.Repository

	credential *domain.TwoFactorCredential

	upsertedSecret string
	enabled        bool
	failedAttempts int
	resetCalled    bool
	events         []*domain.SecurityEvent
}

func (s *twoFactorRepoStub) GetTwoFactorCredential(ctx context.Context, userID uuid.UUID) (*domain.TwoFactorCredential, error) {
	if s.credential == nil {
		return nil, store.ErrTwoFactorNotEnrolled
	}
	return s.credential, nil
}

func (s *twoFactorRepoStub) UpsertTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	s.upsertedSecret = secret
	s.credential = &domain.TwoFactorCredential{UserID: userID, Secret: secret}
	return nil
}

func (s *twoFactorRepoStub) EnableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	s.enabled = true
	s.credential.Enabled = true
	return nil
}

func (s *twoFactorRepoStub) RecordFailedTwoFactorAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.TwoFactorCredential, error) {
	s.failedAttempts++
	s.credential.FailedAttempts++
	return s.credential, nil
}

func (s *twoFactorRepoStub) ResetTwoFactorFailureState(ctx context.Context, userID uuid.UUID) error {
	s.resetCalled = true
	return nil
}

func (s *twoFactorRepoStub) CreateSecurityEvent(ctx context.Context, event *domain.SecurityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *twoFactorRepoStub) EnqueueSecurityAlert(ctx context.Context, exchange, routingKey string, payload []byte) error {
	return nil
}

func newTwoFactorTestService(repo *twoFactorRepoStub) *Service {
	return NewService(repo, NewSecurityLogger(repo, "security_events"), ServiceOptions{TOTPIssuer: "Transpareo"})
}

func TestGateTwoFactorOutcomes(t *testing.T) {
	userID := uuid.New()
	now := time.Now()
	lockedUntil := now.Add(10 * time.Minute)
	expiredLock := now.Add(-10 * time.Minute)

	validSecret, err := totp.Generate(totp.GenerateOpts{Issuer: "Transpareo", AccountName: userID.String()})
	if err != nil {
		t.Fatalf("failed to generate totp key: %v", err)
	}
	validCode, err := totp.GenerateCode(validSecret.Secret(), now)
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}

	tests := []struct {
		name       string
		credential *domain.TwoFactorCredential
		code       string
		want       twoFactorOutcome
	}{
		{
			name:       "not enrolled passes vacuously",
			credential: nil,
			code:       "",
			want:       twoFactorPassed,
		},
		{
			name:       "enrolled but not enabled passes vacuously",
			credential: &domain.TwoFactorCredential{UserID: userID, Secret: validSecret.Secret(), Enabled: false},
			code:       "",
			want:       twoFactorPassed,
		},
		{
			name:       "enabled without code demands the factor",
			credential: &domain.TwoFactorCredential{UserID: userID, Secret: validSecret.Secret(), Enabled: true},
			code:       "   ",
			want:       twoFactorRequired,
		},
		{
			name: "active lockout blocks even a valid code",
			credential: &domain.TwoFactorCredential{
				UserID: userID, Secret: validSecret.Secret(), Enabled: true, LockedUntil: &lockedUntil,
			},
			code: validCode,
			want: twoFactorLocked,
		},
		{
			name: "expired lockout no longer blocks",
			credential: &domain.TwoFactorCredential{
				UserID: userID, Secret: validSecret.Secret(), Enabled: true, LockedUntil: &expiredLock,
			},
			code: validCode,
			want: twoFactorPassed,
		},
		{
			name:       "valid code passes",
			credential: &domain.TwoFactorCredential{UserID: userID, Secret: validSecret.Secret(), Enabled: true},
			code:       validCode,
			want:       twoFactorPassed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &twoFactorRepoStub{credential: tt.credential}
			svc := newTwoFactorTestService(repo)
			svc.now = func() time.Time { return now }

			got, err := svc.gateTwoFactor(context.Background(), userID, tt.code, domain.RequestMetadata{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected outcome %d, got %d", tt.want, got)
			}
		})
	}
}

func TestEnrollAndConfirmTwoFactor(t *testing.T) {
	userID := uuid.New()
	repo := &twoFactorRepoStub{}
	svc := newTwoFactorTestService(repo)

	enrollment, err := svc.EnrollTwoFactor(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected enroll error: %v", err)
	}
	if enrollment.Secret == "" || enrollment.Secret != repo.upsertedSecret {
		t.Fatalf("expected generated secret to be persisted, got %q vs %q", enrollment.Secret, repo.upsertedSecret)
	}
	if !strings.Contains(enrollment.ProvisioningURI, "Transpareo") {
		t.Fatalf("expected issuer in provisioning URI, got %q", enrollment.ProvisioningURI)
	}
	if repo.enabled {
		t.Fatal("enrollment must not enable the factor before confirmation")
	}

	// A stale confirmation code keeps the factor disabled.
	staleCode, err := totp.GenerateCode(enrollment.Secret, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}
	confirmed, err := svc.ConfirmTwoFactor(context.Background(), userID, domain.RequestMetadata{}, staleCode)
	if err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}
	if confirmed || repo.enabled {
		t.Fatal("expected wrong code to be rejected without enabling")
	}

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}
	confirmed, err = svc.ConfirmTwoFactor(context.Background(), userID, domain.RequestMetadata{}, code)
	if err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}
	if !confirmed || !repo.enabled {
		t.Fatal("expected valid code to enable the factor")
	}
}

func TestVerifyTwoFactorRecordsFailedAttempts(t *testing.T) {
	userID := uuid.New()
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Transpareo", AccountName: userID.String()})
	if err != nil {
		t.Fatalf("failed to generate totp key: %v", err)
	}
	repo := &twoFactorRepoStub{
		credential: &domain.TwoFactorCredential{UserID: userID, Secret: key.Secret(), Enabled: true},
	}
	svc := newTwoFactorTestService(repo)

	wrongCode, err := totp.GenerateCode(key.Secret(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}

	ok, err := svc.VerifyTwoFactor(context.Background(), userID, domain.RequestMetadata{}, wrongCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail")
	}
	if repo.failedAttempts != 1 {
		t.Fatalf("expected one recorded failed attempt, got %d", repo.failedAttempts)
	}

	validCode, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}
	ok, err = svc.VerifyTwoFactor(context.Background(), userID, domain.RequestMetadata{}, validCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to pass")
	}
	if !repo.resetCalled {
		t.Fatal("expected failure state reset after success")
	}
}
