package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

type limitsRepoStub struct {
	store.Repository

	wallet      *domain.Wallet
	dailyTotal  int64
	weeklyTotal int64

	sumCalls []struct {
		from time.Time
		to   time.Time
	}
}

func (s *limitsRepoStub) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	if s.wallet == nil {
		return nil, store.ErrWalletNotFound
	}
	return s.wallet, nil
}

func (s *limitsRepoStub) SumCompletedDebits(ctx context.Context, walletID uuid.UUID, from, to time.Time) (int64, error) {
	s.sumCalls = append(s.sumCalls, struct {
		from time.Time
		to   time.Time
	}{from, to})
	// The daily window is always narrower than the weekly one.
	if to.Sub(from) <= 24*time.Hour {
		return s.dailyTotal, nil
	}
	return s.weeklyTotal, nil
}

func (s *limitsRepoStub) CreateSecurityEvent(ctx context.Context, event *domain.SecurityEvent) error {
	return nil
}

func (s *limitsRepoStub) EnqueueSecurityAlert(ctx context.Context, exchange, routingKey string, payload []byte) error {
	return nil
}

func newLimitsTestService(repo store.Repository, now time.Time) *Service {
	svc := NewService(repo, NewSecurityLogger(repo, "security_events"), ServiceOptions{})
	svc.now = func() time.Time { return now }
	return svc
}

func TestCheckTransferLimits(t *testing.T) {
	walletID := uuid.New()
	userID := uuid.New()
	now := time.Date(2025, 3, 12, 15, 4, 0, 0, time.UTC) // a Wednesday

	tests := []struct {
		name        string
		balance     int64
		dailyTotal  int64
		weeklyTotal int64
		amount      int64
		noWallet    bool
		wantAllowed bool
		wantCode    string
	}{
		{
			name:        "rejects non-positive amount",
			balance:     100000,
			amount:      0,
			wantAllowed: false,
			wantCode:    domain.CodeInvalidRequest,
		},
		{
			name:        "rejects missing wallet as insufficient balance",
			noWallet:    true,
			amount:      1000,
			wantAllowed: false,
			wantCode:    domain.CodeInsufficientBalance,
		},
		{
			name:        "rejects amount above balance",
			balance:     5000,
			amount:      5001,
			wantAllowed: false,
			wantCode:    domain.CodeInsufficientBalance,
		},
		{
			name:        "allows transfer exactly at daily cap",
			balance:     1000000,
			dailyTotal:  150000,
			amount:      50000,
			wantAllowed: true,
		},
		{
			name:        "rejects transfer one cent over daily cap",
			balance:     1000000,
			dailyTotal:  150000,
			amount:      50001,
			wantAllowed: false,
			wantCode:    domain.CodeLimitExceeded,
		},
		{
			name:        "rejects single transfer above daily cap",
			balance:     1000000,
			amount:      200001,
			wantAllowed: false,
			wantCode:    domain.CodeLimitExceeded,
		},
		{
			name:        "rejects transfer over weekly cap even when daily is fine",
			balance:     2000000,
			dailyTotal:  0,
			weeklyTotal: 980000,
			amount:      50000,
			wantAllowed: false,
			wantCode:    domain.CodeLimitExceeded,
		},
		{
			name:        "allows transfer exactly at weekly cap",
			balance:     2000000,
			dailyTotal:  0,
			weeklyTotal: 950000,
			amount:      50000,
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &limitsRepoStub{
				dailyTotal:  tt.dailyTotal,
				weeklyTotal: tt.weeklyTotal,
			}
			if !tt.noWallet {
				repo.wallet = &domain.Wallet{ID: walletID, UserID: userID, Balance: tt.balance, Currency: domain.CurrencyEUR}
			}
			svc := newLimitsTestService(repo, now)

			allowed, code, _, err := svc.checkTransferLimits(context.Background(), userID, tt.amount)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if allowed != tt.wantAllowed {
				t.Fatalf("expected allowed=%t, got %t", tt.wantAllowed, allowed)
			}
			if !tt.wantAllowed && code != tt.wantCode {
				t.Fatalf("expected code=%q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestCheckTransferLimitsWindowBounds(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 4, 5, 0, time.UTC) // Wednesday afternoon
	repo := &limitsRepoStub{
		wallet: &domain.Wallet{ID: uuid.New(), Balance: 1000000, Currency: domain.CurrencyEUR},
	}
	svc := newLimitsTestService(repo, now)

	if _, _, _, err := svc.checkTransferLimits(context.Background(), uuid.New(), 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.sumCalls) != 2 {
		t.Fatalf("expected 2 window queries, got %d", len(repo.sumCalls))
	}

	wantDayFrom := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	if !repo.sumCalls[0].from.Equal(wantDayFrom) {
		t.Fatalf("expected daily window from %v, got %v", wantDayFrom, repo.sumCalls[0].from)
	}
	if !repo.sumCalls[0].to.Equal(wantDayFrom.AddDate(0, 0, 1)) {
		t.Fatalf("expected daily window to %v, got %v", wantDayFrom.AddDate(0, 0, 1), repo.sumCalls[0].to)
	}

	wantWeekFrom := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) // preceding Monday
	if !repo.sumCalls[1].from.Equal(wantWeekFrom) {
		t.Fatalf("expected weekly window from %v, got %v", wantWeekFrom, repo.sumCalls[1].from)
	}
	if !repo.sumCalls[1].to.Equal(wantWeekFrom.AddDate(0, 0, 7)) {
		t.Fatalf("expected weekly window to %v, got %v", wantWeekFrom.AddDate(0, 0, 7), repo.sumCalls[1].to)
	}
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday maps to itself",
			in:   time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC),
			want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "wednesday maps to preceding monday",
			in:   time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday maps to the monday six days earlier",
			in:   time.Date(2025, 3, 16, 23, 59, 59, 0, time.UTC),
			want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := startOfWeek(tt.in)
			if !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{200000, "2000.00 EUR"},
		{50, "0.50 EUR"},
		{100001, "1000.01 EUR"},
		{-2500, "-25.00 EUR"},
	}

	for _, tt := range tests {
		if got := formatCents(tt.cents); got != tt.want {
			t.Fatalf("formatCents(%d): expected %q, got %q", tt.cents, tt.want, got)
		}
	}
}
