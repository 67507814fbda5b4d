package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost/banking")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.DailyTransferLimitCents != 200000 {
		t.Fatalf("expected default daily limit 200000, got %d", cfg.DailyTransferLimitCents)
	}
	if cfg.WeeklyTransferLimitCents != 1000000 {
		t.Fatalf("expected default weekly limit 1000000, got %d", cfg.WeeklyTransferLimitCents)
	}
	if cfg.RedisRateLimitPrefix != "transpareo:rate_limit" {
		t.Fatalf("expected default redis prefix, got %q", cfg.RedisRateLimitPrefix)
	}
	if cfg.SecurityAlertExchange != "security_events" {
		t.Fatalf("expected default alert exchange, got %q", cfg.SecurityAlertExchange)
	}
	if cfg.TwoFactorMaxAttempts != 5 || cfg.TwoFactorLockoutSeconds != 600 {
		t.Fatalf("expected default two-factor policy, got attempts=%d lockout=%d", cfg.TwoFactorMaxAttempts, cfg.TwoFactorLockoutSeconds)
	}
	if cfg.TOTPIssuer != "Transpareo" {
		t.Fatalf("expected default totp issuer, got %q", cfg.TOTPIssuer)
	}
}

func TestLoadConfigEuroLimitOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("DAILY_TRANSFER_LIMIT_EUR", "1500")
	t.Setenv("WEEKLY_TRANSFER_LIMIT_EUR", "8000.50")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DailyTransferLimitCents != 150000 {
		t.Fatalf("expected 150000 cents, got %d", cfg.DailyTransferLimitCents)
	}
	if cfg.WeeklyTransferLimitCents != 800050 {
		t.Fatalf("expected 800050 cents, got %d", cfg.WeeklyTransferLimitCents)
	}
}

func TestLoadConfigCoercions(t *testing.T) {
	viper.Reset()
	t.Setenv("DAILY_TRANSFER_LIMIT_CENTS", "500000")
	t.Setenv("WEEKLY_TRANSFER_LIMIT_CENTS", "100000") // below daily, must be raised
	t.Setenv("TWO_FACTOR_MAX_ATTEMPTS", "-3")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.WeeklyTransferLimitCents != cfg.DailyTransferLimitCents {
		t.Fatalf("expected weekly limit raised to daily, got daily=%d weekly=%d", cfg.DailyTransferLimitCents, cfg.WeeklyTransferLimitCents)
	}
	if cfg.TwoFactorMaxAttempts != 5 {
		t.Fatalf("expected negative attempts coerced to default, got %d", cfg.TwoFactorMaxAttempts)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT override, got %q", cfg.ServerPort)
	}
}
