package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/transpareo/banking-service/internal/domain"
)

func TestTransferStatusCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{code: domain.CodeInvalidRequest, want: http.StatusBadRequest},
		{code: domain.CodeInvalidBeneficiary, want: http.StatusBadRequest},
		{code: domain.CodeUnauthorized, want: http.StatusUnauthorized},
		{code: domain.CodeInsufficientBalance, want: http.StatusPaymentRequired},
		{code: domain.CodeLimitExceeded, want: http.StatusUnprocessableEntity},
		{code: domain.CodeTwoFactorRequired, want: http.StatusForbidden},
		{code: domain.CodeInvalidTwoFactorCode, want: http.StatusForbidden},
		{code: domain.CodeTwoFactorLocked, want: http.StatusLocked},
		{code: domain.CodeRateLimited, want: http.StatusTooManyRequests},
		{code: domain.CodeTechnicalError, want: http.StatusInternalServerError},
		{code: "", want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := transferStatusCode(tt.code); got != tt.want {
			t.Fatalf("transferStatusCode(%q): expected %d, got %d", tt.code, tt.want, got)
		}
	}
}

func TestRequestMetadataFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		wantIP     string
	}{
		{
			name:       "direct connection uses remote addr host",
			remoteAddr: "198.51.100.4:52110",
			wantIP:     "198.51.100.4",
		},
		{
			name:       "single forwarded entry wins",
			remoteAddr: "10.0.0.1:443",
			forwarded:  "203.0.113.9",
			wantIP:     "203.0.113.9",
		},
		{
			name:       "first forwarded entry wins over proxy chain",
			remoteAddr: "10.0.0.1:443",
			forwarded:  "203.0.113.9, 10.0.0.2, 10.0.0.3",
			wantIP:     "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/transfers", nil)
			r.RemoteAddr = tt.remoteAddr
			r.Header.Set("User-Agent", "transpareo-test")
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			meta := requestMetadataFromRequest(r)
			if meta.IPAddress != tt.wantIP {
				t.Fatalf("expected ip %q, got %q", tt.wantIP, meta.IPAddress)
			}
			if meta.UserAgent != "transpareo-test" {
				t.Fatalf("expected user agent propagated, got %q", meta.UserAgent)
			}
		})
	}
}
