/**
 * @description
 * This file defines the security-side domain models: append-only security
 * events for the audit trail, two-factor credentials, and the request metadata
 * (caller IP / user agent) captured for auditing.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Security event actions.
const (
	ActionTransferOut      = "transfer_out"
	ActionDeposit          = "deposit"
	ActionBeneficiaryAdded = "beneficiary_added"
	ActionTwoFactorVerify  = "two_factor_verify"
	ActionTwoFactorEnroll  = "two_factor_enroll"
)

// Security event statuses. 'failed' and 'blocked' events are candidates for
// alerting and flow through the durable outbox.
const (
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
	EventStatusBlocked = "blocked"
)

// SecurityEvent is an append-only audit record for a sensitive banking action.
// Rows are never updated or deleted.
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Action    string            `json:"action"`
	Status    string            `json:"status"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// SecurityAlertEvent is the payload published to the message broker for
// alert-worthy (failed/blocked) security events.
type SecurityAlertEvent struct {
	UserID    uuid.UUID         `json:"user_id"`
	Action    string            `json:"action"`
	Status    string            `json:"status"`
	IPAddress string            `json:"ip_address,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// RequestMetadata carries caller context supplied by the web layer for audit
// logging. The core never reads HTTP requests directly.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

// TwoFactorCredential holds a user's TOTP enrollment state, including the
// failed-attempt counter used for lockout.
type TwoFactorCredential struct {
	UserID         uuid.UUID  `json:"user_id"`
	Secret         string     `json:"-"`
	Enabled        bool       `json:"enabled"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

// TwoFactorEnrollment is returned when a user starts TOTP enrollment. The
// secret is only revealed at this point; confirmation with a valid code is
// required before the credential is enabled.
type TwoFactorEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// User is the minimal projection of a platform user this service needs:
// identity plus the auth-provider subject used to resolve sessions.
type User struct {
	ID      uuid.UUID `json:"id"`
	Subject string    `json:"subject"`
}
