/**
 * @description
 * Security/audit event logging. Every sensitive banking action (transfer,
 * deposit, beneficiary creation, two-factor attempt) is recorded here, success
 * or failure. Logging is strictly best-effort: a persistence failure is logged
 * operationally and swallowed, never propagated, so the primary flow can never
 * be blocked by its own audit trail.
 *
 * Failed and blocked events are additionally enqueued into a durable outbox and
 * published to the message broker by the background dispatcher, so alert-worthy
 * events are not lost with an in-process "catch and ignore".
 */

package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

// SecurityLogger appends audit trail entries for sensitive actions.
type SecurityLogger struct {
	repo          store.Repository
	alertExchange string
}

// NewSecurityLogger creates a new security logger. alertExchange is the broker
// exchange failed/blocked events are routed to.
func NewSecurityLogger(repo store.Repository, alertExchange string) *SecurityLogger {
	return &SecurityLogger{repo: repo, alertExchange: alertExchange}
}

// LogSecurityEvent records one audit entry. It never returns an error; callers
// fire and forget.
func (l *SecurityLogger) LogSecurityEvent(ctx context.Context, userID uuid.UUID, action, status string, meta domain.RequestMetadata, details map[string]string) {
	event := &domain.SecurityEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Status:    status,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Metadata:  details,
	}
	if err := l.repo.CreateSecurityEvent(ctx, event); err != nil {
		log.Printf("level=error component=security_log msg=\"audit write failed\" user_id=%s action=%s status=%s err=%v", userID, action, status, err)
	}

	if status != domain.EventStatusFailed && status != domain.EventStatusBlocked {
		return
	}

	alert := domain.SecurityAlertEvent{
		UserID:    userID,
		Action:    action,
		Status:    status,
		IPAddress: meta.IPAddress,
		Metadata:  details,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		log.Printf("level=error component=security_log msg=\"alert marshal failed\" user_id=%s action=%s err=%v", userID, action, err)
		return
	}
	routingKey := "security.alert." + action
	if err := l.repo.EnqueueSecurityAlert(ctx, l.alertExchange, routingKey, payload); err != nil {
		log.Printf("level=error component=security_log msg=\"alert enqueue failed\" user_id=%s action=%s err=%v", userID, action, err)
	}
}
