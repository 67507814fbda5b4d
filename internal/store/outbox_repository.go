/**
 * @description
 * Security-alert outbox persistence. Alert-worthy security events (failed or
 * blocked actions) are enqueued here and published to the message broker by a
 * background dispatcher, so alerts survive broker outages and process crashes
 * without ever blocking the primary banking flow.
 */

package store

import (
	"context"
	"strings"
)

// EnqueueSecurityAlert stores one alert payload for asynchronous publication.
func (r *PostgresRepository) EnqueueSecurityAlert(ctx context.Context, exchange, routingKey string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO security_event_outbox (exchange, routing_key, payload)
		VALUES ($1, $2, $3::jsonb)
	`, strings.TrimSpace(exchange), strings.TrimSpace(routingKey), string(payload))
	return err
}

// ClaimOutboxMessages atomically claims a batch of pending alerts for
// publication. Rows stuck in 'processing' longer than staleAfterSeconds are
// reclaimed, which covers dispatcher crashes mid-batch.
func (r *PostgresRepository) ClaimOutboxMessages(ctx context.Context, batchSize int, staleAfterSeconds int) ([]OutboxMessage, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}

	query := `
		WITH candidates AS (
			SELECT id
			FROM security_event_outbox
			WHERE (
				(status = 'pending' AND next_attempt_at <= NOW())
				OR (status = 'processing' AND processing_started_at < NOW() - ($2 * INTERVAL '1 second'))
			)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE security_event_outbox AS o
		SET status = 'processing',
			processing_started_at = NOW(),
			attempts = o.attempts + 1
		FROM candidates
		WHERE o.id = candidates.id
		RETURNING o.id, o.exchange, o.routing_key, o.payload::text, o.attempts
	`

	rows, err := r.db.Query(ctx, query, batchSize, staleAfterSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]OutboxMessage, 0, batchSize)
	for rows.Next() {
		var message OutboxMessage
		var payload string
		if err := rows.Scan(&message.ID, &message.Exchange, &message.RoutingKey, &payload, &message.Attempts); err != nil {
			return nil, err
		}
		message.Payload = []byte(payload)
		messages = append(messages, message)
	}

	return messages, nil
}

// MarkOutboxPublished finalizes a successfully published alert.
func (r *PostgresRepository) MarkOutboxPublished(ctx context.Context, messageID int64) error {
	result, err := r.db.Exec(ctx, `
		UPDATE security_event_outbox
		SET status = 'published',
			published_at = NOW(),
			processing_started_at = NULL,
			last_error = NULL
		WHERE id = $1
	`, messageID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrOutboxMessageNotFound
	}
	return nil
}

// MarkOutboxFailed returns a message to 'pending' with a retry delay.
func (r *PostgresRepository) MarkOutboxFailed(ctx context.Context, messageID int64, retryAfterSeconds int, reason string) error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	if len(reason) > 2000 {
		reason = reason[:2000]
	}
	_, err := r.db.Exec(ctx, `
		UPDATE security_event_outbox
		SET status = 'pending',
			next_attempt_at = NOW() + ($2 * INTERVAL '1 second'),
			processing_started_at = NULL,
			last_error = $3
		WHERE id = $1
	`, messageID, retryAfterSeconds, reason)
	return err
}
