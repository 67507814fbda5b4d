package app

import (
	"context"
	"errors"
	"testing"

	"github.com/transpareo/banking-service/internal/store"
)

type outboxRepoStub struct {
	store.Repository

	messages []store.OutboxMessage

	published []int64
	failed    []struct {
		id         int64
		retryAfter int
		reason     string
	}
}

func (s *outboxRepoStub) ClaimOutboxMessages(ctx context.Context, batchSize int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	return s.messages, nil
}

func (s *outboxRepoStub) MarkOutboxPublished(ctx context.Context, messageID int64) error {
	s.published = append(s.published, messageID)
	return nil
}

func (s *outboxRepoStub) MarkOutboxFailed(ctx context.Context, messageID int64, retryAfterSeconds int, reason string) error {
	s.failed = append(s.failed, struct {
		id         int64
		retryAfter int
		reason     string
	}{messageID, retryAfterSeconds, reason})
	return nil
}

type publisherStub struct {
	err       error
	published []string // "exchange/routingKey"
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, exchange+"/"+routingKey)
	return nil
}

func (p *publisherStub) Close() {}

func TestFlushOncePublishesAndMarks(t *testing.T) {
	repo := &outboxRepoStub{
		messages: []store.OutboxMessage{
			{ID: 1, Exchange: "security_events", RoutingKey: "security.alert.transfer_out", Payload: []byte(`{"status":"failed"}`)},
			{ID: 2, Exchange: "security_events", RoutingKey: "security.alert.two_factor_verify", Payload: []byte(`{"status":"blocked"}`)},
		},
	}
	publisher := &publisherStub{}
	dispatcher := NewOutboxDispatcher(repo, publisher)

	if err := dispatcher.flushOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(publisher.published))
	}
	if publisher.published[0] != "security_events/security.alert.transfer_out" {
		t.Fatalf("unexpected first publish: %q", publisher.published[0])
	}
	if len(repo.published) != 2 || repo.published[0] != 1 || repo.published[1] != 2 {
		t.Fatalf("expected both messages marked published, got %v", repo.published)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %v", repo.failed)
	}
}

func TestFlushOnceBacksOffOnPublishError(t *testing.T) {
	repo := &outboxRepoStub{
		messages: []store.OutboxMessage{
			{ID: 7, Exchange: "security_events", RoutingKey: "security.alert.transfer_out", Payload: []byte(`{}`), Attempts: 3},
		},
	}
	publisher := &publisherStub{err: errors.New("broker unavailable")}
	dispatcher := NewOutboxDispatcher(repo, publisher)

	if err := dispatcher.flushOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.published) != 0 {
		t.Fatalf("expected nothing marked published, got %v", repo.published)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected one failure mark, got %d", len(repo.failed))
	}
	if repo.failed[0].id != 7 || repo.failed[0].retryAfter != 8 {
		t.Fatalf("expected message 7 retried after 8s, got %+v", repo.failed[0])
	}
	if repo.failed[0].reason != "broker unavailable" {
		t.Fatalf("expected broker error recorded, got %q", repo.failed[0].reason)
	}
}

func TestFlushOnceRejectsCorruptPayload(t *testing.T) {
	repo := &outboxRepoStub{
		messages: []store.OutboxMessage{
			{ID: 3, Exchange: "security_events", RoutingKey: "security.alert.deposit", Payload: []byte(`not-json`)},
		},
	}
	publisher := &publisherStub{}
	dispatcher := NewOutboxDispatcher(repo, publisher)

	if err := dispatcher.flushOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("expected corrupt payload not to be published, got %v", publisher.published)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected corrupt payload marked failed, got %d", len(repo.failed))
	}
}

func TestRetryDelaySeconds(t *testing.T) {
	tests := []struct {
		attempt int
		want    int
	}{
		{attempt: 0, want: 1},
		{attempt: 1, want: 2},
		{attempt: 3, want: 8},
		{attempt: 8, want: 256},
		{attempt: 20, want: 256},
	}

	for _, tt := range tests {
		if got := retryDelaySeconds(tt.attempt); got != tt.want {
			t.Fatalf("retryDelaySeconds(%d): expected %d, got %d", tt.attempt, tt.want, got)
		}
	}
}
