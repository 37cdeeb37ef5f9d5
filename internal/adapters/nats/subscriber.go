package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

// ArchiverDurable is the durable consumer name of the analysis archiver.
const ArchiverDurable = "analysis-archiver"

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS and ensures the streams it reads exist.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := EnsureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeAnalyses delivers every queued analysis to handler. Messages are
// acked only after handler succeeds; malformed payloads are terminated so
// they are not redelivered.
func (s *Subscriber) SubscribeAnalyses(ctx context.Context, handler func(ctx context.Context, a *domain.Analysis) error) error {
	sub, err := s.js.Subscribe(AnalysisSubjectPrefix+">", func(msg *nats.Msg) {
		var a domain.Analysis
		if err := json.Unmarshal(msg.Data, &a); err != nil {
			slog.Warn("dropping malformed analysis event", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &a); err != nil {
			slog.Warn("analysis handler failed", "id", a.ID, "error", err)
			_ = msg.NakWithDelay(5 * time.Second)
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(ArchiverDurable),
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(5),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Connected reports whether the underlying connection is up.
func (s *Subscriber) Connected() bool {
	return s.conn.IsConnected()
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
