package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
)

// Subjects and streams.
const (
	ViewStateSubjectPrefix = "groundwatch.viewstate."
	AnalysisSubjectPrefix  = "groundwatch.analysis."
	AnalysisStream         = "ANALYSES"
)

// ViewStateSubject is the subject carrying one session's view-state changes.
func ViewStateSubject(sessionID string) string { return ViewStateSubjectPrefix + sessionID }

// AnalysisSubject is the subject an analysis of the given kind is published on.
func AnalysisSubject(kind domain.AnalysisKind) string { return AnalysisSubjectPrefix + string(kind) }

// ViewStateEvent is the payload published for every view-state change.
type ViewStateEvent struct {
	SessionID string              `json:"session_id"`
	State     viewstate.ViewState `json:"state"`
	At        time.Time           `json:"at"`
}

// Publisher implements ports.EventPublisher. View-state changes go out on
// core NATS (fire and forget); analyses go to JetStream so the archiver can
// catch up after downtime.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the analysis stream exists.
func NewPublisher(url string) (*Publisher, error) {
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

	return &Publisher{conn: conn, js: js}, nil
}

// EnsureStreams creates or updates the streams this service writes to.
func EnsureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:       AnalysisStream,
			Subjects:   []string{AnalysisSubjectPrefix + ">"},
			Retention:  nats.WorkQueuePolicy,
			MaxAge:     7 * 24 * time.Hour,
			Storage:    nats.FileStorage,
			Duplicates: 10 * time.Minute,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishViewState broadcasts a session's state to live observers.
func (p *Publisher) PublishViewState(ctx context.Context, sessionID string, state viewstate.ViewState) error {
	data, err := json.Marshal(ViewStateEvent{SessionID: sessionID, State: state, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.conn.Publish(ViewStateSubject(sessionID), data)
}

// PublishAnalysis queues an analysis for archiving. The analysis ID doubles
// as the JetStream message ID, so redelivered publishes are deduplicated.
func (p *Publisher) PublishAnalysis(ctx context.Context, a *domain.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(AnalysisSubject(a.Kind), data, nats.MsgId(a.ID), nats.Context(ctx))
	return err
}

// Connected reports whether the underlying connection is up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection with the service's reconnect policy.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("groundwatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
