package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

// Subjects published on the EXSITU_EVENTS stream.
const (
	SubjectMirrorCompleted = "exsitu.mirror.completed"
	SubjectStatsRefreshed  = "exsitu.stats.refreshed"
)

// MirrorCompleted is the payload of SubjectMirrorCompleted.
type MirrorCompleted struct {
	Objects int       `json:"objects"`
	At      time.Time `json:"at"`
}

// StatsRefreshed is the payload of SubjectStatsRefreshed.
type StatsRefreshed struct {
	Summary *domain.StatsSummary `json:"summary"`
	At      time.Time            `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      "EXSITU_EVENTS",
		Subjects:  []string{"exsitu.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishMirrorCompleted(ctx context.Context, objects int) error {
	return p.publish(ctx, SubjectMirrorCompleted, MirrorCompleted{Objects: objects, At: time.Now().UTC()})
}

func (p *Publisher) PublishStatsRefreshed(ctx context.Context, summary *domain.StatsSummary) error {
	return p.publish(ctx, SubjectStatsRefreshed, StatsRefreshed{Summary: summary, At: time.Now().UTC()})
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("exsitu"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
