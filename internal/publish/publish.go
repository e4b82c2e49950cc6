// Package publish forwards completed series to external brokers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/banshee-data/diodescout/internal/ingest"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/monitoring"
)

// Message is the JSON payload published for each completed series.
type Message struct {
	SessionID   string              `json:"session_id"`
	SeriesID    string              `json:"series_id"`
	Seq         int                 `json:"seq"`
	CompletedAt time.Time           `json:"completed_at"`
	Points      []measurement.Point `json:"points"`
}

// NewMessage builds the payload for c.
func NewMessage(c ingest.Completed) Message {
	return Message{
		SessionID:   c.SessionID.String(),
		SeriesID:    c.SeriesID.String(),
		Seq:         c.Seq,
		CompletedAt: c.CompletedAt.UTC(),
		Points:      c.Series.Points(),
	}
}

// Encode returns the JSON encoding of m.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Sink delivers messages to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, m Message) error
	Close() error
}

// Publisher fans each completed series out to every sink.
type Publisher struct {
	sinks []Sink
}

// New returns a Publisher over sinks.
func New(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks}
}

// Len returns the number of sinks.
func (p *Publisher) Len() int { return len(p.sinks) }

// HandleCompleted implements ingest.CompletionHandler. Every sink is tried;
// failures are joined.
func (p *Publisher) HandleCompleted(ctx context.Context, c ingest.Completed) error {
	msg := NewMessage(c)
	var errs []error
	for _, s := range p.sinks {
		if err := s.Publish(ctx, msg); err != nil {
			monitoring.Logf("publish: %s: series %d: %v", s.Name(), c.Seq, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (p *Publisher) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
