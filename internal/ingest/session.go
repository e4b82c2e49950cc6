// Package ingest ties a byte source to the protocol parser and the series
// store, and hands every completed series to registered handlers.
package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/monitoring"
	"github.com/banshee-data/diodescout/internal/protocol"
	"github.com/banshee-data/diodescout/internal/timeutil"
)

// Completed describes one finalized series.
type Completed struct {
	SessionID   uuid.UUID
	SeriesID    uuid.UUID
	Seq         int // 1-based, in completion order within the session
	CompletedAt time.Time
	Series      measurement.Series
}

// CompletionHandler is called synchronously for every completed series, in
// registration order. Errors are logged and do not stop ingestion.
type CompletionHandler interface {
	HandleCompleted(ctx context.Context, c Completed) error
}

// HandlerFunc adapts a function to CompletionHandler.
type HandlerFunc func(ctx context.Context, c Completed) error

func (f HandlerFunc) HandleCompleted(ctx context.Context, c Completed) error { return f(ctx, c) }

// Source is a subscribable byte stream. serialmux muxes satisfy it.
type Source interface {
	Subscribe() (string, chan []byte)
	Unsubscribe(string)
}

// Session is one acquisition run: a parser bound to a store plus the
// handlers interested in completed series.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	store *measurement.Store
	clock timeutil.Clock

	mu       sync.Mutex
	parser   *protocol.Parser
	seq      int
	handlers []CompletionHandler
}

// NewSession creates a session writing into store. A nil clock uses the wall
// clock.
func NewSession(store *measurement.Store, clock timeutil.Clock, opts ...protocol.Option) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Session{
		ID:        uuid.New(),
		StartedAt: clock.Now(),
		store:     store,
		clock:     clock,
		parser:    protocol.NewParser(store, opts...),
	}
}

// Store returns the session's series store.
func (s *Session) Store() *measurement.Store { return s.store }

// OnComplete registers h.
func (s *Session) OnComplete(h CompletionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Feed pushes b through the parser and returns how many series it
// completed.
func (s *Session) Feed(ctx context.Context, b []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range b {
		if s.parser.ProcessByte(c) != protocol.SeriesCompleted {
			continue
		}
		n++
		s.seq++
		done := Completed{
			SessionID:   s.ID,
			SeriesID:    uuid.New(),
			Seq:         s.seq,
			CompletedAt: s.clock.Now(),
			Series:      s.parser.LastCompleted(),
		}
		for _, h := range s.handlers {
			if err := h.HandleCompleted(ctx, done); err != nil {
				monitoring.Logf("ingest: handler for series %d failed: %v", done.Seq, err)
			}
		}
	}
	return n
}

// Run subscribes to src and feeds every chunk until ctx is done or src
// closes the subscription. Bytes src reads before Run subscribes are not
// seen; to start reading a device only after subscribing, subscribe first
// and call Consume.
func (s *Session) Run(ctx context.Context, src Source) error {
	id, ch := src.Subscribe()
	defer src.Unsubscribe(id)
	return s.Consume(ctx, ch)
}

// Consume feeds chunks from ch until ctx is done or ch is closed.
func (s *Session) Consume(ctx context.Context, ch <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return nil
			}
			s.Feed(ctx, chunk)
		}
	}
}

// Status is a point-in-time view of the session.
type Status struct {
	SessionID     string         `json:"session_id"`
	StartedAt     time.Time      `json:"started_at"`
	Uptime        string         `json:"uptime"`
	State         string         `json:"state"`
	PendingPoints int            `json:"pending_points"`
	StoredSeries  int            `json:"stored_series"`
	Completed     int            `json:"completed"`
	Parser        protocol.Stats `json:"parser"`
}

// Status reports the parser state and counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	state := s.parser.State()
	stats := s.parser.Stats()
	seq := s.seq
	s.mu.Unlock()

	return Status{
		SessionID:     s.ID.String(),
		StartedAt:     s.StartedAt,
		Uptime:        s.clock.Since(s.StartedAt).Truncate(time.Second).String(),
		State:         state.String(),
		PendingPoints: s.store.PendingLen(),
		StoredSeries:  s.store.Len(),
		Completed:     seq,
		Parser:        stats,
	}
}

// LogCompletion logs one line per completed series.
var LogCompletion = HandlerFunc(func(_ context.Context, c Completed) error {
	log.Printf("series %d complete: %d points", c.Seq, c.Series.Len())
	return nil
})
