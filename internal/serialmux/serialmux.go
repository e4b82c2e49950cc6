// Package serialmux provides an abstraction over a serial port with the
// ability for multiple clients to subscribe to the raw byte stream coming
// from a single instrument.
//
// The stream is read-only: the instrument never takes commands. Chunks are
// arbitrary fragments of protocol lines, so a regular subscriber receives
// every chunk in read order. Only the debug tail may miss chunks.
package serialmux

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/diodescout/internal/monitoring"
)

const (
	readBufferSize   = 4096
	subscriberBuffer = 64
)

// SerialMux is a generic serial port multiplexer that allows multiple clients
// to subscribe to the bytes read from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]*subscriber
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	bytesRead atomic.Uint64
	dropped   atomic.Uint64
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel receiving every chunk read from the
	// serial port, in order. The ID identifies the channel when
	// unsubscribing.
	Subscribe() (string, chan []byte)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Monitor reads from the serial port and fans chunks out to subscribers.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error
	// Stats reports transport counters.
	Stats() Stats

	// AttachAdminRoutes attaches debugging endpoints under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// Stats are transport counters. DroppedChunks only counts chunks missed by
// debug tails; Backlog is the number of chunks queued for subscribers that
// have not caught up yet.
type Stats struct {
	BytesRead     uint64 `json:"bytes_read"`
	DroppedChunks uint64 `json:"dropped_chunks"`
	Subscribers   int    `json:"subscribers"`
	Backlog       int    `json:"backlog"`
}

// NewSerialMux creates a SerialMux over port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]*subscriber),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel that receives every chunk in read order. A
// slow reader never loses data: chunks queue up until it catches up.
func (s *SerialMux[T]) Subscribe() (string, chan []byte) {
	return s.subscribe(false)
}

// subscribeLossy returns a buffered channel that misses chunks while it is
// full. Used for the debug tail, where a stalled browser must not grow an
// unbounded queue.
func (s *SerialMux[T]) subscribeLossy() (string, chan []byte) {
	return s.subscribe(true)
}

func (s *SerialMux[T]) subscribe(lossy bool) (string, chan []byte) {
	id := randomID()
	sub := newSubscriber(lossy)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.isClosing() {
		sub.close()
		return id, sub.ch
	}
	s.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscriber from the serial mux. Its channel is closed;
// chunks still queued for it are discarded.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if sub, ok := s.subscribers[id]; ok {
		sub.close()
		delete(s.subscribers, id)
	}
}

// Monitor reads the serial port until ctx is done, the port reports EOF or a
// read fails. Each chunk is handed to every subscriber. Handing off never
// blocks the read loop.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	// The blocking Read runs in its own goroutine so the loop below can
	// observe cancellation.
	go func() {
		defer close(chunks)
		buf := make([]byte, readBufferSize)
		for {
			n, err := s.port.Read(buf)
			if n > 0 {
				chunk := bytes.Clone(buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				select {
				case err := <-readErr:
					if s.isClosing() {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			if s.isClosing() {
				return nil
			}
			s.bytesRead.Add(uint64(len(chunk)))
			s.broadcast(chunk)
		}
	}
}

func (s *SerialMux[T]) broadcast(chunk []byte) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, sub := range s.subscribers {
		if sub.offer(chunk) {
			continue
		}
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			monitoring.Logf("serialmux: tail %s is full, dropped %d chunk(s) so far", id, n)
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// Stats returns the transport counters.
func (s *SerialMux[T]) Stats() Stats {
	s.subscriberMu.Lock()
	n := len(s.subscribers)
	backlog := 0
	for _, sub := range s.subscribers {
		backlog += sub.backlog()
	}
	s.subscriberMu.Unlock()
	return Stats{
		BytesRead:     s.bytesRead.Load(),
		DroppedChunks: s.dropped.Load(),
		Subscribers:   n,
		Backlog:       backlog,
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, sub := range s.subscribers {
		sub.close()
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("serial-stats", "serial transport counters", func(w http.ResponseWriter, r *http.Request) {
		st := s.Stats()
		fmt.Fprintf(w, "bytes_read %d\ndropped_chunks %d\nsubscribers %d\nbacklog %d\n",
			st.BytesRead, st.DroppedChunks, st.Subscribers, st.Backlog)
	})

	debug.HandleFunc("tail", "live tail of the raw serial stream (SSE)", func(w http.ResponseWriter, r *http.Request) {
		serveTail(w, r, s.subscribeLossy, s.Unsubscribe)
	})
}

// serveTail streams subscriber chunks as Server-Sent Events, one data field
// per line of instrument output.
func serveTail(w http.ResponseWriter, r *http.Request, subscribe func() (string, chan []byte), unsubscribe func(string)) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, c := subscribe()
	defer unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case chunk, ok := <-c:
			if !ok {
				return
			}
			if _, err := w.Write(sseEvent(chunk)); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func sseEvent(chunk []byte) []byte {
	text := strings.ReplaceAll(string(chunk), "\r", "")
	text = strings.TrimSuffix(text, "\n")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
