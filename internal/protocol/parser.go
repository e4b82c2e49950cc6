package protocol

import (
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/monitoring"
)

// Stats counts what the parser has seen. The counters are diagnostics only
// and never influence what is accepted.
type Stats struct {
	Lines           int `json:"lines"`
	Points          int `json:"points"`
	SeriesCompleted int `json:"series_completed"`
	DroppedData     int `json:"dropped_data"`
	IgnoredIdle     int `json:"ignored_idle"`
	Comments        int `json:"comments"`
	Discarded       int `json:"discarded"`
	EmptyEnds       int `json:"empty_ends"`
	Overlong        int `json:"overlong"`
}

// Parser reassembles lines from a byte stream and applies each line to a
// measurement.Store. It is not safe for concurrent use; a single goroutine
// must feed it bytes in arrival order.
type Parser struct {
	store    *measurement.Store
	state    State
	line     []byte
	maxLine  int
	overflow bool
	stats    Stats
	last     measurement.Series
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxLineBytes caps the line buffer. Once a line grows past n bytes the
// rest of it is discarded up to the next newline and the whole line is
// dropped. n <= 0 means no limit.
func WithMaxLineBytes(n int) Option {
	return func(p *Parser) {
		p.maxLine = n
	}
}

// NewParser returns an Idle parser writing into store.
func NewParser(store *measurement.Store, opts ...Option) *Parser {
	p := &Parser{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current receive state.
func (p *Parser) State() State { return p.state }

// Stats returns a copy of the diagnostic counters.
func (p *Parser) Stats() Stats { return p.stats }

// ProcessByte consumes one byte. '\r' is dropped, '\n' completes the
// buffered line regardless of state, anything else is buffered.
func (p *Parser) ProcessByte(c byte) Result {
	switch c {
	case '\r':
		return Nothing
	case '\n':
		defer p.clearLine()
		if p.overflow {
			p.stats.Lines++
			p.stats.Overlong++
			monitoring.Logf("protocol: dropped line longer than %d bytes", p.maxLine)
			return Nothing
		}
		return p.HandleLine(string(p.line))
	}

	if p.overflow {
		return Nothing
	}
	if p.maxLine > 0 && len(p.line) >= p.maxLine {
		p.overflow = true
		p.line = p.line[:0]
		return Nothing
	}
	p.line = append(p.line, c)
	return Nothing
}

// LastCompleted returns the series most recently finalized by this parser.
// It stays valid even if the store has since removed it.
func (p *Parser) LastCompleted() measurement.Series { return p.last }

// Feed processes every byte in b and returns how many series were completed.
func (p *Parser) Feed(b []byte) int {
	n := 0
	for _, c := range b {
		if p.ProcessByte(c) == SeriesCompleted {
			n++
		}
	}
	return n
}

// HandleLine applies a complete line (without its terminator) to the store.
func (p *Parser) HandleLine(line string) Result {
	step := Transition(p.state, p.store.PendingLen(), line)
	if step.Kind == LineBlank {
		return Nothing
	}
	p.stats.Lines++

	switch step.Action {
	case ActionReset:
		if step.Discarded {
			p.stats.Discarded++
			monitoring.Logf("protocol: start marker discarded %d unfinished points", p.store.PendingLen())
		}
		p.store.ResetPending()
	case ActionAppend:
		p.stats.Points++
		p.store.AddPoint(step.Point.Voltage, step.Point.Current)
	case ActionFinalize:
		done := p.store.Pending()
		if !p.store.FinalizePending() {
			// The pending series was emptied behind our back.
			step.Next = p.state
			step.Result = Nothing
		} else {
			p.stats.SeriesCompleted++
			p.last = done
		}
	}
	p.state = step.Next

	switch {
	case step.Kind == LineComment:
		p.stats.Comments++
	case step.Kind == LineEnd && step.Result == Nothing:
		p.stats.EmptyEnds++
	case step.Kind == LineData && step.Dropped:
		p.stats.DroppedData++
		monitoring.Logf("protocol: dropped malformed data line %q", line)
	case step.Kind == LineData && p.state == Idle:
		p.stats.IgnoredIdle++
	}
	return step.Result
}

func (p *Parser) clearLine() {
	p.line = p.line[:0]
	p.overflow = false
}
