package protocol

import (
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/diodescout/internal/measurement"
)

// State is the parser's receive state.
type State int

const (
	Idle State = iota
	Receiving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Result is returned for every processed byte or line.
type Result int

const (
	Nothing Result = iota
	SeriesCompleted
)

func (r Result) String() string {
	if r == SeriesCompleted {
		return "series_completed"
	}
	return "nothing"
}

// LineKind classifies a trimmed line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineStart
	LineComment
	LineEnd
	LineData
)

const (
	startMarker = "*"
	endMarker   = "#"
)

// isSpace matches the C locale's isspace set. Unicode spaces such as U+00A0
// are ordinary characters on the wire.
func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func trimSpace(line string) string {
	return strings.TrimFunc(line, isSpace)
}

// Classify returns the kind of a line after trimming surrounding ASCII
// whitespace. Any non-marker, non-comment line is LineData whether or not it
// parses.
func Classify(line string) LineKind {
	line = trimSpace(line)
	switch {
	case line == "":
		return LineBlank
	case line == startMarker:
		return LineStart
	case strings.HasPrefix(line, startMarker):
		return LineComment
	case line == endMarker:
		return LineEnd
	default:
		return LineData
	}
}

// Action is the store mutation a Step asks for.
type Action int

const (
	ActionNone Action = iota
	// ActionReset replaces the pending series with an empty one.
	ActionReset
	// ActionAppend appends Step.Point to the pending series.
	ActionAppend
	// ActionFinalize moves the pending series into the finalized list.
	ActionFinalize
)

// Step is the outcome of feeding one completed line to Transition.
type Step struct {
	Kind   LineKind
	Next   State
	Action Action
	Point  measurement.Point
	Result Result

	// Dropped marks a data line received while Receiving that did not
	// decode to exactly two finite numbers.
	Dropped bool
	// Discarded marks a start marker that threw away a non-empty pending
	// series without storing it.
	Discarded bool
}

// Transition is the pure state function of the parser. pending is the number
// of points currently in the pending series.
func Transition(state State, pending int, line string) Step {
	line = trimSpace(line)
	step := Step{Kind: Classify(line), Next: state}

	switch step.Kind {
	case LineStart:
		step.Next = Receiving
		step.Action = ActionReset
		step.Discarded = state == Receiving && pending > 0
	case LineEnd:
		if state == Receiving && pending > 0 {
			step.Next = Idle
			step.Action = ActionFinalize
			step.Result = SeriesCompleted
		}
	case LineData:
		if state != Receiving {
			break
		}
		p, ok := ParseDataLine(line)
		if !ok {
			step.Dropped = true
			break
		}
		step.Action = ActionAppend
		step.Point = p
	}
	return step
}

// ParseDataLine decodes "<voltage> <current>". Exactly two ASCII whitespace
// separated decimal tokens are required, each finite.
func ParseDataLine(line string) (measurement.Point, bool) {
	fields := strings.FieldsFunc(line, isSpace)
	if len(fields) != 2 {
		return measurement.Point{}, false
	}
	v, ok := parseDecimal(fields[0])
	if !ok {
		return measurement.Point{}, false
	}
	c, ok := parseDecimal(fields[1])
	if !ok {
		return measurement.Point{}, false
	}
	return measurement.Point{Voltage: v, Current: c}, true
}

// parseDecimal accepts plain decimal literals only: no hex floats, no
// underscores, no NaN or Inf spellings.
func parseDecimal(tok string) (float64, bool) {
	if strings.IndexFunc(tok, notDecimalRune) >= 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func notDecimalRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return false
	case r == '.', r == '+', r == '-', r == 'e', r == 'E':
		return false
	}
	return true
}
