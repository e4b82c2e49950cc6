// Package measurement holds the I-V curve data model: points, series and the
// store that accumulates completed series while a new one is being received.
package measurement

import "slices"

// Point is a single sample on an I-V curve. Voltage is in volts, Current in
// milliamperes.
type Point struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
}

// Series is an ordered, append-only run of points in acquisition order.
// The zero value is an empty series.
type Series struct {
	points []Point
}

// NewSeries returns a series holding a copy of points.
func NewSeries(points ...Point) Series {
	return Series{points: slices.Clone(points)}
}

// Points returns a copy of the series' points.
func (s Series) Points() []Point { return slices.Clone(s.points) }

// Len returns the number of points.
func (s Series) Len() int { return len(s.points) }

// Empty reports whether the series holds no points.
func (s Series) Empty() bool { return len(s.points) == 0 }

// At returns the i-th point. It panics if i is out of range.
func (s Series) At(i int) Point { return s.points[i] }

// Voltages returns the voltage column.
func (s Series) Voltages() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Voltage
	}
	return out
}

// Currents returns the current column.
func (s Series) Currents() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Current
	}
	return out
}

// MaxVoltage returns the largest voltage in the series, never less than 0.
func (s Series) MaxVoltage() float64 {
	m := 0.0
	for _, p := range s.points {
		if p.Voltage > m {
			m = p.Voltage
		}
	}
	return m
}

// MaxCurrent returns the largest current in the series, never less than 0.
func (s Series) MaxCurrent() float64 {
	m := 0.0
	for _, p := range s.points {
		if p.Current > m {
			m = p.Current
		}
	}
	return m
}

// add appends p. Only the store calls this, and only on its pending series.
func (s *Series) add(p Point) {
	s.points = append(s.points, p)
}
