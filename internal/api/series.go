package api

import (
	"net/http"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/diodescout/internal/httputil"
	"github.com/banshee-data/diodescout/internal/ingest"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/serialmux"
)

// SeriesSummary describes one stored series. Index is 1-based, matching the
// "Series N" labels of the exports.
type SeriesSummary struct {
	Index      int     `json:"index"`
	Points     int     `json:"points"`
	VoltageMin float64 `json:"voltage_min"`
	VoltageMax float64 `json:"voltage_max"`
	CurrentMin float64 `json:"current_min"`
	CurrentMax float64 `json:"current_max"`
}

func summarize(index int, s measurement.Series) SeriesSummary {
	sum := SeriesSummary{Index: index, Points: s.Len()}
	if s.Empty() {
		return sum
	}
	v, c := s.Voltages(), s.Currents()
	sum.VoltageMin, sum.VoltageMax = floats.Min(v), floats.Max(v)
	sum.CurrentMin, sum.CurrentMax = floats.Min(c), floats.Max(c)
	return sum
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		n := s.store.Len()
		s.store.RemoveAll()
		httputil.WriteJSONOK(w, map[string]int{"removed": n})
		return
	}

	all := s.store.All()
	out := make([]SeriesSummary, len(all))
	for i, series := range all {
		out[i] = summarize(i+1, series)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) removeLast(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodDelete) {
		return
	}
	before := s.store.Len()
	s.store.RemoveLast()
	httputil.WriteJSONOK(w, map[string]int{"removed": before - s.store.Len()})
}

func (s *Server) seriesPoints(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil || idx < 1 {
		httputil.BadRequest(w, "index must be a positive integer")
		return
	}
	series, ok := s.store.Series(idx - 1)
	if !ok {
		httputil.NotFound(w, "no series "+strconv.Itoa(idx))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"summary": summarize(idx, series),
		"points":  series.Points(),
	})
}

// Status is the /api/status payload.
type Status struct {
	Session    ingest.Status    `json:"session"`
	Transport  *serialmux.Stats `json:"transport,omitempty"`
	MaxVoltage float64          `json:"max_voltage"`
	MaxCurrent float64          `json:"max_current"`
	AxisX      float64          `json:"axis_x"`
	AxisY      float64          `json:"axis_y"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	maxV, maxC := s.store.MaxVoltage(), s.store.MaxCurrent()
	st := Status{
		Session:    s.session.Status(),
		MaxVoltage: maxV,
		MaxCurrent: maxC,
		AxisX:      measurement.RoundUpToHalf(maxV),
		AxisY:      measurement.RoundUpToHalf(maxC),
	}
	if s.m != nil {
		ts := s.m.Stats()
		st.Transport = &ts
	}
	httputil.WriteJSONOK(w, st)
}
