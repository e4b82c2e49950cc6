package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/banshee-data/diodescout/internal/export"
	"github.com/banshee-data/diodescout/internal/ingest"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/serialmux"
	"github.com/banshee-data/diodescout/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ExportOptions controls the download endpoints.
type ExportOptions struct {
	BaseName string
	Locale   language.Tag
	Plot     export.PlotOptions
}

type Server struct {
	session *ingest.Session
	store   *measurement.Store
	m       serialmux.SerialMuxInterface
	export  ExportOptions
	clock   timeutil.Clock
}

// NewServer serves the session's store. m may be nil when no transport is
// attached (for example in tests).
func NewServer(session *ingest.Session, m serialmux.SerialMuxInterface, opts ExportOptions) *Server {
	if opts.BaseName == "" {
		opts.BaseName = "dscout"
	}
	if opts.Plot.Width == 0 || opts.Plot.Height == 0 {
		opts.Plot = export.DefaultPlotOptions()
	}
	return &Server{
		session: session,
		store:   session.Store(),
		m:       m,
		export:  opts,
		clock:   timeutil.RealClock{},
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/series/last", s.removeLast)
	mux.HandleFunc("/api/series/points", s.seriesPoints)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/export/", s.download)
	mux.HandleFunc("/chart", s.chart)
	return mux
}
