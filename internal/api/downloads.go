package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/diodescout/internal/export"
	"github.com/banshee-data/diodescout/internal/httputil"
)

type format struct {
	ext         string
	contentType string
	write       func(s *Server, w io.Writer) error
}

var formats = map[string]format{
	"csv": {"csv", "text/csv; charset=utf-8", func(s *Server, w io.Writer) error {
		return export.WriteCSV(w, s.store.All(), s.export.Locale)
	}},
	"py": {"py", "text/x-python; charset=utf-8", func(s *Server, w io.Writer) error {
		return export.WriteScript(w, s.store.All())
	}},
	"png": {"png", "image/png", func(s *Server, w io.Writer) error {
		o := s.export.Plot
		o.Timestamp = s.clock.Now()
		return export.WritePNG(w, s.store.All(), o)
	}},
}

// download serves /api/export/{csv,py,png}. The body is rendered into a
// buffer first so a failed export still yields a proper error status.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/export/")
	f, ok := formats[name]
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("unknown export format %q", name))
		return
	}

	var buf bytes.Buffer
	if err := f.write(s, &buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("export %s: %v", name, err))
		return
	}
	httputil.Attachment(w, s.export.BaseName+"."+f.ext, f.contentType)
	w.Write(buf.Bytes())
}

// chart renders the interactive chart page of all stored series.
func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteHTML(&buf, s.store.All(), s.export.Plot.Title); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
