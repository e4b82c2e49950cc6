// Package export serializes measurement series to files: a locale-formatted
// semicolon table, a self-contained matplotlib script, a PNG chart and an
// HTML chart page.
//
// Exports are read-only with respect to the store and valid with zero
// series; the output then holds only headers and footers.
package export

import (
	"bufio"
	"fmt"
	"io"

	"golang.org/x/text/language"

	"github.com/banshee-data/diodescout/internal/fsutil"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/timeutil"
)

// Source is anything that can hand out a snapshot of finalized series.
// *measurement.Store satisfies it.
type Source interface {
	All() []measurement.Series
}

// Exporter writes series snapshots to files through a FileSystem.
type Exporter struct {
	FS     fsutil.FileSystem
	Locale language.Tag
	Plot   PlotOptions
	Clock  timeutil.Clock
}

// NewExporter returns an Exporter writing to the OS filesystem using the
// host locale for the tabular format.
func NewExporter() *Exporter {
	return &Exporter{
		FS:     fsutil.OSFileSystem{},
		Locale: HostLocale(),
		Plot:   DefaultPlotOptions(),
		Clock:  timeutil.RealClock{},
	}
}

// CSV writes the tabular export of src to path.
func (e *Exporter) CSV(path string, src Source) error {
	series := src.All()
	return e.toFile(path, func(w io.Writer) error {
		return WriteCSV(w, series, e.Locale)
	})
}

// Script writes the matplotlib script export of src to path.
func (e *Exporter) Script(path string, src Source) error {
	series := src.All()
	return e.toFile(path, func(w io.Writer) error {
		return WriteScript(w, series)
	})
}

// PNG renders the chart of src to path.
func (e *Exporter) PNG(path string, src Source) error {
	series := src.All()
	o := e.Plot
	if e.Clock != nil {
		o.Timestamp = e.Clock.Now()
	}
	return e.toFile(path, func(w io.Writer) error {
		return WritePNG(w, series, o)
	})
}

// HTML writes the interactive chart page of src to path.
func (e *Exporter) HTML(path string, src Source) error {
	series := src.All()
	return e.toFile(path, func(w io.Writer) error {
		return WriteHTML(w, series, e.Plot.Title)
	})
}

// toFile creates path and streams write into it. A failure to create the
// file is the primary error condition; a failed write may leave a partial
// file behind.
func (e *Exporter) toFile(path string, write func(io.Writer) error) error {
	f, err := e.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
