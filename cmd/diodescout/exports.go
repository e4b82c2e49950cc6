package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/banshee-data/diodescout/internal/config"
	"github.com/banshee-data/diodescout/internal/export"
	"github.com/banshee-data/diodescout/internal/fsutil"
)

const defaultFormats = "csv,py,png"

// newExporter builds an exporter from the export section of cfg.
func newExporter(cfg config.ExportConfig, fs fsutil.FileSystem) *export.Exporter {
	e := export.NewExporter()
	if fs != nil {
		e.FS = fs
	}
	e.Locale = cfg.LocaleTag()
	e.Plot = cfg.PlotOptions()
	return e
}

// writeExports writes src once per format and returns the written paths.
// It stops at the first failure.
func writeExports(e *export.Exporter, cfg config.ExportConfig, src export.Source, formats string) ([]string, error) {
	if cfg.Dir != "" {
		if err := e.FS.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", cfg.Dir, err)
		}
	}

	var written []string
	for _, f := range strings.Split(formats, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		var write func(string, export.Source) error
		switch f {
		case "csv":
			write = e.CSV
		case "py":
			write = e.Script
		case "png":
			write = e.PNG
		case "html":
			write = e.HTML
		default:
			return written, fmt.Errorf("unknown export format %q (want csv, py, png or html)", f)
		}
		path := cfg.FileName(f)
		if err := write(path, src); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// addExportFlags registers the flags shared by convert and export.
func addExportFlags(flags *pflag.FlagSet) {
	flags.StringP("out", "o", "", "output directory (overrides export.dir)")
	flags.String("formats", defaultFormats, "comma separated list of csv, py, png, html")
	flags.String("label", "", "label appended to the file names (overrides export.label)")
	flags.String("locale", "", "locale for the csv decimal separator, e.g. de_DE (overrides export.locale)")
}

func applyExportFlags(cfg *config.ExportConfig, get func(string) (string, error)) {
	if v, _ := get("out"); v != "" {
		cfg.Dir = v
	}
	if v, _ := get("label"); v != "" {
		cfg.Label = v
	}
	if v, _ := get("locale"); v != "" {
		cfg.Locale = v
	}
}
