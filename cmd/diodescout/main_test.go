package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/diodescout/internal/db"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/monitoring"
	"github.com/banshee-data/diodescout/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "diodescout dev")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "bench.txt")
	data := append(testutil.Capture(
		[][2]float64{{0.1, 0}, {0.6, 2.5}},
		[][2]float64{{0.2, 0.1}},
	), []byte("*\n0.3 0.3\n")...)
	require.NoError(t, os.WriteFile(capture, data, 0o644))

	outDir := filepath.Join(dir, "exports")
	out, err := execute(t, "convert", capture, "-o", outDir, "--formats", "csv,py", "--locale", "C")
	require.NoError(t, err)
	assert.Contains(t, out, "parsed 2 series")
	assert.Contains(t, out, "1 points discarded")

	csv, err := os.ReadFile(filepath.Join(outDir, "dscout.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "Series 2\nVoltage (V);Current (mA)\n0.200000;0.100000\n")

	py, err := os.ReadFile(filepath.Join(outDir, "dscout.py"))
	require.NoError(t, err)
	assert.Contains(t, string(py), "0.600000")
}

func TestConvertCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "convert", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read capture")
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "archive.db")

	archive, err := db.NewDB(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	sid := uuid.NewString()
	require.NoError(t, archive.RecordSession(ctx, db.Session{
		ID:        sid,
		StartedAt: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC),
		Source:    "replay:bench.txt",
	}))
	require.NoError(t, archive.RecordSeries(ctx, db.SeriesRecord{
		ID:          uuid.NewString(),
		SessionID:   sid,
		Seq:         1,
		CompletedAt: time.Date(2024, 3, 4, 5, 6, 8, 0, time.UTC),
		Series:      measurement.NewSeries(measurement.Point{Voltage: 0.25, Current: 0.75}),
	}))
	require.NoError(t, archive.Close())

	outDir := filepath.Join(dir, "exports")
	out, err := execute(t, "export", "--db", dbPath, "-o", outDir, "--formats", "csv,py", "--locale", "C")
	require.NoError(t, err)
	assert.Contains(t, out, "session "+sid+": 1 series")

	csv, err := os.ReadFile(filepath.Join(outDir, "dscout.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Series 1\nVoltage (V);Current (mA)\n0.250000;0.750000\n\n", string(csv))
}
