package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/protocol"
)

var convertCmd = &cobra.Command{
	Use:   "convert <capture>",
	Short: "Parse a recorded capture and export its series",
	Long: `Parse a raw capture of the instrument's serial output and write the
completed series in the requested formats. Use "-" to read standard input.

Example:
  diodescout convert bench.txt --formats csv,png --locale de_DE -o exports`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	addExportFlags(convertCmd.Flags())
	addParserFlags(convertCmd.Flags())
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyExportFlags(&cfg.Export, cmd.Flags().GetString)
	if err := applyParserFlags(&cfg.Parser, cmd.Flags()); err != nil {
		return err
	}

	data, err := readCapture(cmd, args[0])
	if err != nil {
		return err
	}

	store := measurement.NewStore()
	p := protocol.NewParser(store, protocol.WithMaxLineBytes(cfg.Parser.MaxLineBytes))
	n := p.Feed(data)
	stats := p.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "parsed %d series (%d lines, %d dropped)\n", n, stats.Lines, stats.DroppedData)
	if store.PendingLen() > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: capture ends inside a series, %d points discarded\n", store.PendingLen())
	}

	formats, _ := cmd.Flags().GetString("formats")
	written, err := writeExports(newExporter(cfg.Export, nil), cfg.Export, store, formats)
	for _, path := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return err
}

func readCapture(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return data, nil
}
