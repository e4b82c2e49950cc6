package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/diodescout/internal/db"
	"github.com/banshee-data/diodescout/internal/measurement"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an archived session",
	Long: `Load the series of an archived session and write them in the requested
formats. Without --session the most recent session holding series is used.
--list prints the archived sessions instead.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("db", "", "archive path (overrides archive.path)")
	exportCmd.Flags().String("session", "", "session id to export")
	exportCmd.Flags().Bool("list", false, "list archived sessions and exit")
	addExportFlags(exportCmd.Flags())
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyExportFlags(&cfg.Export, cmd.Flags().GetString)
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.Archive.Path = v
	}

	archive, err := db.NewDB(cfg.Archive.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if list, _ := cmd.Flags().GetBool("list"); list {
		sessions, err := archive.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %3d series  %s\n",
				s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.SeriesCount, s.Source)
		}
		return nil
	}

	var session db.Session
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		session, err = archive.GetSession(ctx, id)
	} else {
		session, err = archive.LatestSession(ctx)
	}
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("no archived session to export")
	}
	if err != nil {
		return err
	}

	store := measurement.NewStore()
	n, err := archive.LoadInto(ctx, session.ID, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: %d series\n", session.ID, n)

	formats, _ := cmd.Flags().GetString("formats")
	written, err := writeExports(newExporter(cfg.Export, nil), cfg.Export, store, formats)
	for _, path := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return err
}
