package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/diodescout/internal/api"
	"github.com/banshee-data/diodescout/internal/config"
	"github.com/banshee-data/diodescout/internal/db"
	"github.com/banshee-data/diodescout/internal/ingest"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/protocol"
	"github.com/banshee-data/diodescout/internal/publish"
	"github.com/banshee-data/diodescout/internal/serialmux"
	"github.com/banshee-data/diodescout/internal/timeutil"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Acquire series and serve the HTTP API",
	Long: `Open the instrument's serial port, collect every completed series and
serve them over HTTP. Completed series are archived to SQLite and, when
configured, published to MQTT and Kafka.

The server runs until interrupted (Ctrl+C) or it receives SIGTERM.

Example:
  diodescout serve -c diodescout.yaml
  diodescout serve --dev --capture fixtures/bench.txt
  diodescout serve --port /dev/ttyUSB0 --listen :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("dev", false, "replay a recorded capture instead of opening a port")
	serveCmd.Flags().String("capture", "", "capture file replayed in dev mode (overrides dev.capture)")
	serveCmd.Flags().Bool("no-device", false, "serve without any serial transport")
	serveCmd.Flags().String("port", "", "serial port path (overrides serial.port)")
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides http.listen)")
	addParserFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("port"); v != "" {
		cfg.Serial.Port = v
	}
	if v, _ := flags.GetString("listen"); v != "" {
		cfg.HTTP.Listen = v
	}
	if v, _ := flags.GetString("capture"); v != "" {
		cfg.Dev.Capture = v
	}
	if err := applyParserFlags(&cfg.Parser, flags); err != nil {
		return err
	}
	dev, _ := flags.GetBool("dev")
	noDevice, _ := flags.GetBool("no-device")

	mux, source, err := openTransport(cfg, dev, noDevice)
	if err != nil {
		return err
	}
	defer mux.Close()
	log.Printf("transport: %s", source)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := ingest.NewSession(measurement.NewStore(), timeutil.RealClock{},
		protocol.WithMaxLineBytes(cfg.Parser.MaxLineBytes))
	session.OnComplete(ingest.LogCompletion)
	log.Printf("session %s started", session.ID)

	var archive *db.DB
	if cfg.Archive.Enabled {
		archive, err = db.NewDB(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer archive.Close()

		archiver := db.NewArchiver(archive, source, cfg.Serial.Options.String())
		if err := archiver.Begin(ctx, session); err != nil {
			return fmt.Errorf("failed to record session: %w", err)
		}
		session.OnComplete(archiver)
	}

	sinks, err := publishSinks(cfg)
	if err != nil {
		return err
	}
	if len(sinks) > 0 {
		pub := publish.New(sinks...)
		defer pub.Close()
		session.OnComplete(pub)
	}

	var wg sync.WaitGroup

	// subscribe before the first read so no bytes reach the mux unobserved
	subID, chunks := mux.Subscribe()
	defer mux.Unsubscribe(subID)

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := session.Consume(ctx, chunks); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ingest stopped: %v", err)
		}
		log.Print("ingest routine terminated")
	}()

	httpMux := api.NewServer(session, mux, api.ExportOptions{
		BaseName: cfg.Export.BaseName,
		Locale:   cfg.Export.LocaleTag(),
		Plot:     cfg.Export.PlotOptions(),
	}).ServeMux()
	mux.AttachAdminRoutes(httpMux)
	if archive != nil {
		if err := archive.AttachAdminRoutes(httpMux); err != nil {
			log.Printf("archive admin routes unavailable: %v", err)
		}
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.LoggingMiddleware(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.HTTP.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		stop()
		wg.Wait()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	wg.Wait()
	log.Print("shutdown complete")
	return nil
}

// openTransport picks the serial transport and describes it for the
// archive's source column.
func openTransport(cfg *config.Config, dev, noDevice bool) (serialmux.SerialMuxInterface, string, error) {
	switch {
	case noDevice:
		return serialmux.NewDisabledSerialMux(), "none", nil
	case dev:
		if cfg.Dev.Capture == "" {
			return nil, "", fmt.Errorf("dev mode needs a capture file (--capture or dev.capture)")
		}
		data, err := os.ReadFile(cfg.Dev.Capture)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open capture: %w", err)
		}
		m := serialmux.NewMockSerialMux(data, cfg.Dev.Interval.Duration(), timeutil.RealClock{})
		return m, "replay:" + cfg.Dev.Capture, nil
	}

	path, err := serialmux.ResolvePort(cfg.Serial.Port, cfg.Serial.Match)
	if err != nil {
		return nil, "", err
	}
	m, err := serialmux.NewRealSerialMux(path, cfg.Serial.Options)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	return m, path, nil
}

// publishSinks connects the enabled publishers.
func publishSinks(cfg *config.Config) ([]publish.Sink, error) {
	var sinks []publish.Sink
	if cfg.Publish.MQTT.Enabled {
		s, err := publish.NewMQTTSink(cfg.Publish.MQTT.Publish())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Publish.Kafka.Enabled {
		sinks = append(sinks, publish.NewKafkaSink(cfg.Publish.Kafka.Publish()))
	}
	return sinks, nil
}
