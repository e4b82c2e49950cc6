// Package config loads DiodeScout settings from JSON or YAML.
//
// Example (YAML):
//
//	serial:
//	  match: DIODESCOUT
//	  options:
//	    baud_rate: 9600
//	export:
//	  dir: ./exports
//	  label: "1N4148 batch 7"
//	publish:
//	  mqtt:
//	    enabled: true
//	    broker: tcp://localhost:1883
//	    topic: lab/diodescout/series
//	    timeout: PT5S
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"golang.org/x/text/language"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/diodescout/internal/export"
	"github.com/banshee-data/diodescout/internal/publish"
	"github.com/banshee-data/diodescout/internal/serialmux"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration.
type Config struct {
	Serial  SerialConfig  `json:"serial" yaml:"serial"`
	Parser  ParserConfig  `json:"parser" yaml:"parser"`
	Export  ExportConfig  `json:"export" yaml:"export"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	Dev     DevConfig     `json:"dev" yaml:"dev"`
	Publish PublishConfig `json:"publish" yaml:"publish"`
}

// SerialConfig selects and configures the instrument port. Port wins over
// Match when both are set.
type SerialConfig struct {
	Port    string                `json:"port" yaml:"port"`
	Match   string                `json:"match" yaml:"match"`
	Options serialmux.PortOptions `json:"options" yaml:"options"`
}

type ParserConfig struct {
	// MaxLineBytes caps a single protocol line; 0 disables the cap.
	MaxLineBytes int `json:"max_line_bytes" yaml:"max_line_bytes"`
}

type ExportConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	BaseName string `json:"base_name" yaml:"base_name"`
	// Label is appended to BaseName in slug form.
	Label string `json:"label" yaml:"label"`
	// Locale overrides the host locale for the tabular export.
	Locale       string  `json:"locale" yaml:"locale"`
	Title        string  `json:"title" yaml:"title"`
	WidthInches  float64 `json:"width_inches" yaml:"width_inches"`
	HeightInches float64 `json:"height_inches" yaml:"height_inches"`
}

type ArchiveConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

type HTTPConfig struct {
	Listen string `json:"listen" yaml:"listen"`
}

// DevConfig drives capture replay (serve --dev).
type DevConfig struct {
	Capture  string   `json:"capture" yaml:"capture"`
	Interval Duration `json:"interval" yaml:"interval"`
}

type PublishConfig struct {
	MQTT  MQTTConfig  `json:"mqtt" yaml:"mqtt"`
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type MQTTConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Broker   string   `json:"broker" yaml:"broker"`
	ClientID string   `json:"client_id" yaml:"client_id"`
	Topic    string   `json:"topic" yaml:"topic"`
	QoS      int      `json:"qos" yaml:"qos"`
	Retained bool     `json:"retained" yaml:"retained"`
	Timeout  Duration `json:"timeout" yaml:"timeout"`
}

type KafkaConfig struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	Brokers      []string `json:"brokers" yaml:"brokers"`
	Topic        string   `json:"topic" yaml:"topic"`
	WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Match: "DIODESCOUT",
			Options: serialmux.PortOptions{
				BaudRate: serialmux.DefaultBaudRate,
				DataBits: 8,
				StopBits: 1,
				Parity:   "N",
			},
		},
		Parser: ParserConfig{MaxLineBytes: 65536},
		Export: ExportConfig{
			Dir:          ".",
			BaseName:     "dscout",
			Title:        "I-V Curves",
			WidthInches:  8,
			HeightInches: 6,
		},
		Archive: ArchiveConfig{Enabled: true, Path: "diodescout.db"},
		HTTP:    HTTPConfig{Listen: ":8080"},
		Dev:     DevConfig{Interval: Duration(2 * time.Second)},
		Publish: PublishConfig{
			MQTT:  MQTTConfig{ClientID: "diodescout", Topic: "diodescout/series", Timeout: Duration(5 * time.Second)},
			Kafka: KafkaConfig{Topic: "diodescout.series", WriteTimeout: Duration(10 * time.Second)},
		},
	}
}

// Load reads path over Default. The extension selects the format: .json,
// .yaml or .yml. Fields omitted from the file keep their default values.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if _, err := c.Serial.Options.Normalize(); err != nil {
		return invalid("serial options: %v", err)
	}
	if c.Parser.MaxLineBytes < 0 {
		return invalid("parser.max_line_bytes must be non-negative, got %d", c.Parser.MaxLineBytes)
	}
	if c.Export.BaseName == "" {
		return invalid("export.base_name must not be empty")
	}
	if strings.ContainsAny(c.Export.BaseName, `/\`) {
		return invalid("export.base_name must be a file name, got %q", c.Export.BaseName)
	}
	if c.Export.WidthInches <= 0 || c.Export.HeightInches <= 0 {
		return invalid("export chart size must be positive, got %gx%g", c.Export.WidthInches, c.Export.HeightInches)
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return invalid("archive.path is required when the archive is enabled")
	}
	if c.Dev.Interval < 0 {
		return invalid("dev.interval must be non-negative")
	}

	m := c.Publish.MQTT
	if m.Enabled {
		if m.Broker == "" || m.Topic == "" {
			return invalid("publish.mqtt requires broker and topic")
		}
		if m.QoS < 0 || m.QoS > 2 {
			return invalid("publish.mqtt.qos must be 0, 1 or 2, got %d", m.QoS)
		}
	}
	k := c.Publish.Kafka
	if k.Enabled && (len(k.Brokers) == 0 || k.Topic == "") {
		return invalid("publish.kafka requires brokers and topic")
	}
	return nil
}

// FileName returns the export path for ext, e.g. "exports/dscout-batch-7.csv".
func (e ExportConfig) FileName(ext string) string {
	base := e.BaseName
	if e.Label != "" {
		base += "-" + slug.Make(e.Label)
	}
	return filepath.Join(e.Dir, base+"."+strings.TrimPrefix(ext, "."))
}

// LocaleTag returns the configured locale, falling back to the host's.
func (e ExportConfig) LocaleTag() language.Tag {
	if e.Locale == "" {
		return export.HostLocale()
	}
	return export.ParseLocale(e.Locale)
}

// PlotOptions converts the chart settings.
func (e ExportConfig) PlotOptions() export.PlotOptions {
	o := export.DefaultPlotOptions()
	if e.Title != "" {
		o.Title = e.Title
	}
	o.Width = vg.Length(e.WidthInches) * vg.Inch
	o.Height = vg.Length(e.HeightInches) * vg.Inch
	return o
}

func (m MQTTConfig) Publish() publish.MQTTConfig {
	return publish.MQTTConfig{
		Broker:   m.Broker,
		ClientID: m.ClientID,
		Topic:    m.Topic,
		QoS:      byte(m.QoS),
		Retained: m.Retained,
		Timeout:  m.Timeout.Duration(),
	}
}

func (k KafkaConfig) Publish() publish.KafkaConfig {
	return publish.KafkaConfig{
		Brokers:      k.Brokers,
		Topic:        k.Topic,
		WriteTimeout: k.WriteTimeout.Duration(),
	}
}
