// Command diodescout acquires diode I-V curves from a DiodeScout instrument
// over a serial line and exports them.
//
// Usage:
//
//	diodescout serve -c diodescout.yaml   # acquire and serve the HTTP API
//	diodescout convert capture.txt        # export a recorded capture offline
//	diodescout export --session <id>      # export an archived session
//	diodescout ports                      # list serial ports
//	diodescout version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/banshee-data/diodescout/internal/config"
	"github.com/banshee-data/diodescout/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "diodescout",
	Short: "Acquire and export diode I-V curves",
	Long: `diodescout reads the line protocol of a DiodeScout curve tracer,
collects each sweep as a voltage/current series and exports the collected
series as a semicolon table, a matplotlib script, a PNG or an HTML chart.

Protocol summary:
  *            start a new series
  * <text>     comment, ignored
  <V> <mA>     one measurement point
  #            end of series`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a JSON or YAML config file")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig returns the file named by --config over the defaults, or the
// defaults alone when the flag is empty.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// addParserFlags registers the flags shared by serve and convert.
func addParserFlags(flags *pflag.FlagSet) {
	flags.Int("max-line-bytes", 0, fmt.Sprintf(
		"longest protocol line kept, in bytes; longer lines are dropped whole. "+
			"0 keeps every line however long (overrides parser.max_line_bytes, default %d)",
		config.Default().Parser.MaxLineBytes))
}

func applyParserFlags(cfg *config.ParserConfig, flags *pflag.FlagSet) error {
	if !flags.Changed("max-line-bytes") {
		return nil
	}
	n, err := flags.GetInt("max-line-bytes")
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("--max-line-bytes must be non-negative, got %d", n)
	}
	cfg.MaxLineBytes = n
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
