package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/diodescout/internal/serialmux"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long:  `List the serial ports of this host. Ports matching serial.match are marked with "*".`,
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().String("match", "", "match string (overrides serial.match)")
}

func runPorts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	match := cfg.Serial.Match
	if v, _ := cmd.Flags().GetString("match"); v != "" {
		match = v
	}

	ports, err := serialmux.ListPorts()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tPORT\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		mark := ""
		if match != "" && p.Matches(match) {
			mark = "*"
		}
		id := ""
		if p.IsUSB {
			id = p.VID + ":" + p.PID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, p.Name, id, p.SerialNumber, p.Product)
	}
	return tw.Flush()
}
