package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "switchbot",
	Short: "SwitchBot BLE command-line tool",
	Long: `Command-line tool for SwitchBot-style BLE devices:

- Scan and decode device advertisements (bots, curtains, meters, locks, ...)
- Press, switch and configure Bot devices
- Drive curtains to a position
- Lock and unlock smart locks over an encrypted session
- Switch relay outputs and read their power meter

Devices can be addressed directly or through friendly names from a YAML
configuration file.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

// commandContext returns a context cancelled by Ctrl+C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(curtainCmd)
	rootCmd.AddCommand(humidifierCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(meterCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML configuration file")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
