package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/switchbot-ble/switchbot/pkg/adv"
	"github.com/switchbot-ble/switchbot/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for SwitchBot devices",
	Long: `Scan for SwitchBot-style BLE devices and decode their advertisements.

Discovered devices are shown with their model, address, RSSI and the state
fields carried in the advertisement (position, temperature, lock status, ...).`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAllowList []string
	scanBlockList []string
	scanWatch     bool
)

func init() {
	scanCmd.Flags().DurationVar(&scanDuration, "duration", 10*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Continuously scan and update results")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", scanFormat)
	}
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	s := scanner.New(logger)
	opts := &scanner.Options{
		Duration:        scanDuration,
		DuplicateFilter: !scanWatch,
		AllowList:       scanAllowList,
		BlockList:       scanBlockList,
	}
	if scanWatch {
		opts.Duration = 0
	}

	ctx, cancel := commandContext()
	defer cancel()

	if scanWatch {
		return runWatchScan(ctx, s, opts)
	}

	devices, err := s.Scan(ctx, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return displayDevices(devices)
}

func runWatchScan(ctx context.Context, s *scanner.Scanner, opts *scanner.Options) error {
	scanErrCh := make(chan error, 1)
	go func() {
		_, err := s.Scan(ctx, opts)
		scanErrCh <- err
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return displayDevices(s.Snapshot())
		case err := <-scanErrCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return displayDevices(s.Snapshot())
		case <-ticker.C:
			clearScreen()
			if err := displayDevices(s.Snapshot()); err != nil {
				return err
			}
		}
	}
}

func displayDevices(devices map[string]*adv.Advertisement) error {
	if scanFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	list := make([]*adv.Advertisement, 0, len(devices))
	for _, a := range devices {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Model != list[j].Model {
			return list[i].Model < list[j].Model
		}
		return list[i].Address < list[j].Address
	})

	model := color.New(color.FgCyan).SprintFunc()
	locked := color.New(color.FgGreen).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tADDRESS\tRSSI\tENC\tSTATE")
	for _, a := range list {
		name := string(a.Model)
		if name == "" {
			name = fmt.Sprintf("unknown(%q)", a.Tag)
		}
		enc := ""
		if a.IsEncrypted {
			enc = locked("yes")
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\n",
			model(name), a.Address, a.RSSI, enc, summarizeFields(a.Fields))
	}
	return w.Flush()
}

// summarizeFields renders decoded state as stable key=value pairs, keeping
// the table narrow by skipping nil values.
func summarizeFields(fields adv.Fields) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, fields[k])
	}
	return out
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}
