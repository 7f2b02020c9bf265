package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/switchbot-ble/switchbot/scanner"
)

// meterCmd reads a meter passively: the readings ride in advertisements,
// so one scan window is all it takes.
var meterCmd = &cobra.Command{
	Use:   "meter",
	Short: "Read a meter's temperature and humidity",
	RunE:  runMeter,
}

var meterWait time.Duration

func init() {
	addTargetFlags(meterCmd)
	meterCmd.Flags().DurationVar(&meterWait, "wait", 30*time.Second, "How long to listen for an advertisement")
}

func runMeter(cmd *cobra.Command, _ []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	target, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	s := scanner.New(logger)
	ctx, cancel := commandContext()
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, meterWait)
	defer timeoutCancel()

	scanErrCh := make(chan error, 1)
	go func() {
		_, err := s.Scan(ctx, &scanner.Options{
			DuplicateFilter: false,
			AllowList:       []string{target.Address},
		})
		scanErrCh <- err
	}()

	for {
		select {
		case ev := <-s.Events():
			a := ev.Advertisement
			if !a.HasData() {
				continue
			}
			timeoutCancel()
			<-scanErrCh
			if temp, ok := a.Fields["temperature"].(float64); ok {
				fmt.Printf("temperature: %.1f C\n", temp)
			}
			if humidity, ok := a.Fields["humidity"].(int); ok {
				fmt.Printf("humidity: %d%%\n", humidity)
			}
			if co2, ok := a.Fields["co2"].(int); ok {
				fmt.Printf("co2: %d ppm\n", co2)
			}
			if battery, ok := a.Fields["battery"].(int); ok {
				fmt.Printf("battery: %d%%\n", battery)
			}
			return nil
		case err := <-scanErrCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("no advertisement from %s within %s", target.Address, meterWait)
		}
	}
}
