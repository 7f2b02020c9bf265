package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/switchbot-ble/switchbot/pkg/device"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Control a Relay Switch 1PM",
}

var (
	relayKeyID string
	relayKey   string
)

func withRelay(cmd *cobra.Command, fn func(context.Context, *device.RelaySwitch) error) error {
	target, transport, opts, err := commandSetup(cmd)
	if err != nil {
		return err
	}
	keyID, key := target.KeyID, target.EncryptionKey
	if relayKeyID != "" {
		keyID = relayKeyID
	}
	if relayKey != "" {
		key = relayKey
	}
	r, err := device.NewRelaySwitch(transport, target.Address, keyID, key, opts)
	if err != nil {
		return err
	}
	defer r.Disconnect()

	ctx, cancel := commandContext()
	defer cancel()
	return fn(ctx, r)
}

func relayActionCmd(use, short string, action func(context.Context, *device.RelaySwitch) error) *cobra.Command {
	sub := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRelay(cmd, action)
		},
	}
	addTargetFlags(sub)
	sub.Flags().StringVar(&relayKeyID, "key-id", "", "Credential key id (two hex digits)")
	sub.Flags().StringVar(&relayKey, "key", "", "Encryption key (32 hex digits)")
	return sub
}

func init() {
	relayCmd.AddCommand(relayActionCmd("on", "Close the relay",
		func(ctx context.Context, r *device.RelaySwitch) error { return r.TurnOn(ctx) }))
	relayCmd.AddCommand(relayActionCmd("off", "Open the relay",
		func(ctx context.Context, r *device.RelaySwitch) error { return r.TurnOff(ctx) }))
	relayCmd.AddCommand(relayActionCmd("toggle", "Flip the relay state",
		func(ctx context.Context, r *device.RelaySwitch) error { return r.Toggle(ctx) }))
	relayCmd.AddCommand(relayActionCmd("power", "Read voltage and current",
		func(ctx context.Context, r *device.RelaySwitch) error {
			reading, err := r.VoltageAndCurrent(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("voltage: %.1f V\n", reading.Voltage)
			fmt.Printf("current: %d mA\n", reading.Current)
			return nil
		}))
}
