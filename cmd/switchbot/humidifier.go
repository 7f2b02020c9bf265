package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/switchbot-ble/switchbot/pkg/device"
)

var humidifierCmd = &cobra.Command{
	Use:   "humidifier",
	Short: "Control a humidifier",
}

func withHumidifier(cmd *cobra.Command, fn func(context.Context, *device.Humidifier) error) error {
	target, transport, opts, err := commandSetup(cmd)
	if err != nil {
		return err
	}
	h := device.NewHumidifier(transport, target.Address, opts)
	defer h.Disconnect()

	ctx, cancel := commandContext()
	defer cancel()
	return fn(ctx, h)
}

func humidifierActionCmd(use, short string, action func(context.Context, *device.Humidifier) error) *cobra.Command {
	sub := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHumidifier(cmd, action)
		},
	}
	addTargetFlags(sub)
	return sub
}

func init() {
	humidifierCmd.AddCommand(humidifierActionCmd("on", "Switch on in auto mode",
		func(ctx context.Context, h *device.Humidifier) error { return h.TurnOn(ctx) }))
	humidifierCmd.AddCommand(humidifierActionCmd("off", "Switch off",
		func(ctx context.Context, h *device.Humidifier) error { return h.TurnOff(ctx) }))

	levelCmd := &cobra.Command{
		Use:   "level <1-100>",
		Short: "Set a fixed humidification level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid level %q", args[0])
			}
			return withHumidifier(cmd, func(ctx context.Context, h *device.Humidifier) error {
				return h.SetLevel(ctx, level)
			})
		},
	}
	addTargetFlags(levelCmd)
	humidifierCmd.AddCommand(levelCmd)
}
