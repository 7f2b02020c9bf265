package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/switchbot-ble/switchbot/pkg/device"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Control a Bot button pusher",
}

var botInverse bool

func withBot(cmd *cobra.Command, fn func(context.Context, *device.Bot) error) error {
	target, transport, opts, err := commandSetup(cmd)
	if err != nil {
		return err
	}
	b := device.NewBot(transport, target.Address, botInverse, opts)
	defer b.Disconnect()

	ctx, cancel := commandContext()
	defer cancel()
	return fn(ctx, b)
}

func botActionCmd(use, short string, action func(context.Context, *device.Bot) error) *cobra.Command {
	sub := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBot(cmd, action)
		},
	}
	addTargetFlags(sub)
	sub.Flags().BoolVar(&botInverse, "inverse", false, "Arm is mounted upside down")
	return sub
}

func runBotInfo(cmd *cobra.Command, _ []string) error {
	return withBot(cmd, func(ctx context.Context, b *device.Bot) error {
		info, err := b.BasicInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("battery: %d%%\n", info.Battery)
		fmt.Printf("firmware: %.1f\n", info.Firmware)
		fmt.Printf("strength: %d\n", info.Strength)
		fmt.Printf("switch mode: %t\n", info.SwitchMode)
		fmt.Printf("inverse direction: %t\n", info.InverseDirection)
		fmt.Printf("hold seconds: %d\n", info.HoldSeconds)
		return nil
	})
}

func init() {
	botCmd.AddCommand(botActionCmd("press", "Perform a momentary press",
		func(ctx context.Context, b *device.Bot) error { return b.Press(ctx) }))
	botCmd.AddCommand(botActionCmd("on", "Move the arm to the on position",
		func(ctx context.Context, b *device.Bot) error { return b.TurnOn(ctx) }))
	botCmd.AddCommand(botActionCmd("off", "Move the arm to the off position",
		func(ctx context.Context, b *device.Bot) error { return b.TurnOff(ctx) }))
	botCmd.AddCommand(botActionCmd("up", "Retract the arm",
		func(ctx context.Context, b *device.Bot) error { return b.HandUp(ctx) }))
	botCmd.AddCommand(botActionCmd("down", "Extend the arm",
		func(ctx context.Context, b *device.Bot) error { return b.HandDown(ctx) }))

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Read the bot's settings page",
		RunE:  runBotInfo,
	}
	addTargetFlags(infoCmd)
	botCmd.AddCommand(infoCmd)
}
