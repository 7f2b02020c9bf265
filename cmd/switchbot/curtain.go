package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/switchbot-ble/switchbot/pkg/device"
)

var curtainCmd = &cobra.Command{
	Use:   "curtain",
	Short: "Control a Curtain motor",
}

var curtainReverse bool

func withCurtain(cmd *cobra.Command, fn func(context.Context, *device.Curtain) error) error {
	target, transport, opts, err := commandSetup(cmd)
	if err != nil {
		return err
	}
	reverse := curtainReverse || target.ReversePositions
	c := device.NewCurtain(transport, target.Address, reverse, opts)
	defer c.Disconnect()

	ctx, cancel := commandContext()
	defer cancel()
	return fn(ctx, c)
}

func curtainActionCmd(use, short string, action func(context.Context, *device.Curtain) error) *cobra.Command {
	sub := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCurtain(cmd, action)
		},
	}
	addTargetFlags(sub)
	sub.Flags().BoolVar(&curtainReverse, "reverse", false, "Report 100 as open instead of closed")
	return sub
}

func init() {
	curtainCmd.AddCommand(curtainActionCmd("open", "Run fully open",
		func(ctx context.Context, c *device.Curtain) error { return c.Open(ctx) }))
	curtainCmd.AddCommand(curtainActionCmd("close", "Run fully closed",
		func(ctx context.Context, c *device.Curtain) error { return c.Close(ctx) }))
	curtainCmd.AddCommand(curtainActionCmd("stop", "Halt movement",
		func(ctx context.Context, c *device.Curtain) error { return c.Stop(ctx) }))

	positionCmd := &cobra.Command{
		Use:   "position <0-100>",
		Short: "Run to a target position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[0])
			}
			return withCurtain(cmd, func(ctx context.Context, c *device.Curtain) error {
				return c.SetPosition(ctx, position)
			})
		},
	}
	addTargetFlags(positionCmd)
	positionCmd.Flags().BoolVar(&curtainReverse, "reverse", false, "Report 100 as open instead of closed")
	curtainCmd.AddCommand(positionCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Read the curtain's settings page and chain status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCurtain(cmd, func(ctx context.Context, c *device.Curtain) error {
				info, err := c.BasicInfo(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("battery: %d%%\n", info.Battery)
				fmt.Printf("firmware: %.1f\n", info.Firmware)
				fmt.Printf("position: %d\n", info.Position)
				fmt.Printf("calibrated: %t\n", info.Calibrated)
				fmt.Printf("in motion: %t\n", info.InMotion)
				fmt.Printf("open direction: %s\n", info.OpenDirection)
				fmt.Printf("chain length: %d\n", info.ChainLength)
				fmt.Printf("solar panel: %t\n", info.SolarPanel)

				chain, err := c.ExtendedInfoAdv(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("charge: %s\n", chain.Device0.StateOfCharge)
				if chain.Device1 != nil {
					fmt.Printf("paired device battery: %d%% (%s)\n",
						chain.Device1.Battery, chain.Device1.StateOfCharge)
				}
				return nil
			})
		},
	}
	addTargetFlags(infoCmd)
	infoCmd.Flags().BoolVar(&curtainReverse, "reverse", false, "Report 100 as open instead of closed")
	curtainCmd.AddCommand(infoCmd)
}
