package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/switchbot-ble/switchbot/pkg/config"
	"github.com/switchbot-ble/switchbot/pkg/device"
	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

var errNoTarget = errors.New("no target: pass --address, or --device together with --config")

// addTargetFlags registers the flags shared by every device command.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("address", "a", "", "Device BLE address")
	cmd.Flags().StringP("device", "d", "", "Device name from the configuration file")
	cmd.Flags().Int("retries", 0, "Retry count for transient failures (0 for default)")
}

// resolveTarget merges the --address/--device flags with the configuration
// file into one device description.
func resolveTarget(cmd *cobra.Command) (config.DeviceConfig, error) {
	address, _ := cmd.Flags().GetString("address")
	name, _ := cmd.Flags().GetString("device")

	if address != "" {
		return config.DeviceConfig{Address: address}, nil
	}
	if name == "" {
		return config.DeviceConfig{}, errNoTarget
	}

	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		return config.DeviceConfig{}, fmt.Errorf("--device %q requires --config", name)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.DeviceConfig{}, err
	}
	dev, ok := cfg.Device(name)
	if !ok {
		return config.DeviceConfig{}, fmt.Errorf("device %q not found in %s", name, cfgPath)
	}
	return dev, nil
}

// commandSetup resolves the target and builds the transport and options for
// a device command.
func commandSetup(cmd *cobra.Command) (config.DeviceConfig, *gatt.BLETransport, device.Options, error) {
	logger, err := configureLogger(cmd)
	if err != nil {
		return config.DeviceConfig{}, nil, device.Options{}, err
	}
	target, err := resolveTarget(cmd)
	if err != nil {
		return config.DeviceConfig{}, nil, device.Options{}, err
	}
	cmd.SilenceUsage = true

	retries, _ := cmd.Flags().GetInt("retries")
	opts := device.Options{
		Logger:     logger,
		Password:   target.Password,
		RetryCount: retries,
	}
	return target, gatt.NewBLETransport(logger), opts, nil
}
