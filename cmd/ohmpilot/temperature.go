package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var setTemperatureCmd = &cobra.Command{
	Use:   "set-temperature <celsius>",
	Short: "Send a target temperature to the device's HTTP command endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tempC, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("temperature must be an integer: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cc, err := buildCommander(cfg)
		if err != nil {
			return err
		}

		if err := cc.SetTargetTemperature(cmd.Context(), tempC); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "target temperature set to %d C\n", tempC)
		return nil
	},
}
