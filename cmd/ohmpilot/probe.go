package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/ohmpilot-controller/internal/device"
	"github.com/tamzrod/ohmpilot-controller/internal/logger"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the device answers on its register port",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		link, err := buildLink(cfg)
		if err != nil {
			return err
		}
		defer link.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Duration(cfg.Device.TimeoutMs)*time.Millisecond)
		defer cancel()

		code, err := device.Probe(ctx, link)
		if err != nil {
			return fmt.Errorf("probe %s failed: %w", link.Endpoint(), err)
		}

		plog := logger.WithComponent("probe")
		plog.Info().
			Str("endpoint", link.Endpoint()).
			Uint16("status", code).
			Msg("device reachable")
		fmt.Fprintf(cmd.OutOrStdout(), "%s: status %d\n", link.Endpoint(), code)
		return nil
	},
}
