package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/ohmpilot-controller/internal/logger"
	"github.com/tamzrod/ohmpilot-controller/internal/timesync"
)

var syncTimeCmd = &cobra.Command{
	Use:   "sync-time",
	Short: "Write the host clock and timezone offset to the device once",
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

		if err := link.Connect(cmd.Context()); err != nil {
			return err
		}

		loc, err := timeSyncLocation(cfg)
		if err != nil {
			return err
		}

		// Interval is irrelevant for a single sync but must be valid.
		interval := time.Duration(cfg.TimeSync.IntervalS) * time.Second
		if interval <= 0 {
			interval = time.Hour
		}

		task, err := timesync.New(timesync.Config{
			Interval:           interval,
			Location:           loc,
			FixedOffsetMinutes: cfg.TimeSync.FixedOffsetMinutes,
		}, link, logger.WithComponent("timesync"))
		if err != nil {
			return err
		}

		if err := task.SyncOnce(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "clock synced (offset %d min)\n", task.OffsetMinutes(time.Now()))
		return nil
	},
}
