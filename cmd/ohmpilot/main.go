package main

import (
	"os"
	_ "time/tzdata" // zone database for time_sync.timezone on minimal images

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ohmpilot",
	Short:         "Divert surplus solar power into a Fronius Ohmpilot",
	Long:          "Polls a Fronius Ohmpilot over Modbus TCP, computes a heater setpoint from surplus power and writes it back.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ohmpilot.yaml", "path to the YAML config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(setTemperatureCmd)
	rootCmd.AddCommand(syncTimeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
