package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/leebs0521/wayline-core/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "waylined",
	Short: "Flight task lifecycle daemon for docked drones",
	Long: `waylined runs the cloud-side flight task lifecycle engine:
it registers wayline missions, dispatches execute/pause/resume/cancel
commands to docked devices over MQTT, reconciles device progress
events into task state, and keeps breakpoints so interrupted missions
can resume where they stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader(config.NewValidator())
		loaded, err := loader.LoadWithDefaults(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file path (defaults apply when absent)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(versionCmd)
}
