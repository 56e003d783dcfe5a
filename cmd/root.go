package cmd

import (
	"github.com/spf13/cobra"
	"viera/internal/logger"
)

var (
	verbose bool
	log     = logger.New()
)

var rootCmd = &cobra.Command{
	Use:   "viera",
	Short: "Viera - remote control for Panasonic Viera TVs",
	Long: `Viera controls Panasonic Viera televisions over the network.
It includes one-shot commands, an interactive TUI remote, and a hub daemon
that exposes televisions over REST, MQTT and HomeKit.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetSilentMode(false)
			logger.SetLevel(logger.LOG_DEBUG)
			log = logger.New()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(cliCmd)
	rootCmd.AddCommand(hubCmd)
}
