package cmd

import (
	"github.com/spf13/cobra"
	"viera/cmd/cli"
	"viera/internal/logger"
)

var (
	debugFlag     bool
	testFlag      bool
	cliConfigPath string
)

var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Start the interactive remote",
	Long: `Launch the interactive Terminal User Interface (TUI) remote for a Viera TV.
Televisions listed in the hub configuration can be picked from the setup screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stderr output would corrupt the alt screen
		logger.SetSilentMode(true)
		if debugFlag {
			logger.SetLevel(logger.LOG_DEBUG)
		}

		log := logger.New()
		log.Info().
			Bool("debug", debugFlag).
			Bool("test", testFlag).
			Msg("Starting Viera CLI interface")

		if err := cli.StartTUI(debugFlag, testFlag, cliConfigPath); err != nil {
			log.Error().Err(err).Msg("Failed to start TUI")
			return err
		}

		return nil
	},
}

func init() {
	cliCmd.Flags().BoolVar(&debugFlag, "debug", false, "Show debug details in the remote log panel")
	cliCmd.Flags().BoolVar(&testFlag, "test", false, "Enable test mode (simulate device responses without HTTP calls)")
	cliCmd.Flags().StringVarP(&cliConfigPath, "config", "c", "hub.yml", "hub configuration listing known televisions")
}
