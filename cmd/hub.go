package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"viera/internal/cli"
	"viera/internal/hub"
	"viera/internal/logger"
)

var (
	hubConfigPath string
	hubDebugFlag  bool
	hubTestFlag   bool

	hubDeviceName           string
	hubDevicePort           int
	hubDeviceProbeTimeout   time.Duration
	hubDeviceCommandTimeout time.Duration
	hubDeviceBackup         bool

	hubTokenTTL time.Duration
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Start the Viera Hub daemon",
	Long: `Viera Hub is a daemon that manages the televisions listed in its configuration file.
It serves a REST API for remote control actions, polls power state, and can
bridge devices to MQTT and HomeKit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.SetSilentMode(false)
		if hubDebugFlag {
			logger.SetLevel(logger.LOG_DEBUG)
		} else {
			logger.SetLevel(logger.LOG_INFO)
		}

		log := logger.New()
		log.Info().
			Str("config_path", hubConfigPath).
			Bool("debug", hubDebugFlag).
			Bool("test", hubTestFlag).
			Msg("Starting Viera Hub daemon")

		if _, err := os.Stat(hubConfigPath); errors.Is(err, os.ErrNotExist) {
			defaultConfig := hub.NewDefaultConfig()
			if err := hub.SaveConfig(defaultConfig, hubConfigPath); err != nil {
				log.Error().Err(err).Msg("Failed to create default config file")
				return fmt.Errorf("failed to create default config file: %w", err)
			}
			log.Info().
				Str("config_path", hubConfigPath).
				Msg("Created default configuration file. Please edit it with your settings.")
			return nil
		}

		daemon, err := hub.NewDaemon(hubConfigPath, hubDebugFlag, hubTestFlag)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create hub daemon")
			return fmt.Errorf("failed to create hub daemon: %w", err)
		}

		if err := daemon.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("Hub daemon stopped with error")
			return fmt.Errorf("hub daemon error: %w", err)
		}

		return nil
	},
}

var hubConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hub configuration",
	Long:  `Generate, validate or restore hub configuration files.`,
}

var hubConfigGenerateCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := configPathArg(args)

		defaultConfig := hub.NewDefaultConfig()
		if err := hub.SaveConfig(defaultConfig, configPath); err != nil {
			return fmt.Errorf("failed to save default config: %w", err)
		}

		cmd.Printf("Default configuration saved to: %s\n", configPath)
		cmd.Println("Please edit the file with your actual television addresses.")
		return nil
	},
}

var hubConfigValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := configPathArg(args)

		config, err := hub.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		cmd.Printf("Configuration file is valid: %s\n", configPath)
		cmd.Printf("Hub ID: %s (listening on %s)\n", config.Hub.ID, config.Hub.Listen)
		cmd.Printf("MQTT: %t, HomeKit: %t, auth: %t\n",
			config.MQTT.Enabled, config.HomeKit.Enabled, config.Auth.JWTSecret != "")
		cmd.Printf("Configured devices: %d\n", len(config.Devices))
		printDevices(cmd, config.Devices)

		return nil
	},
}

var hubConfigRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the configuration saved by the last backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := cli.NewConfigManager(hubConfigPath)
		if err := manager.RestoreFromBackup(); err != nil {
			return err
		}
		cmd.Printf("Configuration restored to: %s\n", manager.GetConfigPath())
		return nil
	},
}

var hubDeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage configured televisions",
}

var hubDeviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured televisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := cli.NewConfigManager(hubConfigPath).ListDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			cmd.Println("No devices configured.")
			return nil
		}
		printDevices(cmd, devices)
		return nil
	},
}

var hubDeviceAddCmd = &cobra.Command{
	Use:   "add [id] [host]",
	Short: "Add a television",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := deviceFromFlags(args[0], args[1])

		if err := cli.NewConfigManager(hubConfigPath).AddDevice(device); err != nil {
			return err
		}

		cmd.Printf("Added %s (%s) at %s\n", device.ID, device.Name, device.Endpoint().Address())
		return nil
	},
}

var hubDeviceUpdateCmd = &cobra.Command{
	Use:   "update [id] [host]",
	Short: "Replace the address and settings of a television",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := deviceFromFlags(args[0], args[1])

		if err := cli.NewConfigManager(hubConfigPath).UpdateDevice(device.ID, device); err != nil {
			return err
		}

		cmd.Printf("Updated %s (%s) at %s\n", device.ID, device.Name, device.Endpoint().Address())
		return nil
	},
}

var hubDeviceRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a television",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := cli.NewConfigManager(hubConfigPath)
		if hubDeviceBackup {
			if err := manager.BackupConfig(); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			cmd.Printf("Backed up %s\n", manager.GetConfigPath())
		}

		if err := manager.RemoveDevice(args[0]); err != nil {
			return err
		}
		cmd.Printf("Removed %s\n", args[0])
		return nil
	},
}

var hubTokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Issue an API bearer token",
	Long:  `Sign a bearer token for the hub API using auth.jwt_secret from the configuration.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := hub.LoadConfig(hubConfigPath)
		if err != nil {
			return err
		}

		ttl := config.Auth.TokenTTL
		if hubTokenTTL > 0 {
			ttl = hubTokenTTL
		}

		signer := hub.NewTokenSigner(config.Auth.JWTSecret, config.Hub.ID, ttl)
		if signer == nil {
			return fmt.Errorf("auth.jwt_secret is not set in %s", hubConfigPath)
		}

		token, err := signer.Sign(args[0])
		if err != nil {
			return err
		}

		cmd.Println(token)
		return nil
	},
}

func configPathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return hubConfigPath
}

func deviceFromFlags(id, host string) hub.DeviceConfig {
	device := cli.DeviceTemplate(id, host)
	if hubDeviceName != "" {
		device.Name = hubDeviceName
	}
	device.Port = hubDevicePort
	device.ProbeTimeout = hubDeviceProbeTimeout
	device.CommandTimeout = hubDeviceCommandTimeout
	return device
}

func printDevices(cmd *cobra.Command, devices []hub.DeviceConfig) {
	for _, device := range devices {
		cmd.Printf("  - %s (%s) at %s\n", device.ID, device.Name, device.Endpoint().Address())
	}
}

func init() {
	hubCmd.PersistentFlags().StringVarP(&hubConfigPath, "config", "c", "hub.yml", "Path to hub configuration file")
	hubCmd.Flags().BoolVarP(&hubDebugFlag, "debug", "d", false, "Enable debug logging")
	hubCmd.Flags().BoolVar(&hubTestFlag, "test", false, "Enable test mode (simulate device responses)")

	for _, c := range []*cobra.Command{hubDeviceAddCmd, hubDeviceUpdateCmd} {
		c.Flags().StringVar(&hubDeviceName, "name", "", "display name (defaults to the ID)")
		c.Flags().IntVar(&hubDevicePort, "port", 0, "control port (default 55000)")
		c.Flags().DurationVar(&hubDeviceProbeTimeout, "probe-timeout", 0, "status probe deadline")
		c.Flags().DurationVar(&hubDeviceCommandTimeout, "command-timeout", 0, "key command deadline")
	}
	hubDeviceRemoveCmd.Flags().BoolVar(&hubDeviceBackup, "backup", false, "save a copy of the configuration before removing")

	hubTokenCmd.Flags().DurationVar(&hubTokenTTL, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")

	hubCmd.AddCommand(hubConfigCmd)
	hubConfigCmd.AddCommand(hubConfigGenerateCmd)
	hubConfigCmd.AddCommand(hubConfigValidateCmd)
	hubConfigCmd.AddCommand(hubConfigRestoreCmd)

	hubCmd.AddCommand(hubDeviceCmd)
	hubDeviceCmd.AddCommand(hubDeviceListCmd)
	hubDeviceCmd.AddCommand(hubDeviceAddCmd)
	hubDeviceCmd.AddCommand(hubDeviceUpdateCmd)
	hubDeviceCmd.AddCommand(hubDeviceRemoveCmd)

	hubCmd.AddCommand(hubTokenCmd)
}
