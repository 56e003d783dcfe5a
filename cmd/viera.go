package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"viera/internal"
	"viera/internal/cli"
	"viera/internal/logger"
	"viera/internal/viera"
)

var (
	vieraHost           string
	vieraPort           int
	vieraName           string
	vieraDevice         string
	vieraConfigPath     string
	vieraProbeTimeout   time.Duration
	vieraCommandTimeout time.Duration
	vieraDebug          bool
	vieraTest           bool
)

var vieraCmd = &cobra.Command{
	Use:   "tv",
	Short: "Control a Panasonic Viera TV",
	Long: `Control a Panasonic Viera TV over its network remote control service.
Commands are sent as SOAP X_SendKey requests to port 55000. Powering on is
not supported by the protocol; a TV that does not answer is reported as off.`,
}

var vieraStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the power state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newVieraClient()
		if err != nil {
			return err
		}

		on, err := client.ProbeStatus(vieraContext(cmd))
		if err != nil {
			log.Error().Err(err).Msg("Failed to probe power status")
			return err
		}

		cmd.Printf("%s: %s\n", client.Name(), powerLabel(on))
		return nil
	},
}

var vieraPowerCmd = &cobra.Command{
	Use:       "power [on|off]",
	Short:     "Send the power key",
	Long:      `Send the power key to turn the TV off. "on" is refused without contacting the TV.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var turnOn bool
		switch args[0] {
		case "on":
			turnOn = true
		case "off":
		default:
			return fmt.Errorf("unknown power state: %s (use 'on' or 'off')", args[0])
		}

		client, err := newVieraClient()
		if err != nil {
			return err
		}

		if err := client.SendPower(vieraContext(cmd), turnOn); err != nil {
			if errors.Is(err, viera.ErrUnsupportedOperation) {
				return fmt.Errorf("%s cannot be powered on over the network", client.Name())
			}
			return err
		}

		cmd.Printf("%s: power off sent\n", client.Name())
		return nil
	},
}

var vieraVolumeCmd = &cobra.Command{
	Use:       "volume [up|down]",
	Short:     "Step the volume",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newVieraClient()
		if err != nil {
			return err
		}

		switch args[0] {
		case "up":
			err = client.SendVolumeUp(vieraContext(cmd))
		case "down":
			err = client.SendVolumeDown(vieraContext(cmd))
		default:
			return fmt.Errorf("unknown volume direction: %s (use 'up' or 'down')", args[0])
		}
		if err != nil {
			return err
		}

		cmd.Printf("%s: volume %s sent\n", client.Name(), args[0])
		return nil
	},
}

var vieraMuteCmd = &cobra.Command{
	Use:   "mute",
	Short: "Toggle mute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newVieraClient()
		if err != nil {
			return err
		}

		if err := client.SendMute(vieraContext(cmd)); err != nil {
			return err
		}

		cmd.Printf("%s: mute sent\n", client.Name())
		return nil
	},
}

var vieraListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported remote keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println("Supported remote keys:")
		for _, c := range viera.Commands {
			cmd.Printf("  %-12s %s\n", c, c.KeyEvent())
		}
		return nil
	},
}

// newVieraClient builds a client from --device or --host
func newVieraClient() (*viera.Client, error) {
	if vieraDebug || vieraTest {
		logger.SetSilentMode(false)
		if vieraDebug {
			logger.SetLevel(logger.LOG_DEBUG)
		}
		log = logger.New()
	}

	options := internal.NewModeOptions(
		internal.WithDebug(vieraDebug),
		internal.WithTest(vieraTest),
		internal.WithProbeTimeout(vieraProbeTimeout),
		internal.WithCommandTimeout(vieraCommandTimeout),
	)

	endpoint := viera.NewEndpoint(vieraHost)
	name := vieraName

	if vieraDevice != "" {
		device, err := cli.NewConfigManager(vieraConfigPath).GetDevice(vieraDevice)
		if err != nil {
			return nil, err
		}
		endpoint = device.Endpoint()
		if name == "" {
			name = device.Name
		}
		if options.ProbeTimeout == 0 {
			options.ProbeTimeout = device.ProbeTimeout
		}
		if options.CommandTimeout == 0 {
			options.CommandTimeout = device.CommandTimeout
		}
	} else if vieraHost == "" {
		return nil, fmt.Errorf("either --host or --device is required")
	}

	if vieraPort > 0 {
		endpoint.Port = vieraPort
	}
	if name == "" {
		name = endpoint.Host
	}

	log.Debug().
		Str("device", name).
		Str("address", endpoint.Address()).
		Msg("Using Viera TV")

	return viera.NewClientForEndpoint(name, endpoint, options), nil
}

func powerLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func vieraContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	flags := vieraCmd.PersistentFlags()
	flags.StringVarP(&vieraHost, "host", "H", "", "TV host address")
	flags.IntVar(&vieraPort, "port", 0, "TV control port (default 55000)")
	flags.StringVar(&vieraName, "name", "", "display name used in logs")
	flags.StringVar(&vieraDevice, "device", "", "device ID from the hub configuration")
	flags.StringVarP(&vieraConfigPath, "config", "c", "hub.yml", "hub configuration used with --device")
	flags.DurationVar(&vieraProbeTimeout, "probe-timeout", 0, "status probe deadline (default 1s)")
	flags.DurationVar(&vieraCommandTimeout, "command-timeout", 0, "key command deadline (default 2s)")
	flags.BoolVarP(&vieraDebug, "debug", "d", false, "Enable debug logging")
	flags.BoolVar(&vieraTest, "test", false, "Enable test mode (simulate device responses without HTTP calls)")

	vieraCmd.AddCommand(vieraStatusCmd)
	vieraCmd.AddCommand(vieraPowerCmd)
	vieraCmd.AddCommand(vieraVolumeCmd)
	vieraCmd.AddCommand(vieraMuteCmd)
	vieraCmd.AddCommand(vieraListCmd)

	rootCmd.AddCommand(vieraCmd)
}
