package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/1ureka/tiltlink/internal/app"
	"github.com/1ureka/tiltlink/internal/config"
	"github.com/1ureka/tiltlink/internal/signaling"
	"github.com/1ureka/tiltlink/internal/transmit"
	"github.com/1ureka/tiltlink/internal/util"
)

// cli carries the viper instance shared by every command.
type cli struct {
	v *viper.Viper
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   "tiltlink",
		Short: "Low-latency tilt controller link over WebRTC",
		Long: `tiltlink streams steering, gas and brake from a pad to nearby receivers.

Frames are sent every tick over unordered DataChannels with no retransmits,
so a lost frame is simply replaced by the next one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if ok, _ := cmd.Flags().GetBool("version"); ok {
				fmt.Printf("tiltlink version %s\n", version)
				return nil
			}
			return c.runInteractive(cmd)
		},
	}

	cmd.Flags().BoolP("version", "v", false, "Print version information and exit")

	pf := cmd.PersistentFlags()
	pf.Duration("interval", transmit.DefaultInterval, "Transmit tick period")
	pf.String("mode", string(transmit.ModeControl), "Frame layout: control or joystick")
	pf.Bool("strict", false, "Stop on peer states the transport does not define")
	pf.String("name", "", "Display name announced to the pad (receiver)")
	pf.Bool("debug", false, "Enable debug logging")
	pf.Duration("stats-interval", time.Second, "Frame rate report period (0 disables)")

	cmd.AddCommand(c.newPadCommand())
	cmd.AddCommand(c.newReceiverCommand())

	return cmd
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"interval":       "interval",
	"mode":           "mode",
	"strict":         "strict",
	"name":           "name",
	"debug":          "debug",
	"stats-interval": "stats_interval",
	"listen":         "signaling.listen",
	"pin":            "signaling.pin",
	"input":          "input.source",
	"url":            "signaling.url",
}

// init loads the config and overlays the flags the user actually set.
func (c *cli) init(flags *pflag.FlagSet) error {
	v, err := config.New()
	if err != nil {
		return err
	}

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	c.v = v
	return nil
}

// load builds the role's config and applies process-wide settings.
func (c *cli) load(role config.Role) (*config.Config, error) {
	cfg, err := config.Load(c.v, role)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("tiltlink v%s (%s)", version, role))
	pterm.Println()
	return cfg, nil
}

// runInteractive asks for the role (and URL) when no subcommand is given.
func (c *cli) runInteractive(cmd *cobra.Command) error {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Pad      : stream tilt input", "Receiver : join a pad"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Pad") {
		cfg, err := c.load(config.RolePad)
		if err != nil {
			return err
		}
		return app.RunPad(cmd.Context(), cfg)
	}

	c.v.Set("signaling.url", askURL())
	cfg, err := c.load(config.RoleReceiver)
	if err != nil {
		return err
	}
	return app.RunReceiver(cmd.Context(), cfg)
}

// askURL prompts for a signaling URL until a valid one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Pad URL (e.g. ws://192.168.1.20:41234/ws?pin=1234)").
			Show()

		wsURL, err := signaling.NormalizeURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
