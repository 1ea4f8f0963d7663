package main

import (
	"github.com/spf13/cobra"

	"github.com/1ureka/tiltlink/internal/app"
	"github.com/1ureka/tiltlink/internal/config"
)

func (c *cli) newPadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pad",
		Short: "Sample input and stream it to every receiver",
		Long: `Start the signaling server and stream control frames to every receiver
that joins with the printed PIN.

Examples:
  tiltlink pad
  tiltlink pad --listen :7000 --pin 4321
  tiltlink pad --input sweep --mode joystick`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(config.RolePad)
			if err != nil {
				return err
			}
			return app.RunPad(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("listen", ":0", "Signaling listen address (:0 picks a random port)")
	cmd.Flags().String("pin", "", "Join PIN (random when empty)")
	cmd.Flags().String("input", string(config.SourceKeyboard), "Input source: keyboard, sweep or none")

	return cmd
}
