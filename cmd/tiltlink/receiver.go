package main

import (
	"github.com/spf13/cobra"

	"github.com/1ureka/tiltlink/internal/app"
	"github.com/1ureka/tiltlink/internal/config"
)

func (c *cli) newReceiverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receiver",
		Short: "Join a pad and display its control frames",
		Example: `  tiltlink receiver --url ws://192.168.1.20:41234/ws?pin=1234
  tiltlink receiver --url 192.168.1.20:41234?pin=1234 --name wheel`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(config.RoleReceiver)
			if err != nil {
				return err
			}
			return app.RunReceiver(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("url", "", "Pad signaling URL, including ?pin=")

	return cmd
}
