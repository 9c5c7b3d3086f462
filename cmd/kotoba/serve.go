package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/common/version"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer messages in the configured Matrix rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, _, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			cmd.Printf("Kotoba %s\n", version.Info())
			return a.Serve(ctx)
		},
	}
}
