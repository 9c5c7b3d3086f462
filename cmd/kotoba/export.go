package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
)

func newExportCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every conversation as plain text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cfg, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var w io.Writer = c.stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := a.Chats.Export(w, nlp.DisplayName(cfg.Identity.Enhanced)); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if output != "" {
				fmt.Fprintf(c.stdout, "Exported %d conversation(s) to %s\n", a.Chats.Len(), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
