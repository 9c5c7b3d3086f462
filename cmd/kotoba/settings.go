package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

func newSettingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change assistant settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the current settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, _, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				fmt.Fprintln(c.stdout, settings.Describe(a.Settings.Current()))
				return nil
			},
		},
		&cobra.Command{
			Use:     "set name=value...",
			Short:   "Change one or more settings",
			Example: "  kotoba settings set contextLength=20 responseStyle=concise",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var patch settings.Patch
				for _, arg := range args {
					p, err := settings.ParseAssignment(arg)
					if err != nil {
						return err
					}
					patch = patch.Merge(p)
				}
				a, _, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				s, err := a.Settings.Update(cmd.Context(), patch)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, settings.Describe(s))
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, _, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				s, err := a.Settings.Reset(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, settings.Describe(s))
				return nil
			},
		},
	)
	return cmd
}
