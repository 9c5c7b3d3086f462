package main

import (
	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/common/version"
)

func newVersionCmd(*cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("kotoba %s\n", version.Info())
		},
	}
}
