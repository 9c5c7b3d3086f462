// Command kotoba is the Kotoba chat assistant: a Matrix bot (serve), a
// terminal chat (chat) and tools for inspecting stored state.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/internal/kotoba/app"
	"github.com/bdobrica/Kotoba/internal/kotoba/config"
	"github.com/bdobrica/Kotoba/internal/kotoba/identity"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
)

// cli carries what every subcommand shares. Tests swap the streams and the
// gateway.
type cli struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	gateway    nlp.Gateway
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "kotoba",
		Short:         "kotoba - a chat assistant that remembers you",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("KOTOBA_CONFIG"), "path to a YAML config file")
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.AddCommand(
		newServeCmd(c),
		newChatCmd(c),
		newConversationsCmd(c),
		newMemoryCmd(c),
		newSettingsCmd(c),
		newExportCmd(c),
		newVersionCmd(c),
	)
	return root
}

func main() {
	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// open loads the config and starts the engine. The caller closes the App.
func (c *cli) open(ctx context.Context, ephemeral bool) (*app.App, *config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Log.NewLogger(c.stderr)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger, app.Options{Ephemeral: ephemeral, Gateway: c.gateway})
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

// identityFrom is the fixed terminal identity.
func identityFrom(cfg *config.Config) identity.Identity {
	return identity.Identity{UserID: cfg.Identity.UserID, Enhanced: cfg.Identity.Enhanced}
}
