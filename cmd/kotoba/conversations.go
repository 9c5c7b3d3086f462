package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
)

func newConversationsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List or delete stored conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations, most recently active first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, _, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				printConversations(c.stdout, a.Chats.List(), "")
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>...",
			Short: "Delete conversations",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, _, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				for _, id := range args {
					if err := a.Chats.Delete(cmd.Context(), id); err != nil {
						return err
					}
				}
				fmt.Fprintf(c.stdout, "Deleted %d conversation(s).\n", len(args))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every conversation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, _, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				n := a.Chats.Len()
				if err := a.Chats.ClearAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Deleted %d conversation(s).\n", n)
				return nil
			},
		},
	)
	return cmd
}

// printConversations writes one line per conversation, marking current.
func printConversations(w io.Writer, list []chat.Summary, current string) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No conversations yet.")
		return
	}
	for _, s := range list {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		last := time.UnixMilli(s.LastActivity).Local().Format("2006-01-02 15:04")
		fmt.Fprintf(w, "%s %s  %-40s  %3d msgs  %s\n", marker, s.ID, s.Title, s.MessageCount, last)
	}
}
