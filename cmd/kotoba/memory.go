package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/internal/kotoba/memory"
)

const (
	shownTopics  = 10
	shownHistory = 5
)

var errNoUser = errors.New("memory is per user; set KOTOBA_USER_ID or identity.user_id")

func newMemoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Show or reset what Kotoba remembers about the configured user",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the memory profile",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, cfg, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				if cfg.Identity.UserID == "" {
					return errNoUser
				}
				p, err := a.Memory.Profile(cmd.Context(), cfg.Identity.UserID)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Memory for %s: %s\n", cfg.Identity.UserID, a.Memory.Stats(cfg.Identity.UserID))
				fmt.Fprint(c.stdout, describeProfile(p))
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget everything about the configured user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, cfg, err := c.open(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.Close()
				if cfg.Identity.UserID == "" {
					return errNoUser
				}
				if _, err := a.Memory.Reset(cmd.Context(), cfg.Identity.UserID); err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, "Memory cleared.")
				return nil
			},
		},
	)
	return cmd
}

// describeProfile renders the facts, the last topics and the last history
// entries.
func describeProfile(p memory.Profile) string {
	var b strings.Builder
	if len(p.PersonalInfo) > 0 {
		keys := make([]string, 0, len(p.PersonalInfo))
		for k := range p.PersonalInfo {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Personal information:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, p.PersonalInfo[k])
		}
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(p.Interests, ", "))
	}
	if len(p.Topics) > 0 {
		fmt.Fprintf(&b, "Recent topics: %s\n", strings.Join(lastN(p.Topics, shownTopics), ", "))
	}
	if len(p.ConversationHistory) > 0 {
		b.WriteString("Recent exchanges:\n")
		for _, h := range lastN(p.ConversationHistory, shownHistory) {
			fmt.Fprintf(&b, "  [%s] you: %s\n", h.Timestamp.Local().Format("2006-01-02 15:04"), h.UserExcerpt)
		}
	}
	return b.String()
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
