package chat

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// Export writes every conversation as plain text, newest first. Assistant
// turns are attributed to assistantName.
func (s *Store) Export(w io.Writer, assistantName string) error {
	s.mu.Lock()
	ordered := s.sortedLocked()
	convs := make([]Conversation, len(ordered))
	for i, c := range ordered {
		convs[i] = c.clone()
	}
	now := s.now()
	s.mu.Unlock()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s - All Conversations Export\n", assistantName)
	fmt.Fprintf(bw, "Exported on: %s\n", now.Format(time.RFC1123))
	fmt.Fprintf(bw, "Total conversations: %d\n\n", len(convs))
	fmt.Fprintf(bw, "%s\n\n", strings.Repeat("=", 80))

	for i, c := range convs {
		fmt.Fprintf(bw, "CONVERSATION %d\n", i+1)
		fmt.Fprintf(bw, "Title: %s\n", c.Title)
		fmt.Fprintf(bw, "Created: %s\n", time.UnixMilli(c.CreatedAt).Format(time.RFC1123))
		fmt.Fprintf(bw, "Messages: %d\n\n", len(c.Messages))
		for _, m := range c.Messages {
			sender := assistantName
			if m.Role == RoleUser {
				sender = "You"
			}
			fmt.Fprintf(bw, "%s:\n%s\n\n", sender, m.Content)
		}
		fmt.Fprintf(bw, "%s\n\n", strings.Repeat("-", 60))
	}
	return bw.Flush()
}
