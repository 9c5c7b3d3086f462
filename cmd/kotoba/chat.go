package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kotoba/internal/kotoba/app"
	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
	"github.com/bdobrica/Kotoba/internal/kotoba/generation"
	"github.com/bdobrica/Kotoba/internal/kotoba/identity"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
)

const replHelp = `Commands:
/new             start a new conversation
/list            list conversations
/open <id>       switch to a conversation
/delete [<id>]   delete a conversation (default: the current one)
/regen           regenerate the last reply
/help            show this message
exit             quit
Press Ctrl+C while a reply is being generated to stop it.`

func newChatCmd(c *cli) *cobra.Command {
	var (
		message        string
		conversationID string
		ephemeral      bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal, in single message or REPL mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cfg, err := c.open(cmd.Context(), ephemeral)
			if err != nil {
				return err
			}
			defer a.Close()

			s := &session{
				app:    a,
				ident:  identityFrom(cfg),
				convID: conversationID,
				out:    c.stdout,
			}
			if conversationID != "" && !a.Chats.Exists(conversationID) {
				return fmt.Errorf("%w: %s", chat.ErrNotFound, conversationID)
			}
			if message != "" {
				return s.submit(cmd.Context(), message)
			}
			return s.repl(cmd.Context(), c.stdin)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "send a single message and exit")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep everything in memory; nothing is saved")
	return cmd
}

// session is one terminal chat.
type session struct {
	app    *app.App
	ident  identity.Identity
	convID string
	out    io.Writer
}

func (s *session) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.out, "%s (type /help for commands, exit to quit)\n", nlp.DisplayName(s.ident.Enhanced))
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(s.out, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		var err error
		if strings.HasPrefix(input, "/") {
			err = s.command(ctx, input)
		} else {
			err = s.submit(ctx, input)
		}
		if err != nil {
			fmt.Fprintln(s.out, generation.Explain(err))
		}
	}
	fmt.Fprintln(s.out)
	return scanner.Err()
}

// submit sends text and prints the reply. Ctrl+C cancels the generation
// instead of killing the process.
func (s *session) submit(ctx context.Context, text string) error {
	genCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := s.app.Controller.Submit(genCtx, generation.Request{
		Identity:       s.ident,
		ConversationID: s.convID,
		Text:           text,
	})
	if res != nil {
		// A canceled generation still created the conversation.
		s.convID = res.ConversationID
	}
	if err != nil {
		return err
	}
	s.print(res)
	return nil
}

func (s *session) print(res *generation.Result) {
	fmt.Fprintln(s.out, res.Reply)
	for _, f := range res.FollowUps {
		fmt.Fprintf(s.out, "  -> %s\n", f)
	}
}

func (s *session) command(ctx context.Context, input string) error {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/help":
		fmt.Fprintln(s.out, replHelp)
	case "/new":
		s.convID = ""
		fmt.Fprintln(s.out, "Started a new conversation.")
	case "/list":
		printConversations(s.out, s.app.Chats.List(), s.convID)
	case "/open":
		if !s.app.Chats.Exists(arg) {
			return fmt.Errorf("%w: %s", chat.ErrNotFound, arg)
		}
		s.convID = arg
		conv, _ := s.app.Chats.Get(arg)
		fmt.Fprintf(s.out, "Opened %q (%d messages).\n", conv.Title, len(conv.Messages))
	case "/delete":
		id := arg
		if id == "" {
			id = s.convID
		}
		if id == "" {
			fmt.Fprintln(s.out, "No conversation to delete.")
			return nil
		}
		if err := s.app.Chats.Delete(ctx, id); err != nil {
			return err
		}
		if id == s.convID {
			s.convID = ""
		}
		fmt.Fprintln(s.out, "Deleted.")
	case "/regen":
		return s.regenerate(ctx)
	default:
		fmt.Fprintf(s.out, "Unknown command %s. Type /help for commands.\n", name)
	}
	return nil
}

func (s *session) regenerate(ctx context.Context) error {
	conv, ok := s.app.Chats.Get(s.convID)
	if !ok || len(conv.Messages) == 0 || conv.Messages[len(conv.Messages)-1].Role != chat.RoleAssistant {
		return generation.ErrNoPrompt
	}
	last := len(conv.Messages) - 1

	genCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	res, err := s.app.Controller.Regenerate(genCtx, s.ident, s.convID, last)
	if err != nil {
		return err
	}
	s.print(res)
	return nil
}
