package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
	"github.com/bdobrica/Kotoba/internal/kotoba/generation"
	"github.com/bdobrica/Kotoba/internal/kotoba/identity"
	"github.com/bdobrica/Kotoba/internal/kotoba/memory"
	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

// typingTimeout is how long the typing indicator lasts if it is not
// cleared.
const typingTimeout = 60 * time.Second

const helpText = `Commands:
/new - start a new conversation in this room
/regen - regenerate the last reply
/cancel - stop the reply being generated
/memory - show what I remember about you
/memory reset - forget everything about you
/settings - show settings
/settings set name=value - change a setting
/settings reset - restore default settings
/help - show this message`

// Sender is the subset of Client the bot replies through.
type Sender interface {
	SendFormattedMessage(ctx context.Context, roomID, html, plaintext string) error
	SendNotice(ctx context.Context, roomID, message string) error
	SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error
}

// Bot turns room messages into engine operations. Each room writes to one
// conversation at a time; each sender has their own memory profile.
type Bot struct {
	Controller *generation.Controller
	Chats      *chat.Store
	Memory     *memory.Store
	Settings   *settings.Store
	Rooms      *RoomMap
	Sender     Sender
	// EnhancedUsers get the enhanced prompt.
	EnhancedUsers []string
	Logger        *slog.Logger

	wg sync.WaitGroup
}

// HandleEvent is a MessageHandler. Generation runs off the sync loop so a
// message that arrives mid-reply gets the busy notice instead of waiting.
func (b *Bot) HandleEvent(ctx context.Context, evt *event.Event) {
	msg := evt.Content.AsMessage()
	if msg == nil {
		return
	}
	roomID, sender, body := evt.RoomID.String(), evt.Sender.String(), msg.Body
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.HandleText(context.WithoutCancel(ctx), roomID, sender, body)
	}()
}

// Wait blocks until handlers started by HandleEvent return.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleText processes one message from sender in roomID.
func (b *Bot) HandleText(ctx context.Context, roomID, sender, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	ident := b.identity(sender)
	logger := b.logger().With("room", roomID, "sender", sender)

	if strings.HasPrefix(text, "/") {
		b.command(ctx, logger, roomID, ident, text)
		return
	}
	b.chat(ctx, logger, roomID, ident, text)
}

func (b *Bot) identity(sender string) identity.Identity {
	return identity.Identity{
		UserID:   sender,
		Enhanced: slices.Contains(b.EnhancedUsers, sender),
	}
}

func (b *Bot) chat(ctx context.Context, logger *slog.Logger, roomID string, ident identity.Identity, text string) {
	b.typing(ctx, logger, roomID, true)
	defer b.typing(ctx, logger, roomID, false)

	convID := b.Rooms.Conversation(roomID)
	res, err := b.Controller.Submit(ctx, generation.Request{
		Identity:       ident,
		ConversationID: convID,
		Text:           text,
	})
	if errors.Is(err, chat.ErrNotFound) {
		// The room's conversation was swept or deleted; start over.
		logger.Info("room conversation gone, starting a new one", "conversation_id", convID)
		res, err = b.Controller.Submit(ctx, generation.Request{Identity: ident, Text: text})
	}
	if res != nil && res.ConversationID != convID {
		if err := b.Rooms.Bind(ctx, roomID, res.ConversationID); err != nil {
			logger.Warn("failed to bind room", "err", err)
		}
	}
	if err != nil {
		b.notice(ctx, logger, roomID, generation.Explain(err))
		return
	}
	b.reply(ctx, logger, roomID, res)
}

func (b *Bot) reply(ctx context.Context, logger *slog.Logger, roomID string, res *generation.Result) {
	if err := b.Sender.SendFormattedMessage(ctx, roomID, markdownToHTML(res.Reply), res.Reply); err != nil {
		logger.Error("failed to send reply", "err", err)
		return
	}
	if len(res.FollowUps) > 0 {
		b.notice(ctx, logger, roomID, "You could ask:\n- "+strings.Join(res.FollowUps, "\n- "))
	}
}

func (b *Bot) command(ctx context.Context, logger *slog.Logger, roomID string, ident identity.Identity, text string) {
	name, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	var msg string
	switch name {
	case "/help":
		msg = helpText
	case "/new":
		msg = "Started a new conversation."
		if err := b.Rooms.Bind(ctx, roomID, ""); err != nil {
			msg = generation.Explain(err)
		}
	case "/cancel":
		msg = "Nothing is being generated."
		if b.Controller.Cancel() {
			msg = ""
		}
	case "/regen":
		b.regenerate(ctx, logger, roomID, ident)
		return
	case "/memory":
		msg = b.memoryCommand(ctx, ident, args)
	case "/settings":
		msg = b.settingsCommand(ctx, args)
	default:
		msg = fmt.Sprintf("Unknown command %s. Type /help for commands.", name)
	}
	if msg != "" {
		b.notice(ctx, logger, roomID, msg)
	}
}

func (b *Bot) regenerate(ctx context.Context, logger *slog.Logger, roomID string, ident identity.Identity) {
	conv, ok := b.Chats.Get(b.Rooms.Conversation(roomID))
	if !ok || len(conv.Messages) == 0 {
		b.notice(ctx, logger, roomID, "There is no reply to regenerate yet.")
		return
	}
	last := len(conv.Messages) - 1
	if conv.Messages[last].Role != chat.RoleAssistant {
		b.notice(ctx, logger, roomID, "The last message is not a reply.")
		return
	}

	b.typing(ctx, logger, roomID, true)
	defer b.typing(ctx, logger, roomID, false)

	res, err := b.Controller.Regenerate(ctx, ident, conv.ID, last)
	if err != nil {
		b.notice(ctx, logger, roomID, generation.Explain(err))
		return
	}
	b.reply(ctx, logger, roomID, res)
}

func (b *Bot) memoryCommand(ctx context.Context, ident identity.Identity, args string) string {
	switch args {
	case "":
		return "I remember: " + b.Memory.Stats(ident.UserID).String() + "."
	case "reset":
		if _, err := b.Memory.Reset(ctx, ident.UserID); err != nil {
			return generation.Explain(err)
		}
		return "Memory cleared."
	}
	return "Usage: /memory or /memory reset"
}

func (b *Bot) settingsCommand(ctx context.Context, args string) string {
	sub, rest, _ := strings.Cut(args, " ")
	switch sub {
	case "":
		return settings.Describe(b.Settings.Current())
	case "set":
		patch, err := settings.ParseAssignment(rest)
		if err != nil {
			return err.Error()
		}
		s, err := b.Settings.Update(ctx, patch)
		if err != nil {
			return err.Error()
		}
		return "Settings updated:\n" + settings.Describe(s)
	case "reset":
		if _, err := b.Settings.Reset(ctx); err != nil {
			return err.Error()
		}
		return "Settings restored to defaults."
	}
	return "Usage: /settings, /settings set name=value or /settings reset"
}

func (b *Bot) notice(ctx context.Context, logger *slog.Logger, roomID, msg string) {
	if err := b.Sender.SendNotice(ctx, roomID, msg); err != nil {
		logger.Error("failed to send notice", "err", err)
	}
}

func (b *Bot) typing(ctx context.Context, logger *slog.Logger, roomID string, on bool) {
	timeout := typingTimeout
	if !on {
		timeout = 0
	}
	if err := b.Sender.SetTyping(ctx, roomID, on, timeout); err != nil {
		logger.Debug("failed to set typing", "err", err)
	}
}

func (b *Bot) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}
