// Package matrix connects the engine to Matrix rooms: every text message in
// a watched room is a chat turn, and a few slash commands manage the
// conversation, memory and settings.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Kotoba/common/retry"
	"github.com/bdobrica/Kotoba/common/version"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms are the room IDs Kotoba joins and answers in.
	Rooms []string
	// SyncStore persists the sync position. When nil, mautrix keeps it in
	// memory and room history replays on every restart.
	SyncStore mautrix.SyncStore
	Logger    *slog.Logger
}

// Client wraps the mautrix client.
type Client struct {
	client   *mautrix.Client
	config   Config
	logger   *slog.Logger
	rooms    map[string]bool
	retry    retry.Policy
	stopOnce sync.Once
	stopCh   chan struct{}
}

// MessageHandler processes incoming Matrix messages.
type MessageHandler func(ctx context.Context, evt *event.Event)

// New creates a Matrix client. It does not contact the homeserver.
func New(config Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}
	client.UserAgent = version.UserAgent()

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.SyncStore != nil {
		client.Store = config.SyncStore
	} else {
		logger.Warn("Matrix sync store: none configured, history will replay on restart")
	}

	sendPolicy := retry.DefaultPolicy
	sendPolicy.Retryable = transient
	sendPolicy.Logger = logger

	rooms := make(map[string]bool, len(config.Rooms))
	for _, r := range config.Rooms {
		rooms[r] = true
	}
	return &Client{
		client: client,
		config: config,
		logger: logger,
		rooms:  rooms,
		retry:  sendPolicy,
		stopCh: make(chan struct{}),
	}, nil
}

// Start joins the configured rooms and syncs in the background, reconnecting
// with exponential back-off until Stop is called.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		if c.accept(evt) {
			handler(ctx, evt)
		}
	})

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("matrix: join room %s: %w", roomID, err)
		}
	}

	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			err := c.client.SyncWithContext(ctx)
			if err == nil || ctx.Err() != nil {
				return
			}
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.logger.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
			select {
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
		}
	}()

	return nil
}

// Stop stops syncing. It is safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.client.StopSync()
	})
}

// SendFormattedMessage sends an HTML message with a plain-text fallback.
func (c *Client) SendFormattedMessage(ctx context.Context, roomID, html, plaintext string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	if err := c.send(ctx, roomID, &content); err != nil {
		return fmt.Errorf("matrix: send message: %w", err)
	}
	return nil
}

// SendNotice sends a notice, which clients render less prominently.
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	if err := c.send(ctx, roomID, &content); err != nil {
		return fmt.Errorf("matrix: send notice: %w", err)
	}
	return nil
}

// send posts content, retrying transient homeserver failures such as
// M_LIMIT_EXCEEDED.
func (c *Client) send(ctx context.Context, roomID string, content *event.MessageEventContent) error {
	return c.retry.Do(ctx, "matrix send", func(ctx context.Context) error {
		_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content)
		return err
	})
}

// transient reports whether a send may succeed if repeated.
func transient(err error) bool {
	return !errors.Is(err, mautrix.MForbidden) && !errors.Is(err, mautrix.MUnknownToken)
}

// SetTyping sets the typing indicator.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("matrix: set typing: %w", err)
	}
	return nil
}

// accept reports whether evt is a text message from someone else in a
// watched room.
func (c *Client) accept(evt *event.Event) bool {
	if evt.Sender == id.UserID(c.config.UserID) {
		return false
	}
	msg := evt.Content.AsMessage()
	if msg == nil || msg.MsgType != event.MsgText {
		return false
	}
	return c.rooms[evt.RoomID.String()]
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("join room: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
