// Package generation runs one completion at a time: it guards submissions,
// records the user turn, assembles context, calls the gateway and records
// the reply (or a visible error) before returning to idle.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bdobrica/Kotoba/common/trace"
	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
	"github.com/bdobrica/Kotoba/internal/kotoba/identity"
	"github.com/bdobrica/Kotoba/internal/kotoba/memory"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

// MaxInputLength is the longest accepted user message, in characters.
const MaxInputLength = 4000

var (
	ErrEmptyMessage   = errors.New("generation: message is empty")
	ErrMessageTooLong = fmt.Errorf("generation: message exceeds %d characters", MaxInputLength)
	// ErrBusy is returned when a generation is already in flight. The
	// submission is dropped, not queued.
	ErrBusy      = errors.New("generation: a reply is already being generated")
	ErrThrottled = errors.New("generation: too many messages, slow down")
	// ErrConversationGone is returned when the conversation was deleted
	// while its reply was pending. The reply is discarded.
	ErrConversationGone = errors.New("generation: conversation deleted during generation")
	// ErrCanceled is returned when the in-flight generation was canceled.
	// Nothing is appended; the Result returned with it carries only the
	// conversation id.
	ErrCanceled = errors.New("generation: canceled")
	// ErrNoPrompt is returned by Regenerate when the message is not preceded
	// by a user turn.
	ErrNoPrompt = errors.New("generation: no user message to regenerate from")

	// errTimedOut stands in for the gateway error when Timeout expires, so
	// the user sees a short reason.
	errTimedOut = errors.New("request timed out")
)

// RejectedError is returned when the content filter refuses a message.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "generation: message rejected: " + e.Reason
}

// State is the controller's position in the generation cycle.
type State int

const (
	StateIdle State = iota
	StateGenerating
	// StateError is held only while the failure message is recorded; the
	// controller then returns to StateIdle.
	StateError
)

func (s State) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status is a snapshot for health reporting.
type Status struct {
	State          State
	ConversationID string
	GenerationID   string
	// LastFailure is the kind of the most recent failed generation.
	LastFailure nlp.Kind
	// Failures counts failed generations since start.
	Failures int
}

// Config wires a Controller. Chats, Settings and Gateway are required.
type Config struct {
	Chats    *chat.Store
	Memory   *memory.Store
	Settings *settings.Store
	Gateway  nlp.Gateway
	Params   nlp.Params
	// Limiter throttles submissions per identity; nil disables throttling.
	Limiter *nlp.RateLimiter
	// Timeout bounds each gateway call; zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
	Now     func() time.Time
}

// Controller serializes generations. It is safe for concurrent use; at most
// one generation runs at a time across all conversations.
type Controller struct {
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	assembler *memory.ContextAssembler
	extractor *memory.Extractor

	mu          sync.Mutex
	state       State
	convID      string
	genID       string
	cancel      context.CancelFunc
	lastFailure nlp.Kind
	failures    int
}

// New returns an idle Controller.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Params.Model == "" {
		cfg.Params = nlp.DefaultParams()
	}
	c := &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		now:    cfg.Now,
		assembler: &memory.ContextAssembler{
			Chats:  cfg.Chats,
			Memory: cfg.Memory,
			Logger: cfg.Logger,
			Now:    cfg.Now,
		},
	}
	if cfg.Memory != nil {
		c.extractor = &memory.Extractor{Store: cfg.Memory, Logger: cfg.Logger}
	}
	return c
}

// Request is one user submission. An empty ConversationID starts a new
// conversation.
type Request struct {
	Identity       identity.Identity
	ConversationID string
	Text           string
}

// Result is the outcome of a resolved generation.
type Result struct {
	ConversationID string
	GenerationID   string
	// Reply is the recorded assistant message: the model's answer, or the
	// error text when Failed.
	Reply  string
	Failed bool
	Kind   nlp.Kind
	// FollowUps are suggestions for the next message. They are not stored
	// and should be hidden after FollowUpsExpireAt.
	FollowUps         []string
	FollowUpsExpireAt time.Time
}

// Submit records the user's message and generates a reply. Guard failures
// (ErrEmptyMessage, ErrMessageTooLong, *RejectedError, ErrBusy,
// ErrThrottled) happen before anything is stored. A gateway failure is not
// an error: the turn gets an error reply and Result.Failed is set.
func (c *Controller) Submit(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxInputLength {
		return nil, ErrMessageTooLong
	}
	if ok, reason := nlp.FilterContent(text); !ok {
		return nil, &RejectedError{Reason: reason}
	}
	if req.ConversationID != "" && !c.cfg.Chats.Exists(req.ConversationID) {
		return nil, fmt.Errorf("%w: %s", chat.ErrNotFound, req.ConversationID)
	}

	genCtx, err := c.begin(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer c.finish()

	if c.cfg.Limiter != nil && !c.cfg.Limiter.Allow(limiterKey(req.Identity)) {
		return nil, ErrThrottled
	}

	convID := req.ConversationID
	if convID == "" {
		if convID, err = c.cfg.Chats.Create(genCtx); err != nil {
			return nil, fmt.Errorf("generation: create conversation: %w", err)
		}
		c.setConversation(convID)
	}
	if _, err := c.cfg.Chats.Append(genCtx, convID, chat.RoleUser, text); err != nil {
		return nil, fmt.Errorf("generation: record user message: %w", err)
	}

	return c.generate(genCtx, req.Identity, convID, text)
}

// Regenerate deletes the assistant reply at index and generates a new one
// from the user message just before it. The content filter is not applied
// again.
func (c *Controller) Regenerate(ctx context.Context, ident identity.Identity, convID string, index int) (*Result, error) {
	genCtx, err := c.begin(ctx, convID)
	if err != nil {
		return nil, err
	}
	defer c.finish()

	conv, ok := c.cfg.Chats.Get(convID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", chat.ErrNotFound, convID)
	}
	if index <= 0 || index >= len(conv.Messages) {
		return nil, fmt.Errorf("%w: %d", chat.ErrIndex, index)
	}
	prompt := conv.Messages[index-1]
	if prompt.Role != chat.RoleUser {
		return nil, ErrNoPrompt
	}
	if _, err := c.cfg.Chats.RemoveMessage(genCtx, convID, index); err != nil {
		return nil, fmt.Errorf("generation: remove reply: %w", err)
	}

	return c.generate(genCtx, ident, convID, prompt.Content)
}

// Cancel aborts the in-flight generation, if any. The pending Submit
// returns ErrCanceled unless the gateway had already answered, in which case
// the reply is kept. It reports whether a generation was running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateGenerating || c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// InFlight reports whether a generation for convID is running. The
// retention sweep uses it to skip that conversation.
func (c *Controller) InFlight(convID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle && c.convID != "" && c.convID == convID
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot for health reporting.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:          c.state,
		ConversationID: c.convID,
		GenerationID:   c.genID,
		LastFailure:    c.lastFailure,
		Failures:       c.failures,
	}
}

// generate assembles, calls the gateway and records the outcome. It runs
// with the controller in StateGenerating.
func (c *Controller) generate(ctx context.Context, ident identity.Identity, convID, userText string) (*Result, error) {
	logger := trace.Logger(ctx, c.logger).With("conversation_id", convID)
	cfg := c.cfg.Settings.Current()

	msgs, err := c.assembler.Assemble(ctx, memory.Request{
		ConversationID: convID,
		Identity:       ident,
		Settings:       cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("generation: assemble context: %w", err)
	}

	started := c.now()
	reply, callErr := c.cfg.Gateway.Complete(ctx, msgs, c.cfg.Params)
	elapsed := c.now().Sub(started)

	if callErr != nil && errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("generation canceled", "elapsed", elapsed)
		return &Result{ConversationID: convID, GenerationID: trace.GenerationID(ctx)}, ErrCanceled
	}
	if !c.cfg.Chats.Exists(convID) {
		logger.Info("generation discarded, conversation deleted", "elapsed", elapsed)
		return nil, ErrConversationGone
	}

	res := &Result{ConversationID: convID, GenerationID: trace.GenerationID(ctx)}
	if callErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			callErr = errTimedOut
		}
		kind := nlp.Classify(callErr)
		c.markFailed(kind)
		logger.Warn("generation failed", "kind", kind.String(), "elapsed", elapsed, "err", callErr)

		res.Failed = true
		res.Kind = kind
		res.Reply = nlp.ErrorReply(callErr)
		// Recording the error reply must not depend on the expired context.
		if _, err := c.cfg.Chats.Append(context.WithoutCancel(ctx), convID, chat.RoleAssistant, res.Reply); err != nil {
			return nil, c.appendFailure(err)
		}
		return res, nil
	}

	// The answer arrived; keep it even if the context ended meanwhile.
	recordCtx := context.WithoutCancel(ctx)
	if _, err := c.cfg.Chats.Append(recordCtx, convID, chat.RoleAssistant, reply); err != nil {
		return nil, c.appendFailure(err)
	}
	logger.Info("generation complete", "elapsed", elapsed, "reply_chars", utf8.RuneCountInString(reply))

	if c.extractor != nil {
		c.extractor.Process(recordCtx, memory.Turn{
			Identity:       ident,
			Settings:       cfg,
			ConversationID: convID,
			UserText:       userText,
			Reply:          reply,
		})
	}

	res.Reply = reply
	res.FollowUps = nlp.FollowUps(reply, cfg.FollowUpsEnabled)
	if len(res.FollowUps) > 0 {
		res.FollowUpsExpireAt = c.now().Add(nlp.FollowUpTTL)
	}
	return res, nil
}

func (c *Controller) appendFailure(err error) error {
	if errors.Is(err, chat.ErrNotFound) {
		return ErrConversationGone
	}
	return fmt.Errorf("generation: record reply: %w", err)
}

// begin moves Idle -> Generating and returns the context the generation
// runs under.
func (c *Controller) begin(parent context.Context, convID string) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return nil, ErrBusy
	}

	genID := trace.NewGenerationID()
	ctx := trace.WithGenerationID(parent, genID)
	var cancel context.CancelFunc
	if c.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	c.state = StateGenerating
	c.convID = convID
	c.genID = genID
	c.cancel = cancel
	return ctx, nil
}

// finish returns the controller to Idle whatever happened.
func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.state = StateIdle
	c.convID = ""
	c.genID = ""
	c.cancel = nil
}

func (c *Controller) setConversation(convID string) {
	c.mu.Lock()
	c.convID = convID
	c.mu.Unlock()
}

func (c *Controller) markFailed(kind nlp.Kind) {
	c.mu.Lock()
	c.state = StateError
	c.lastFailure = kind
	c.failures++
	c.mu.Unlock()
}

func limiterKey(ident identity.Identity) string {
	if ident.Authenticated() {
		return ident.UserID
	}
	return "anonymous"
}
