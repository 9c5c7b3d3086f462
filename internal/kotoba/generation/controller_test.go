package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
	"github.com/bdobrica/Kotoba/internal/kotoba/identity"
	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
	"github.com/bdobrica/Kotoba/internal/kotoba/memory"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

// --- fake gateways ----------------------------------------------------------

type fakeGateway struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]nlp.Message
}

func (g *fakeGateway) Complete(_ context.Context, msgs []nlp.Message, _ nlp.Params) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, msgs)
	return g.reply, g.err
}

func (g *fakeGateway) lastCall() []nlp.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

// blockingGateway holds every call until release is closed or the context
// ends.
type blockingGateway struct {
	started chan struct{}
	release chan struct{}
	reply   string
	once    sync.Once
}

func newBlockingGateway(reply string) *blockingGateway {
	return &blockingGateway{started: make(chan struct{}), release: make(chan struct{}), reply: reply}
}

func (g *blockingGateway) Complete(ctx context.Context, _ []nlp.Message, _ nlp.Params) (string, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// lateGateway answers only after the generation context has ended, like a
// provider that ignores cancellation.
type lateGateway struct {
	started chan struct{}
	reply   string
}

func (g *lateGateway) Complete(ctx context.Context, _ []nlp.Message, _ nlp.Params) (string, error) {
	close(g.started)
	<-ctx.Done()
	return g.reply, nil
}

// ctxKV fails writes under an ended context, as the sqlite backend does.
type ctxKV struct{ kv.Store }

func (s ctxKV) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value)
}

// --- harness ----------------------------------------------------------------

type harness struct {
	ctrl   *Controller
	chats  *chat.Store
	memory *memory.Store
}

var ava = identity.Identity{UserID: "ava"}

func newHarness(t *testing.T, gw nlp.Gateway, mutate func(*Config)) *harness {
	t.Helper()
	return newHarnessWith(t, kv.NewMemory(), gw, mutate)
}

func newHarnessWith(t *testing.T, backend kv.Store, gw nlp.Gateway, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		chats:  chat.NewStore(backend, nil),
		memory: memory.NewStore(backend, nil),
	}
	cfg := Config{
		Chats:    h.chats,
		Memory:   h.memory,
		Settings: settings.NewStore(backend, nil),
		Gateway:  gw,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.ctrl = New(cfg)
	return h
}

type submitOutcome struct {
	res *Result
	err error
}

func submitAsync(h *harness, req Request) <-chan submitOutcome {
	out := make(chan submitOutcome, 1)
	go func() {
		res, err := h.ctrl.Submit(context.Background(), req)
		out <- submitOutcome{res, err}
	}()
	return out
}

// --- tests --------------------------------------------------------------------

func TestSubmit_Success(t *testing.T) {
	gw := &fakeGateway{reply: "Nice to meet you, Ava! Want to see some code?"}
	h := newHarness(t, gw, nil)

	res, err := h.ctrl.Submit(context.Background(), Request{Identity: ava, Text: "  my name is Ava and I love programming  "})
	require.NoError(t, err)
	require.False(t, res.Failed)
	assert.Equal(t, gw.reply, res.Reply)
	assert.NotEmpty(t, res.GenerationID)

	conv, ok := h.chats.Get(res.ConversationID)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "my name is Ava and I love programming", conv.Messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "my name is Ava and I love programming", conv.Title)

	p, err := h.memory.Profile(context.Background(), "ava")
	require.NoError(t, err)
	assert.Equal(t, "Ava", p.PersonalInfo[memory.FactName])
	assert.Contains(t, p.Interests, "programming")

	assert.Equal(t, []string{
		"Would you like help with a specific programming language?",
		"Do you want to see some code examples?",
		"Is there anything else you'd like to know about this?",
	}, res.FollowUps)
	assert.False(t, res.FollowUpsExpireAt.IsZero())
	assert.Equal(t, StateIdle, h.ctrl.State())
}

func TestSubmit_SendsUserMessageOnce(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	h := newHarness(t, gw, nil)

	_, err := h.ctrl.Submit(context.Background(), Request{Text: "hello there"})
	require.NoError(t, err)

	msgs := gw.lastCall()
	require.Len(t, msgs, 2, "system prompt + the new user message")
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, nlp.Message{Role: "user", Content: "hello there"}, msgs[1])
}

func TestSubmit_GuardsDoNotMutate(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	h := newHarness(t, gw, nil)
	ctx := context.Background()

	_, err := h.ctrl.Submit(ctx, Request{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = h.ctrl.Submit(ctx, Request{Text: strings.Repeat("a", MaxInputLength+1)})
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = h.ctrl.Submit(ctx, Request{Text: "WHY DOES NOTHING WORK"})
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, nlp.ReasonShouting, rej.Reason)

	_, err = h.ctrl.Submit(ctx, Request{ConversationID: "chat_unknown", Text: "hi"})
	assert.ErrorIs(t, err, chat.ErrNotFound)

	assert.Equal(t, 0, h.chats.Len())
	assert.Empty(t, gw.calls)
}

func TestSubmit_RejectsWhileGenerating(t *testing.T) {
	gw := newBlockingGateway("first")
	h := newHarness(t, gw, nil)

	first := submitAsync(h, Request{Text: "first question"})
	<-gw.started
	assert.Equal(t, StateGenerating, h.ctrl.State())

	_, err := h.ctrl.Submit(context.Background(), Request{Text: "second question"})
	assert.ErrorIs(t, err, ErrBusy)

	close(gw.release)
	out := <-first
	require.NoError(t, out.err)
	assert.Equal(t, "first", out.res.Reply)
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Equal(t, 1, h.chats.Len(), "the rejected submit must not create anything")
}

func TestSubmit_FailureRecordsErrorReply(t *testing.T) {
	gw := &fakeGateway{err: &nlp.StatusError{StatusCode: 429}}
	h := newHarness(t, gw, nil)

	res, err := h.ctrl.Submit(context.Background(), Request{Text: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, nlp.KindRateLimited, res.Kind)
	assert.Nil(t, res.FollowUps)

	conv, _ := h.chats.Get(res.ConversationID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "I apologize, but I encountered an error: Rate limit exceeded. Please wait a moment. Please try again.", conv.Messages[1].Content)

	st := h.ctrl.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, nlp.KindRateLimited, st.LastFailure)
	assert.Equal(t, 1, st.Failures)

	// The user can retry immediately.
	gw.err = nil
	gw.reply = "fine now"
	res, err = h.ctrl.Submit(context.Background(), Request{ConversationID: res.ConversationID, Text: "again"})
	require.NoError(t, err)
	assert.False(t, res.Failed)
}

func TestSubmit_FailureDoesNotExtract(t *testing.T) {
	gw := &fakeGateway{err: errors.New("connection reset")}
	h := newHarness(t, gw, nil)

	res, err := h.ctrl.Submit(context.Background(), Request{Identity: ava, Text: "my name is Ava"})
	require.NoError(t, err)
	assert.Equal(t, nlp.KindUnknown, res.Kind)
	assert.Contains(t, res.Reply, "connection reset")
	assert.Equal(t, memory.Stats{}, h.memory.Stats("ava"))
}

func TestSubmit_DeletedMidGenerationDiscardsReply(t *testing.T) {
	gw := newBlockingGateway("late reply")
	h := newHarness(t, gw, nil)
	ctx := context.Background()

	id, err := h.chats.Create(ctx)
	require.NoError(t, err)

	pending := submitAsync(h, Request{ConversationID: id, Text: "question"})
	<-gw.started
	assert.True(t, h.ctrl.InFlight(id))

	require.NoError(t, h.chats.Delete(ctx, id))
	close(gw.release)

	out := <-pending
	assert.ErrorIs(t, out.err, ErrConversationGone)
	assert.False(t, h.chats.Exists(id))
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.False(t, h.ctrl.InFlight(id))
}

func TestCancel(t *testing.T) {
	gw := newBlockingGateway("never")
	h := newHarness(t, gw, nil)

	assert.False(t, h.ctrl.Cancel(), "nothing to cancel while idle")

	pending := submitAsync(h, Request{Text: "slow question"})
	<-gw.started
	assert.True(t, h.ctrl.Cancel())

	out := <-pending
	assert.ErrorIs(t, out.err, ErrCanceled)
	assert.Equal(t, StateIdle, h.ctrl.State())

	summaries := h.chats.List()
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].MessageCount, "only the user message is kept")
	require.NotNil(t, out.res)
	assert.Equal(t, summaries[0].ID, out.res.ConversationID)
	assert.Empty(t, out.res.Reply)
}

func TestSubmit_LateReplyAfterTimeoutIsKept(t *testing.T) {
	gw := &lateGateway{started: make(chan struct{}), reply: "here is your answer"}
	h := newHarnessWith(t, ctxKV{kv.NewMemory()}, gw, func(c *Config) { c.Timeout = 20 * time.Millisecond })

	res, err := h.ctrl.Submit(context.Background(), Request{Identity: ava, Text: "my name is Ava"})
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Equal(t, "here is your answer", res.Reply)

	conv, ok := h.chats.Get(res.ConversationID)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "here is your answer", conv.Messages[1].Content)

	p, err := h.memory.Profile(context.Background(), "ava")
	require.NoError(t, err)
	assert.Equal(t, "Ava", p.PersonalInfo[memory.FactName], "extraction runs after the deadline too")
}

func TestCancel_LateReplyIsKept(t *testing.T) {
	gw := &lateGateway{started: make(chan struct{}), reply: "answered anyway"}
	h := newHarnessWith(t, ctxKV{kv.NewMemory()}, gw, nil)

	pending := submitAsync(h, Request{Text: "question"})
	<-gw.started
	require.True(t, h.ctrl.Cancel())

	out := <-pending
	require.NoError(t, out.err)
	assert.Equal(t, "answered anyway", out.res.Reply)
	conv, _ := h.chats.Get(out.res.ConversationID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, StateIdle, h.ctrl.State())
}

func TestSubmit_Timeout(t *testing.T) {
	gw := newBlockingGateway("never")
	defer close(gw.release)
	h := newHarness(t, gw, func(c *Config) { c.Timeout = 20 * time.Millisecond })

	res, err := h.ctrl.Submit(context.Background(), Request{Text: "slow question"})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, "I apologize, but I encountered an error: request timed out. Please try again.", res.Reply)
	assert.Equal(t, StateIdle, h.ctrl.State())
}

func TestSubmit_Throttled(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	h := newHarness(t, gw, func(c *Config) { c.Limiter = nlp.NewRateLimiter(1) })
	ctx := context.Background()

	_, err := h.ctrl.Submit(ctx, Request{Identity: ava, Text: "one"})
	require.NoError(t, err)
	_, err = h.ctrl.Submit(ctx, Request{Identity: ava, Text: "two"})
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, StateIdle, h.ctrl.State())
}

func TestRegenerate(t *testing.T) {
	gw := &fakeGateway{reply: "first answer"}
	h := newHarness(t, gw, nil)
	ctx := context.Background()

	res, err := h.ctrl.Submit(ctx, Request{Text: "tell me a joke"})
	require.NoError(t, err)

	gw.reply = "second answer"
	res, err = h.ctrl.Regenerate(ctx, identity.Anonymous, res.ConversationID, 1)
	require.NoError(t, err)
	assert.Equal(t, "second answer", res.Reply)

	conv, _ := h.chats.Get(res.ConversationID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "tell me a joke", conv.Messages[0].Content)
	assert.Equal(t, "second answer", conv.Messages[1].Content)

	last := gw.lastCall()
	assert.Equal(t, "tell me a joke", last[len(last)-1].Content)

	_, err = h.ctrl.Regenerate(ctx, identity.Anonymous, res.ConversationID, 0)
	assert.ErrorIs(t, err, chat.ErrIndex)
}

func TestNew_DefaultParams(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, nil)
	assert.Equal(t, nlp.DefaultParams(), h.ctrl.cfg.Params)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "generating", StateGenerating.String())
	assert.Equal(t, "error", StateError.String())
}
