package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 10, d.ContextWindowSize)
	assert.Equal(t, StyleBalanced, d.ResponseStyle)
	assert.Equal(t, PersonalityFriendly, d.PersonalityMode)
	assert.True(t, d.MemoryEnabled)
	assert.True(t, d.FollowUpsEnabled)
	assert.True(t, d.RememberPreferences)
	assert.NoError(t, d.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]Settings{
		"zero window":   func() Settings { s := Defaults(); s.ContextWindowSize = 0; return s }(),
		"huge window":   func() Settings { s := Defaults(); s.ContextWindowSize = 1000; return s }(),
		"bad style":     func() Settings { s := Defaults(); s.ResponseStyle = "verbose"; return s }(),
		"bad character": func() Settings { s := Defaults(); s.PersonalityMode = "grumpy"; return s }(),
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}

func TestStore_UpdateMergesAndPersists(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := NewStore(backend, nil)

	five := 5
	concise := StyleConcise
	got, err := s.Update(ctx, Patch{ContextWindowSize: &five, ResponseStyle: &concise})
	require.NoError(t, err)
	assert.Equal(t, 5, got.ContextWindowSize)
	assert.Equal(t, StyleConcise, got.ResponseStyle)
	assert.Equal(t, PersonalityFriendly, got.PersonalityMode, "untouched field must keep its value")

	reloaded := NewStore(backend, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, got, reloaded.Current())
}

func TestStore_UpdateInvalidLeavesState(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := NewStore(backend, nil)

	zero := 0
	_, err := s.Update(ctx, Patch{ContextWindowSize: &zero})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, Defaults(), s.Current())
	assert.Equal(t, 0, backend.Writes())
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), nil)

	off := false
	_, err := s.Update(ctx, Patch{MemoryEnabled: &off})
	require.NoError(t, err)

	got, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.Equal(t, Defaults(), s.Current())
}

func TestStore_LoadMergesPartialDocument(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, kv.KeySettings, json.RawMessage(`{"contextLength":3}`)))

	s := NewStore(backend, nil)
	require.NoError(t, s.Load(ctx))

	want := Defaults()
	want.ContextWindowSize = 3
	assert.Equal(t, want, s.Current())
}

func TestStore_LoadRejectsSchemaViolation(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, kv.KeySettings, json.RawMessage(`{"responseStyle":"shouty","contextLength":-2}`)))

	s := NewStore(backend, nil)
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, Defaults(), s.Current())
}

func TestParseAssignment(t *testing.T) {
	p, err := ParseAssignment("contextLength=4")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Apply(Defaults()).ContextWindowSize)

	p, err = ParseAssignment("enableFollowUps = false")
	require.NoError(t, err)
	assert.False(t, p.Apply(Defaults()).FollowUpsEnabled)

	p, err = ParseAssignment("personalityMode=academic")
	require.NoError(t, err)
	assert.Equal(t, PersonalityAcademic, p.Apply(Defaults()).PersonalityMode)

	for _, bad := range []string{"contextLength", "contextLength=ten", "enableMemory=maybe", "color=blue"} {
		_, err := ParseAssignment(bad)
		assert.True(t, errors.Is(err, ErrInvalid), "ParseAssignment(%q) = %v", bad, err)
	}
}

func TestDescribe_RoundTripsThroughParseAssignment(t *testing.T) {
	s := Defaults()
	s.ContextWindowSize = 25
	s.ResponseStyle = StyleConcise
	s.FollowUpsEnabled = false

	got := Defaults()
	for _, line := range strings.Split(Describe(s), "\n") {
		p, err := ParseAssignment(line)
		require.NoError(t, err, line)
		got = p.Apply(got)
	}
	assert.Equal(t, s, got)
}

func TestPatch_Merge(t *testing.T) {
	a, err := ParseAssignment("contextLength=4")
	require.NoError(t, err)
	b, err := ParseAssignment("responseStyle=concise")
	require.NoError(t, err)
	c, err := ParseAssignment("contextLength=7")
	require.NoError(t, err)

	got := a.Merge(b).Merge(c).Apply(Defaults())
	assert.Equal(t, 7, got.ContextWindowSize)
	assert.Equal(t, StyleConcise, got.ResponseStyle)
	assert.Equal(t, Defaults().PersonalityMode, got.PersonalityMode)
}
