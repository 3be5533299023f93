package envelope

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
)

type note struct {
	draft.Meta
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

func emptyNote() note { return note{Meta: draft.Meta{Status: draft.StatusCollecting}} }

func newStore(kv session.Store) *Store[note] {
	return New(kv, "note", emptyNote, Config{TTLSeconds: 60, HistoryLimit: 3})
}

func TestLoadMissingReturnsFreshEnvelope(t *testing.T) {
	s := newStore(session.NewMemoryStore(0))
	env := s.Load(context.Background(), "u1", "")

	assert.Equal(t, "note", env.Type)
	assert.NotNil(t, env.History)
	assert.Empty(t, env.History)
	assert.Equal(t, emptyNote(), env.Payload)
	assert.Empty(t, env.SessionID)
	assert.Zero(t, env.Version)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(session.NewMemoryStore(0))

	env := s.Load(ctx, "u1", "")
	env.Payload.Title = "café"
	env.SessionID = "s1"
	env.History = append(env.History, schema.UserMessage("oi"))
	require.NoError(t, s.Save(ctx, "u1", env))
	assert.Equal(t, int64(1), env.Version)

	got := s.Load(ctx, "u1", "s1")
	assert.Equal(t, "café", got.Payload.Title)
	require.Len(t, got.History, 1)
	assert.Equal(t, "oi", got.History[0].Content)
	assert.Equal(t, int64(1), got.Version)
}

func TestLoadDiscardsForeignType(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryStore(0)
	s := newStore(kv)

	foreign, _ := json.Marshal(map[string]any{
		"type":    "expense",
		"payload": map[string]any{"title": "leak"},
		"history": []any{},
	})
	kv.Set(ctx, s.Key("u1"), string(foreign), 0)

	env := s.Load(ctx, "u1", "")
	assert.Equal(t, "note", env.Type)
	assert.Empty(t, env.Payload.Title)

	require.NoError(t, s.Save(ctx, "u1", env), "a foreign envelope does not block saving")
}

func TestLoadDiscardsUnreadable(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryStore(0)
	s := newStore(kv)
	kv.Set(ctx, s.Key("u1"), "{not json", 0)

	env := s.Load(ctx, "u1", "")
	assert.Equal(t, emptyNote(), env.Payload)
}

func TestLoadResetsHistoryOnSessionChange(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryStore(0)
	s := newStore(kv)

	env := s.Load(ctx, "u1", "")
	env.SessionID = "old"
	env.Payload.Title = "kept"
	env.History = []*schema.Message{schema.UserMessage("a"), schema.AssistantMessage("b", nil)}
	require.NoError(t, s.Save(ctx, "u1", env))

	got := s.Load(ctx, "u1", "new")
	assert.Empty(t, got.History)
	assert.Equal(t, "new", got.SessionID)
	assert.Equal(t, "kept", got.Payload.Title)

	raw, ok := kv.Get(ctx, s.Key("u1"))
	require.True(t, ok)
	var persisted draft.Envelope[note]
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Empty(t, persisted.History, "the reset is persisted")
	assert.Equal(t, "new", persisted.SessionID)

	again := s.Load(ctx, "u1", "")
	assert.Empty(t, again.History)
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := newStore(session.NewMemoryStore(0))
	require.NoError(t, s.Save(ctx, "u1", s.Load(ctx, "u1", "")))

	first := s.Load(ctx, "u1", "")
	second := s.Load(ctx, "u1", "")

	first.Payload.Title = "first"
	require.NoError(t, s.Save(ctx, "u1", first))

	second.Payload.Title = "second"
	err := s.Save(ctx, "u1", second)
	assert.ErrorIs(t, err, ErrStaleEnvelope)
	assert.Equal(t, "first", s.Load(ctx, "u1", "").Payload.Title)
}

func TestSaveTrimsHistory(t *testing.T) {
	ctx := context.Background()
	s := newStore(session.NewMemoryStore(0))
	env := s.Load(ctx, "u1", "")
	for _, c := range []string{"1", "2", "3", "4", "5"} {
		env.History = append(env.History, schema.UserMessage(c))
	}
	require.NoError(t, s.Save(ctx, "u1", env))

	got := s.Load(ctx, "u1", "")
	require.Len(t, got.History, 3)
	assert.Equal(t, "3", got.History[0].Content)
	assert.Equal(t, "5", got.History[2].Content)
}

func TestClearAndTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kv := session.NewMemoryStore(0, session.WithClock(func() time.Time { return now }))
	s := newStore(kv)

	env := s.Load(ctx, "u1", "")
	env.Payload.Title = "x"
	require.NoError(t, s.Save(ctx, "u1", env))

	now = now.Add(59 * time.Second)
	assert.Equal(t, "x", s.Load(ctx, "u1", "").Payload.Title)
	now = now.Add(time.Second)
	assert.Empty(t, s.Load(ctx, "u1", "").Payload.Title)

	require.NoError(t, s.Save(ctx, "u2", env))
	s.Clear(ctx, "u2")
	_, ok := kv.Get(ctx, s.Key("u2"))
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	s := newStore(session.NewMemoryStore(0))
	assert.Equal(t, "note_draft::5511999", s.Key("5511999"))
	assert.Equal(t, "note", s.Type())
}
