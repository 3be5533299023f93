package intent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/draftflow/internal/session"
)

func setup() (*session.MemoryStore, *History, *Tracker) {
	kv := session.NewMemoryStore(0)
	h := NewHistory(kv, Config{})
	return kv, h, NewTracker(kv, h, Config{})
}

func TestSaveKeepsMostRecentTwenty(t *testing.T) {
	ctx := context.Background()
	_, h, _ := setup()

	for i := 1; i <= 25; i++ {
		h.Append(ctx, "u1", "expense", schema.UserMessage(fmt.Sprintf("m%d", i)))
	}

	got := h.Get(ctx, "u1", "expense")
	require.Len(t, got, 20)
	assert.Equal(t, "m6", got[0].Content)
	assert.Equal(t, "m25", got[19].Content)
}

func TestGetMissingOrCorrupt(t *testing.T) {
	ctx := context.Background()
	kv, h, _ := setup()
	assert.Empty(t, h.Get(ctx, "u1", "expense"))

	kv.Set(ctx, "intent_history::u1::expense", "not-json", 0)
	assert.Empty(t, h.Get(ctx, "u1", "expense"))
}

func TestTrackChange(t *testing.T) {
	ctx := context.Background()
	_, h, tr := setup()

	assert.True(t, tr.TrackChange(ctx, "u", "A"))
	h.Append(ctx, "u", "A", schema.UserMessage("hello"))

	assert.False(t, tr.TrackChange(ctx, "u", "A"))
	assert.Len(t, h.Get(ctx, "u", "A"), 1, "same intent keeps history")

	assert.True(t, tr.TrackChange(ctx, "u", "B"))
	assert.Empty(t, h.Get(ctx, "u", "A"), "previous intent history is cleared")

	last, ok := tr.LastIntent(ctx, "u")
	require.True(t, ok)
	assert.Equal(t, "B", last)
}

func TestTrackChangeFirstIntentClearsNothing(t *testing.T) {
	ctx := context.Background()
	_, h, tr := setup()
	h.Append(ctx, "u", "B", schema.UserMessage("kept"))

	assert.True(t, tr.TrackChange(ctx, "u", "A"))
	assert.Len(t, h.Get(ctx, "u", "B"), 1)
}

func TestClearAllAndForget(t *testing.T) {
	ctx := context.Background()
	_, h, tr := setup()
	h.Append(ctx, "u", "A", schema.UserMessage("a"))
	h.Append(ctx, "u", "B", schema.UserMessage("b"))
	h.Append(ctx, "other", "A", schema.UserMessage("c"))
	tr.TrackChange(ctx, "u", "B")

	tr.Forget(ctx, "u")

	assert.Empty(t, h.Get(ctx, "u", "A"))
	assert.Empty(t, h.Get(ctx, "u", "B"))
	assert.Len(t, h.Get(ctx, "other", "A"), 1)
	_, ok := tr.LastIntent(ctx, "u")
	assert.False(t, ok)
}

func TestHistoryOnRedisHonoursTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	kv := session.NewRedisStore(func(ctx context.Context) (redis.UniversalClient, error) {
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil
	}, nil)
	h := NewHistory(kv, Config{HistoryTTLSeconds: 60})

	h.Append(ctx, "u", "A", schema.UserMessage("a"))
	assert.Equal(t, time.Minute, mr.TTL("intent_history::u::A"))

	mr.FastForward(61 * time.Second)
	assert.Empty(t, h.Get(ctx, "u", "A"))
}

func TestClearAllTreatsUserIDLiterally(t *testing.T) {
	mr := miniredis.RunT(t)
	remote := session.NewRedisStore(func(ctx context.Context) (redis.UniversalClient, error) {
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil
	}, nil)
	stores := map[string]session.Store{
		"memory": session.NewMemoryStore(0),
		"redis":  remote,
	}
	for name, kv := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := NewHistory(kv, Config{})
			h.Append(ctx, "a*", "A", schema.UserMessage("x"))
			h.Append(ctx, "ab", "A", schema.UserMessage("y"))
			h.Append(ctx, "a?[1]", "A", schema.UserMessage("z"))

			h.ClearAll(ctx, "a*")
			assert.Empty(t, h.Get(ctx, "a*", "A"))
			assert.Len(t, h.Get(ctx, "ab", "A"), 1)
			assert.Len(t, h.Get(ctx, "a?[1]", "A"), 1)

			h.ClearAll(ctx, "a?[1]")
			assert.Empty(t, h.Get(ctx, "a?[1]", "A"))
			assert.Len(t, h.Get(ctx, "ab", "A"), 1)
		})
	}
}
