// Package intent scopes conversational memory to the topic a user is engaged
// in. History is kept per (user, intent) and wiped when the user moves to a
// different intent.
package intent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/draftflow/internal/core"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

const (
	historyPrefix    = "intent_history"
	lastIntentPrefix = "last_intent"

	// MaxHistory is the number of most recent messages kept per intent.
	MaxHistory = 20
	DefaultTTL = time.Hour
)

type Config struct {
	HistoryTTLSeconds    int `envconfig:"INTENT_HISTORY_TTL_SECONDS" default:"3600"`
	LastIntentTTLSeconds int `envconfig:"LAST_INTENT_TTL_SECONDS" default:"3600"`
}

// History stores chat messages per (user, intent).
type History struct {
	kv  session.Store
	ttl time.Duration
	max int
}

func NewHistory(kv session.Store, cfg Config) *History {
	return &History{
		kv:  kv,
		ttl: core.Seconds(cfg.HistoryTTLSeconds, DefaultTTL),
		max: MaxHistory,
	}
}

func historyKey(userID, intentType string) string {
	return session.Key(historyPrefix, userID, intentType)
}

// Get returns the stored messages, oldest first. Unreadable entries read as empty.
func (h *History) Get(ctx context.Context, userID, intentType string) []*schema.Message {
	raw, ok := h.kv.Get(ctx, historyKey(userID, intentType))
	if !ok {
		return []*schema.Message{}
	}
	var msgs []*schema.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Str("intent", intentType).Msg("discarding unreadable intent history")
		return []*schema.Message{}
	}
	return msgs
}

// Save replaces the history, keeping only the most recent messages.
func (h *History) Save(ctx context.Context, userID, intentType string, msgs []*schema.Message) {
	if n := len(msgs); n > h.max {
		msgs = msgs[n-h.max:]
	}
	if msgs == nil {
		msgs = []*schema.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		logx.Error().Err(err).Str("user_id", userID).Str("intent", intentType).Msg("failed to marshal intent history")
		return
	}
	h.kv.Set(ctx, historyKey(userID, intentType), string(b), h.ttl)
}

// Append adds messages at the end of the history.
func (h *History) Append(ctx context.Context, userID, intentType string, msgs ...*schema.Message) {
	if len(msgs) == 0 {
		return
	}
	h.Save(ctx, userID, intentType, append(h.Get(ctx, userID, intentType), msgs...))
}

// Clear drops the history of one intent.
func (h *History) Clear(ctx context.Context, userID, intentType string) {
	h.kv.Del(ctx, historyKey(userID, intentType))
}

// ClearAll drops every intent history of userID. Best effort.
func (h *History) ClearAll(ctx context.Context, userID string) {
	keys := h.kv.Keys(ctx, historyKey(session.EscapePattern(userID), "*"))
	if len(keys) == 0 {
		return
	}
	h.kv.Del(ctx, keys...)
	logx.Debug().Str("user_id", userID).Int("cleared", len(keys)).Msg("cleared intent histories")
}
