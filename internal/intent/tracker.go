package intent

import (
	"context"
	"time"

	"github.com/Chative-core-poc-v1/draftflow/internal/core"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

// Tracker remembers the last intent of each user and clears the history of
// the previous intent when it changes.
type Tracker struct {
	kv      session.Store
	history *History
	ttl     time.Duration
}

func NewTracker(kv session.Store, history *History, cfg Config) *Tracker {
	return &Tracker{
		kv:      kv,
		history: history,
		ttl:     core.Seconds(cfg.LastIntentTTLSeconds, DefaultTTL),
	}
}

// LastIntent returns the last intent recorded for userID.
func (t *Tracker) LastIntent(ctx context.Context, userID string) (string, bool) {
	v, ok := t.kv.Get(ctx, session.Key(lastIntentPrefix, userID))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// TrackChange records newIntent as the user's current intent. It reports
// whether the intent changed; when it did, the previous intent's history is
// cleared.
func (t *Tracker) TrackChange(ctx context.Context, userID, newIntent string) bool {
	last, ok := t.LastIntent(ctx, userID)
	if ok && last == newIntent {
		return false
	}
	if ok {
		t.history.Clear(ctx, userID, last)
		logx.Info().Str("user_id", userID).Str("from", last).Str("to", newIntent).Msg("intent changed, cleared previous history")
	}
	t.kv.Set(ctx, session.Key(lastIntentPrefix, userID), newIntent, t.ttl)
	return true
}

// Forget drops the last-intent marker and every intent history of userID.
// Used when a flow completes or is cancelled.
func (t *Tracker) Forget(ctx context.Context, userID string) {
	t.kv.Del(ctx, session.Key(lastIntentPrefix, userID))
	t.history.ClearAll(ctx, userID)
}
