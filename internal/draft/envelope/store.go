// Package envelope persists draft envelopes for one flow type on top of the
// session store.
package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/draftflow/internal/core"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultHistoryLimit = 20
)

// ErrStaleEnvelope is returned by Save when the envelope was modified by
// someone else since it was loaded. Callers reload and retry.
var ErrStaleEnvelope = errors.New("draft envelope was modified concurrently")

type Config struct {
	TTLSeconds   int `envconfig:"DRAFT_TTL_SECONDS" default:"86400"`
	HistoryLimit int `envconfig:"DRAFT_HISTORY_LIMIT" default:"20"`
}

// Store loads and saves the envelope of a single flow type.
type Store[D any] struct {
	kv           session.Store
	flowType     string
	empty        func() D
	ttl          time.Duration
	historyLimit int

	// serializes the version check and write of Save within this process
	mu sync.Mutex
}

// New creates a Store for flowType. empty builds the payload of a fresh draft.
func New[D any](kv session.Store, flowType string, empty func() D, cfg Config) *Store[D] {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Store[D]{
		kv:           kv,
		flowType:     flowType,
		empty:        empty,
		ttl:          core.Seconds(cfg.TTLSeconds, DefaultTTL),
		historyLimit: limit,
	}
}

// Key returns the session store key of userID's envelope.
func (s *Store[D]) Key(userID string) string {
	return session.Key(s.flowType+"_draft", userID)
}

// Type returns the flow type the store was built for.
func (s *Store[D]) Type() string {
	return s.flowType
}

func (s *Store[D]) fresh() *draft.Envelope[D] {
	return &draft.Envelope[D]{
		Type:    s.flowType,
		History: []*schema.Message{},
		Payload: s.empty(),
	}
}

// Load returns userID's envelope. Missing, unreadable or foreign-typed
// envelopes yield a fresh one. When currentSessionID is set and differs from
// the stored session, the history is reset and the reset is persisted.
func (s *Store[D]) Load(ctx context.Context, userID, currentSessionID string) *draft.Envelope[D] {
	env := s.read(ctx, userID)

	if currentSessionID == "" || env.SessionID == "" || env.SessionID == currentSessionID {
		return env
	}

	logx.Info().
		Str("flow", s.flowType).
		Str("user_id", userID).
		Str("stored_session", env.SessionID).
		Str("current_session", currentSessionID).
		Msg("session changed, resetting draft history")
	env.History = []*schema.Message{}
	env.SessionID = currentSessionID
	if err := s.Save(ctx, userID, env); err != nil {
		logx.Warn().Err(err).Str("flow", s.flowType).Str("user_id", userID).Msg("failed to persist history reset")
	}
	return env
}

func (s *Store[D]) read(ctx context.Context, userID string) *draft.Envelope[D] {
	key := s.Key(userID)
	raw, ok := s.kv.Get(ctx, key)
	if !ok || raw == "" {
		return s.fresh()
	}

	var env draft.Envelope[D]
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("discarding unreadable draft envelope")
		return s.fresh()
	}
	if env.Type != s.flowType {
		logx.Warn().Str("key", key).Str("stored_type", env.Type).Str("flow", s.flowType).Msg("discarding draft envelope of another flow")
		return s.fresh()
	}
	if env.History == nil {
		env.History = []*schema.Message{}
	}
	return &env
}

// storedVersion returns the version currently persisted for userID and whether
// a readable envelope of this flow exists.
func (s *Store[D]) storedVersion(ctx context.Context, userID string) (int64, bool) {
	raw, ok := s.kv.Get(ctx, s.Key(userID))
	if !ok {
		return 0, false
	}
	var head struct {
		Type    string `json:"type"`
		Version int64  `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil || head.Type != s.flowType {
		return 0, false
	}
	return head.Version, true
}

// Save writes env with a fresh TTL. It fails with ErrStaleEnvelope when the
// stored version no longer matches env.Version; on success env.Version is
// advanced.
func (s *Store[D]) Save(ctx context.Context, userID string, env *draft.Envelope[D]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.storedVersion(ctx, userID); ok && v != env.Version {
		return fmt.Errorf("%w: stored version %d, saving version %d", ErrStaleEnvelope, v, env.Version)
	}

	env.Type = s.flowType
	if env.History == nil {
		env.History = []*schema.Message{}
	}
	if n := len(env.History); n > s.historyLimit {
		env.History = append([]*schema.Message(nil), env.History[n-s.historyLimit:]...)
	}

	next := *env
	next.Version++
	b, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", s.flowType, err)
	}
	s.kv.Set(ctx, s.Key(userID), string(b), s.ttl)
	env.Version = next.Version
	return nil
}

// Clear removes userID's envelope.
func (s *Store[D]) Clear(ctx context.Context, userID string) {
	s.kv.Del(ctx, s.Key(userID))
}
