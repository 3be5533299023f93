package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	lru "github.com/hashicorp/golang-lru/v2"

	errx "github.com/Chative-core-poc-v1/draftflow/internal/core/error"
	"github.com/Chative-core-poc-v1/draftflow/internal/core/metrics"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/envelope"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/rules"
	"github.com/Chative-core-poc-v1/draftflow/internal/narrator"
	"github.com/Chative-core-poc-v1/draftflow/internal/rest"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
	"github.com/Chative-core-poc-v1/draftflow/internal/usercontext"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

const recordCacheUsers = 1000

// Deps are the collaborators shared by every Service.
type Deps struct {
	Store    session.Store
	Envelope envelope.Config
	Users    usercontext.Resolver
	API      rest.Doer
	// BaseURL is the API root every endpoint is appended to.
	BaseURL  string
	Rewriter narrator.Rewriter
	Metrics  *metrics.Metrics
}

// Service is the draft engine for one flow. R is the record type returned by
// the API on create.
type Service[D, P, R, U any] struct {
	flow     Flow[D, P, U]
	drafts   *envelope.Store[D]
	users    usercontext.Resolver
	api      rest.Doer
	baseURL  string
	rewriter narrator.Rewriter
	metrics  *metrics.Metrics
	editable map[string]struct{}

	recMu   sync.Mutex
	records *lru.Cache[string, []R]
}

// New builds the engine for flow. Missing collaborators are configuration
// errors.
func New[D, P, R, U any](flow Flow[D, P, U], deps Deps) (*Service[D, P, R, U], error) {
	if flow == nil {
		return nil, errx.NewConfigError("engine", "flow is nil")
	}
	name := flow.Type()
	switch {
	case name == "":
		return nil, errx.NewConfigError("engine", "flow has no type")
	case deps.Store == nil:
		return nil, errx.NewConfigError(name, "session store is required")
	case deps.Users == nil:
		return nil, errx.NewConfigError(name, "user context resolver is required")
	case deps.API == nil:
		return nil, errx.NewConfigError(name, "api client is required")
	case deps.BaseURL == "":
		return nil, errx.NewConfigError(name, "api base url is required")
	}

	editable := make(map[string]struct{})
	for _, f := range flow.EditableFields() {
		editable[f] = struct{}{}
	}
	records, _ := lru.New[string, []R](recordCacheUsers)

	return &Service[D, P, R, U]{
		flow:     flow,
		drafts:   envelope.New(deps.Store, name, flow.EmptyDraft, deps.Envelope),
		users:    deps.Users,
		api:      deps.API,
		baseURL:  strings.TrimRight(deps.BaseURL, "/"),
		rewriter: deps.Rewriter,
		metrics:  deps.Metrics,
		editable: editable,
		records:  records,
	}, nil
}

// Type returns the flow type.
func (s *Service[D, P, R, U]) Type() string {
	return s.flow.Type()
}

func (s *Service[D, P, R, U]) sessionID(ctx context.Context, userID string) string {
	if uc, ok := s.users.UserContext(ctx, userID); ok {
		return uc.SessionID
	}
	return ""
}

func (s *Service[D, P, R, U]) load(ctx context.Context, userID string) (*draft.Envelope[D], string) {
	sess := s.sessionID(ctx, userID)
	return s.drafts.Load(ctx, userID, sess), sess
}

func (s *Service[D, P, R, U]) save(ctx context.Context, userID string, env *draft.Envelope[D], sess string) error {
	if env.SessionID == "" {
		env.SessionID = sess
	}
	if err := s.drafts.Save(ctx, userID, env); err != nil {
		l := logx.Flow(s.flow.Type(), userID)
		l.Warn().Err(err).Msg("failed to save draft")
		return err
	}
	return nil
}

// LoadDraft returns the user's current draft, or an empty one.
func (s *Service[D, P, R, U]) LoadDraft(ctx context.Context, userID string) D {
	env, _ := s.load(ctx, userID)
	return env.Payload
}

// SaveDraft replaces the user's draft payload.
func (s *Service[D, P, R, U]) SaveDraft(ctx context.Context, userID string, d D) error {
	env, sess := s.load(ctx, userID)
	env.Payload = d
	return s.save(ctx, userID, env, sess)
}

// ClearDraft drops the user's envelope.
func (s *Service[D, P, R, U]) ClearDraft(ctx context.Context, userID string) {
	s.drafts.Clear(ctx, userID)
}

// AppendHistoryToDraft records chat messages on the draft envelope.
func (s *Service[D, P, R, U]) AppendHistoryToDraft(ctx context.Context, userID string, msgs ...*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	env, sess := s.load(ctx, userID)
	env.History = append(env.History, msgs...)
	return s.save(ctx, userID, env, sess)
}

// History returns the chat messages recorded on the draft envelope.
func (s *Service[D, P, R, U]) History(ctx context.Context, userID string) []*schema.Message {
	env, _ := s.load(ctx, userID)
	return env.History
}

// UpdateDraft applies updates to the user's draft, enriches it through the
// autocomplete endpoint when the flow enables it, and persists the result.
// Editing a draft awaiting confirmation sends it back to collecting; a
// confirmed or completed draft cannot be edited.
func (s *Service[D, P, R, U]) UpdateDraft(ctx context.Context, userID string, updates U) (D, error) {
	env, sess := s.load(ctx, userID)
	d := env.Payload

	meta := s.flow.Meta(&d)
	next, err := draft.Transition(meta.Status, draft.EventEdit)
	if err != nil {
		return env.Payload, err
	}
	meta.Status = next

	if err := s.flow.ApplyUpdates(&d, updates); err != nil {
		return env.Payload, err
	}

	if s.flow.AutocompleteEnabled() {
		enriched, err := s.autocomplete(ctx, userID, d)
		if err != nil {
			return env.Payload, err
		}
		d = enriched
	}

	env.Payload = d
	if err := s.save(ctx, userID, env, sess); err != nil {
		return d, err
	}
	return d, nil
}

// UpdateDraftField edits a single field by its update key. Unknown fields are
// ignored with a warning and reported as false.
func (s *Service[D, P, R, U]) UpdateDraftField(ctx context.Context, userID, field string, value any) (bool, error) {
	if !s.IsFieldValid(field) {
		l := logx.Flow(s.flow.Type(), userID)
		l.Warn().Str("field", field).Msg("ignoring edit of unknown field")
		return false, nil
	}
	u, err := decodeUpdates[U](map[string]any{field: value})
	if err != nil {
		return false, err
	}
	if _, err := s.UpdateDraft(ctx, userID, u); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateDraftFields edits several fields at once. Unknown fields are dropped
// and returned instead of failing the whole update.
func (s *Service[D, P, R, U]) UpdateDraftFields(ctx context.Context, userID string, fields map[string]any) (D, []string, error) {
	accepted := make(map[string]any, len(fields))
	var dropped []string
	for k, v := range fields {
		if s.IsFieldValid(k) {
			accepted[k] = v
		} else {
			dropped = append(dropped, k)
		}
	}
	if len(dropped) > 0 {
		l := logx.Flow(s.flow.Type(), userID)
		l.Warn().Strs("fields", dropped).Msg("ignoring edits of unknown fields")
	}
	u, err := decodeUpdates[U](accepted)
	if err != nil {
		return s.LoadDraft(ctx, userID), dropped, err
	}
	d, err := s.UpdateDraft(ctx, userID, u)
	return d, dropped, err
}

func decodeUpdates[U any](fields map[string]any) (U, error) {
	var u U
	b, err := json.Marshal(fields)
	if err != nil {
		return u, fmt.Errorf("encode field updates: %w", err)
	}
	if err := json.Unmarshal(b, &u); err != nil {
		return u, fmt.Errorf("decode field updates: %w", err)
	}
	return u, nil
}

// IsFieldValid reports whether field is an editable update key of the flow.
func (s *Service[D, P, R, U]) IsFieldValid(field string) bool {
	_, ok := s.editable[field]
	return ok
}

// HasMissingFields lists the required fields d still lacks, in declaration order.
func (s *Service[D, P, R, U]) HasMissingFields(d D) []string {
	return rules.ComputeMissing(d, s.flow.RequiredFields())
}

// BuildDraftSummary renders the fixed summary of d.
func (s *Service[D, P, R, U]) BuildDraftSummary(d D) string {
	return rules.BuildSummary(s.flow.SummaryTitle(), d, s.flow.SummarySections())
}

// BuildDraftSummaryNatural rewrites the fixed summary into natural language.
// Any failure of the rewriter yields the fixed summary verbatim.
func (s *Service[D, P, R, U]) BuildDraftSummaryNatural(ctx context.Context, d D, userID string, length narrator.Length) string {
	fixed := s.BuildDraftSummary(d)
	if s.rewriter == nil {
		return fixed
	}
	out, err := s.rewriter.GenerateSummaryText(ctx, userID, fixed, length)
	if err != nil || strings.TrimSpace(out) == "" {
		l := logx.Flow(s.flow.Type(), userID)
		l.Warn().Err(err).Msg("natural summary unavailable, using fixed summary")
		return fixed
	}
	return out
}

// Transition applies a lifecycle event to the stored draft.
func (s *Service[D, P, R, U]) Transition(ctx context.Context, userID string, ev draft.Event) (D, error) {
	env, sess := s.load(ctx, userID)
	meta := s.flow.Meta(&env.Payload)
	next, err := draft.Transition(meta.Status, ev)
	if err != nil {
		return env.Payload, err
	}
	meta.Status = next
	if err := s.save(ctx, userID, env, sess); err != nil {
		return env.Payload, err
	}
	return env.Payload, nil
}

// Records returns the records created for userID by this process. It is a
// convenience cache, not a source of truth.
func (s *Service[D, P, R, U]) Records(userID string) []R {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	recs, _ := s.records.Get(userID)
	return append([]R(nil), recs...)
}

func (s *Service[D, P, R, U]) remember(userID string, rec R) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	recs, _ := s.records.Get(userID)
	s.records.Add(userID, append(recs, rec))
}

func (s *Service[D, P, R, U]) resolveScope(ctx context.Context, phone, farmID string) (Scope, error) {
	businessID, err := s.users.BusinessIDForPhone(ctx, phone)
	if err != nil {
		return Scope{}, fmt.Errorf("resolve business for %s: %w", phone, err)
	}
	if farmID == "" {
		if uc, ok := s.users.UserContext(ctx, phone); ok {
			farmID = uc.FarmID
		}
	}
	if farmID == "" {
		farmID = businessID
	}
	return Scope{Phone: phone, BusinessID: businessID, FarmID: farmID}, nil
}
