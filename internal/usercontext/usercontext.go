// Package usercontext keeps per-phone conversational context: the active
// business/farm, the current session id and the active flow.
package usercontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/Chative-core-poc-v1/draftflow/internal/core"
	"github.com/Chative-core-poc-v1/draftflow/internal/rest"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

const (
	keyPrefix  = "user_context"
	DefaultTTL = time.Hour
)

// ErrBusinessNotFound is returned when no business is linked to a phone.
var ErrBusinessNotFound = errors.New("no business linked to phone")

// UserContext is what the service remembers about a phone between messages.
type UserContext struct {
	Phone      string    `json:"phone"`
	BusinessID string    `json:"businessId,omitempty"`
	FarmID     string    `json:"farmId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	ActiveFlow string    `json:"activeFlow,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Patch holds the fields to change; nil fields are left untouched.
type Patch struct {
	BusinessID *string
	FarmID     *string
	SessionID  *string
	ActiveFlow *string
}

// Resolver is what the draft engine needs from the user context.
type Resolver interface {
	BusinessIDForPhone(ctx context.Context, phone string) (string, error)
	UserContext(ctx context.Context, phone string) (*UserContext, bool)
	SetUserContext(ctx context.Context, phone string, patch Patch) *UserContext
}

type Config struct {
	TTLSeconds int `envconfig:"USER_CONTEXT_TTL_SECONDS" default:"3600"`
	// LookupPath resolves the business of a phone; {phone} is substituted.
	LookupPath string `envconfig:"BUSINESS_LOOKUP_PATH" default:"/users/{phone}/business"`
}

// Store implements Resolver on the session store.
type Store struct {
	kv         session.Store
	ttl        time.Duration
	api        rest.Doer
	baseURL    string
	lookupPath string
	now        func() time.Time
}

// New creates a Store. api may be nil, in which case unknown businesses are
// reported as ErrBusinessNotFound.
func New(kv session.Store, cfg Config, api rest.Doer, baseURL string) *Store {
	return &Store{
		kv:         kv,
		ttl:        core.Seconds(cfg.TTLSeconds, DefaultTTL),
		api:        api,
		baseURL:    strings.TrimRight(baseURL, "/"),
		lookupPath: cfg.LookupPath,
		now:        time.Now,
	}
}

func key(phone string) string {
	return session.Key(keyPrefix, phone)
}

func (s *Store) UserContext(ctx context.Context, phone string) (*UserContext, bool) {
	raw, ok := s.kv.Get(ctx, key(phone))
	if !ok {
		return nil, false
	}
	var uc UserContext
	if err := json.Unmarshal([]byte(raw), &uc); err != nil {
		logx.Warn().Err(err).Str("user_id", phone).Msg("discarding unreadable user context")
		return nil, false
	}
	return &uc, true
}

func (s *Store) SetUserContext(ctx context.Context, phone string, patch Patch) *UserContext {
	uc, ok := s.UserContext(ctx, phone)
	if !ok {
		uc = &UserContext{Phone: phone}
	}
	if patch.BusinessID != nil {
		uc.BusinessID = *patch.BusinessID
	}
	if patch.FarmID != nil {
		uc.FarmID = *patch.FarmID
	}
	if patch.SessionID != nil {
		uc.SessionID = *patch.SessionID
	}
	if patch.ActiveFlow != nil {
		uc.ActiveFlow = *patch.ActiveFlow
	}
	uc.UpdatedAt = s.now()

	b, err := json.Marshal(uc)
	if err != nil {
		logx.Error().Err(err).Str("user_id", phone).Msg("failed to marshal user context")
		return uc
	}
	s.kv.Set(ctx, key(phone), string(b), s.ttl)
	return uc
}

// EnsureSession returns the current session id, starting a new one if the
// user has none.
func (s *Store) EnsureSession(ctx context.Context, phone string) string {
	if uc, ok := s.UserContext(ctx, phone); ok && uc.SessionID != "" {
		return uc.SessionID
	}
	return s.StartSession(ctx, phone)
}

// StartSession replaces the session id, detaching previous conversational history.
func (s *Store) StartSession(ctx context.Context, phone string) string {
	id := uuid.NewString()
	s.SetUserContext(ctx, phone, Patch{SessionID: &id})
	return id
}

// BusinessIDForPhone returns the business linked to phone, asking the API
// once and caching the answer in the user context.
func (s *Store) BusinessIDForPhone(ctx context.Context, phone string) (string, error) {
	if uc, ok := s.UserContext(ctx, phone); ok && uc.BusinessID != "" {
		return uc.BusinessID, nil
	}
	if s.api == nil || s.lookupPath == "" {
		return "", fmt.Errorf("%w: %s", ErrBusinessNotFound, phone)
	}

	path := strings.ReplaceAll(s.lookupPath, "{phone}", url.PathEscape(phone))
	resp, err := s.api.Do(ctx, "GET", s.baseURL+path, rest.Request{})
	if err != nil {
		return "", fmt.Errorf("lookup business for %s: %w", phone, err)
	}
	res := gjson.ParseBytes(resp.Data)
	id := firstNonEmpty(res, "businessId", "farmId", "id", "data.businessId", "data.id")
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrBusinessNotFound, phone)
	}
	patch := Patch{BusinessID: &id}
	if farm := firstNonEmpty(res, "farmId", "data.farmId"); farm != "" {
		patch.FarmID = &farm
	}
	s.SetUserContext(ctx, phone, patch)
	return id, nil
}

func firstNonEmpty(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

var _ Resolver = (*Store)(nil)
