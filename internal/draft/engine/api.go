package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	errx "github.com/Chative-core-poc-v1/draftflow/internal/core/error"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/rest"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

// ErrUnexpectedShape is returned when an API answer cannot be interpreted.
var ErrUnexpectedShape = errors.New("unexpected api response shape")

// CreateResult is the outcome of Create.
type CreateResult[R any] struct {
	ID     string
	Record R
}

type callOptions struct {
	endpoint *Template
	farmID   string
}

// CallOption adjusts a single create, update or delete call.
type CallOption func(*callOptions)

// WithEndpoint overrides the flow's endpoint template for one call.
func WithEndpoint(t Template) CallOption {
	return func(o *callOptions) { o.endpoint = &t }
}

// WithFarmID targets a farm other than the one in the user context.
func WithFarmID(id string) CallOption {
	return func(o *callOptions) { o.farmID = id }
}

func collect(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (s *Service[D, P, R, U]) endpointFor(ctx context.Context, action Action, o callOptions, params EndpointParams) (string, error) {
	if o.endpoint != nil {
		return s.resolveTemplate(ctx, *o.endpoint, params)
	}
	return s.ResolveEndpoint(ctx, action, params)
}

func (s *Service[D, P, R, U]) call(ctx context.Context, userID string, action Action, method, url string, req rest.Request) (*rest.Response, error) {
	start := time.Now()
	resp, err := s.api.Do(ctx, method, url, req)
	s.metrics.ObserveAPICall(s.flow.Type(), string(action), err, time.Since(start))
	if err != nil {
		l := logx.Flow(s.flow.Type(), userID)
		l.Error().Err(err).Str("action", string(action)).Str("url", url).Msg("api call failed")
		return nil, fmt.Errorf("%s %s: %w", s.flow.Type(), action, err)
	}
	return resp, nil
}

// Create submits d to the API and returns the id of the new record.
func (s *Service[D, P, R, U]) Create(ctx context.Context, userID string, d D, opts ...CallOption) (CreateResult[R], error) {
	var res CreateResult[R]
	o := collect(opts)

	scope, err := s.resolveScope(ctx, userID, o.farmID)
	if err != nil {
		return res, err
	}
	payload, err := s.flow.TransformToAPIPayload(d, scope)
	if err != nil {
		return res, err
	}
	url, err := s.endpointFor(ctx, ActionCreate, o, EndpointParams{Phone: userID, FarmID: scope.FarmID, BusinessID: scope.BusinessID})
	if err != nil {
		return res, err
	}

	resp, err := s.call(ctx, userID, ActionCreate, http.MethodPost, url, rest.Request{Body: payload})
	if err != nil {
		return res, err
	}

	body := gjson.ParseBytes(resp.Data)
	res.ID = firstString(body, "id", "data.id", "_id", "data._id")
	record := body
	if data := body.Get("data"); data.IsObject() {
		record = data
	}
	if record.IsObject() {
		if err := json.Unmarshal([]byte(record.Raw), &res.Record); err != nil {
			l := logx.Flow(s.flow.Type(), userID)
			l.Warn().Err(err).Msg("could not decode created record")
		} else {
			s.remember(userID, res.Record)
		}
	}
	if res.ID == "" {
		l := logx.Flow(s.flow.Type(), userID)
		l.Warn().Msg("create response carried no record id")
	}

	l := logx.Flow(s.flow.Type(), userID)
	l.Info().Str("record_id", res.ID).Msg("record created")
	return res, nil
}

// Update sends d to the API. With non-nil updates only the keys they touch are
// PATCHed; otherwise, or when they touch nothing, the full payload is PUT.
func (s *Service[D, P, R, U]) Update(ctx context.Context, userID, recordID string, d D, updates *U, opts ...CallOption) error {
	o := collect(opts)
	params := EndpointParams{Phone: userID, FarmID: o.farmID, RecordID: recordID}

	if updates != nil {
		partial, err := s.flow.BuildPartialUpdatePayload(d, *updates)
		if err != nil {
			return err
		}
		if len(partial) > 0 {
			url, err := s.endpointFor(ctx, ActionPatch, o, params)
			if err != nil {
				return err
			}
			_, err = s.call(ctx, userID, ActionPatch, http.MethodPatch, url, rest.Request{Body: partial})
			return err
		}
	}

	scope, err := s.resolveScope(ctx, userID, o.farmID)
	if err != nil {
		return err
	}
	payload, err := s.flow.TransformToAPIPayload(d, scope)
	if err != nil {
		return err
	}
	params.FarmID, params.BusinessID = scope.FarmID, scope.BusinessID
	url, err := s.endpointFor(ctx, ActionUpdate, o, params)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, userID, ActionUpdate, http.MethodPut, url, rest.Request{Body: payload})
	return err
}

// Delete removes recordID through the API.
func (s *Service[D, P, R, U]) Delete(ctx context.Context, userID, recordID string, opts ...CallOption) error {
	o := collect(opts)
	url, err := s.endpointFor(ctx, ActionDelete, o, EndpointParams{Phone: userID, FarmID: o.farmID, RecordID: recordID})
	if err != nil {
		return err
	}
	_, err = s.call(ctx, userID, ActionDelete, http.MethodDelete, url, rest.Request{})
	return err
}

// autocomplete asks the API to enrich d and merges back the fields it
// resolves. Errors propagate to the caller.
func (s *Service[D, P, R, U]) autocomplete(ctx context.Context, userID string, d D) (D, error) {
	scope, err := s.resolveScope(ctx, userID, "")
	if err != nil {
		s.metrics.IncAutocomplete(s.flow.Type(), err)
		return d, err
	}
	url, err := s.ResolveEndpoint(ctx, ActionAutoComplete, EndpointParams{Phone: userID, FarmID: scope.FarmID, BusinessID: scope.BusinessID})
	if err != nil {
		return d, err
	}

	resp, err := s.call(ctx, userID, ActionAutoComplete, http.MethodPost, url, rest.Request{Body: map[string]any{
		"draft":      d,
		"phone":      userID,
		"farmId":     scope.FarmID,
		"businessId": scope.BusinessID,
	}})
	s.metrics.IncAutocomplete(s.flow.Type(), err)
	if err != nil {
		return d, err
	}

	body := gjson.ParseBytes(resp.Data)
	resolved := body.Get("draft")
	if !resolved.IsObject() {
		resolved = body.Get("data.draft")
	}
	if !resolved.IsObject() {
		resolved = body
	}
	if !resolved.IsObject() {
		return d, nil
	}

	merged, err := clone(d)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(resolved.Raw), &merged); err != nil {
		return d, fmt.Errorf("%s autocomplete: %w: %v", s.flow.Type(), ErrUnexpectedShape, err)
	}
	return merged, nil
}

// clone deep-copies a draft so merges never write through shared pointers.
func clone[D any](d D) (D, error) {
	var out D
	b, err := json.Marshal(d)
	if err != nil {
		return out, fmt.Errorf("clone draft: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("clone draft: %w", err)
	}
	return out, nil
}

// FetchSelectionList loads an id/name list for interactive selection. Any
// failure is reported with the flow's user-facing list error message;
// configuration errors are returned as is.
func (s *Service[D, P, R, U]) FetchSelectionList(ctx context.Context, userID, listType string, endpoint Template) ([]draft.SelectionItem, error) {
	fail := func(err error) error {
		l := logx.Flow(s.flow.Type(), userID)
		l.Error().Err(err).Str("list", listType).Msg("failed to load selection list")
		return errx.New(err, http.StatusBadGateway, s.flow.ListErrorMessage(listType))
	}

	scope, err := s.resolveScope(ctx, userID, "")
	if err != nil {
		return nil, fail(err)
	}
	url, err := s.resolveTemplate(ctx, endpoint, EndpointParams{Phone: userID, FarmID: scope.FarmID, BusinessID: scope.BusinessID})
	if err != nil {
		var cfgErr *errx.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, fail(err)
	}

	start := time.Now()
	resp, err := s.api.Do(ctx, http.MethodGet, url, rest.Request{Params: s.flow.BuildListParams(listType, scope)})
	s.metrics.ObserveAPICall(s.flow.Type(), "list:"+listType, err, time.Since(start))
	if err != nil {
		return nil, fail(err)
	}

	body := gjson.ParseBytes(resp.Data)
	list := body
	for _, p := range []string{"data", "items", "data.items", "results"} {
		if list.IsArray() {
			break
		}
		list = body.Get(p)
	}
	if !list.IsArray() {
		return nil, fail(ErrUnexpectedShape)
	}

	items := []draft.SelectionItem{}
	for _, it := range list.Array() {
		id := firstString(it, "id", "_id", "uuid")
		if id == "" {
			continue
		}
		items = append(items, draft.SelectionItem{
			ID:   id,
			Name: firstString(it, "name", "nome", "title", "description"),
		})
	}
	return items, nil
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
