// Package engine drives a conversational draft from first message to the
// external business API. A Flow declares what a domain's draft looks like;
// Service does the rest: persistence, missing-field detection, summaries,
// autocomplete enrichment and create/update/delete calls.
package engine

import (
	"net/url"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/rules"
)

// Scope identifies who a call is made for.
type Scope struct {
	Phone      string
	BusinessID string
	FarmID     string
}

// Flow is one domain's configuration of the engine. D is the draft, P the
// creation payload sent to the API and U the partial update arguments
// received from the orchestrator.
type Flow[D, P, U any] interface {
	// Type names the flow; it tags persisted envelopes.
	Type() string
	// ServicePrefix is prepended to every endpoint path.
	ServicePrefix() string
	EmptyDraft() D
	// Meta exposes the engine-owned fields of a draft.
	Meta(d *D) *draft.Meta

	// ApplyUpdates coerces and validates updates onto d.
	ApplyUpdates(d *D, updates U) error
	RequiredFields() []rules.Rule[D]
	SummaryTitle() string
	SummarySections() []rules.Section[D]
	// EditableFields lists the update keys accepted by single-field edits.
	EditableFields() []string

	TransformToAPIPayload(d D, scope Scope) (P, error)
	// BuildPartialUpdatePayload returns only the API keys touched by updates.
	BuildPartialUpdatePayload(d D, updates U) (map[string]any, error)
	BuildListParams(listType string, scope Scope) url.Values
	// ListErrorMessage is shown to the user when a selection list cannot be loaded.
	ListErrorMessage(listType string) string

	Endpoints() Endpoints
	AutocompleteEnabled() bool
}
