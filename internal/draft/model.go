// Package draft defines the data model shared by every conversational flow:
// the persisted envelope, id/name references, selection items and the draft
// lifecycle.
package draft

import "github.com/cloudwego/eino/schema"

// Envelope is the persisted wrapper around a draft payload for one
// (user, flow type) pair.
type Envelope[D any] struct {
	Type      string            `json:"type"`
	History   []*schema.Message `json:"history"`
	Payload   D                 `json:"payload"`
	SessionID string            `json:"sessionId,omitempty"`
	// Version increases on every successful save and guards against lost updates.
	Version int64 `json:"version"`
}

// IDNameRef references an externally owned entity known by id, name, or both.
type IDNameRef struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// NewRef builds a reference; empty strings are stored as unknown.
func NewRef(id, name string) *IDNameRef {
	r := &IDNameRef{}
	if id != "" {
		r.ID = &id
	}
	if name != "" {
		r.Name = &name
	}
	return r
}

// IDValue returns the id or "".
func (r *IDNameRef) IDValue() string {
	if r == nil || r.ID == nil {
		return ""
	}
	return *r.ID
}

// NameValue returns the name or "".
func (r *IDNameRef) NameValue() string {
	if r == nil || r.Name == nil {
		return ""
	}
	return *r.Name
}

// Empty reports whether neither field is known.
func (r *IDNameRef) Empty() bool {
	return r == nil || (r.ID == nil && r.Name == nil)
}

// Display returns the best human-readable label for the reference.
func (r *IDNameRef) Display() string {
	if n := r.NameValue(); n != "" {
		return n
	}
	return r.IDValue()
}

// SelectionItem is one entry of an interactive selection list.
type SelectionItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Meta carries engine-owned fields embedded in every draft payload.
type Meta struct {
	Status Status `json:"status,omitempty"`
}
