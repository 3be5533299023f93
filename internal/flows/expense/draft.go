// Package expense collects farm expenses through the draft engine.
package expense

import (
	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/refs"
)

// Payment statuses understood by the financial API.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
)

// Draft is the expense under construction.
type Draft struct {
	draft.Meta
	Supplier      string           `json:"supplier,omitempty"`
	Value         float64          `json:"value,omitempty"`
	BusinessArea  *draft.IDNameRef `json:"businessArea,omitempty"`
	Category      *draft.IDNameRef `json:"category,omitempty"`
	Description   string           `json:"description,omitempty"`
	PaymentDate   string           `json:"paymentDate,omitempty"`
	PaymentStatus string           `json:"paymentStatus,omitempty"`
	DueDate       string           `json:"dueDate,omitempty"`
}

// Upsert carries the arguments extracted from a user message. Value may be a
// number or a formatted string.
type Upsert struct {
	Supplier      *string       `json:"supplier,omitempty"`
	Value         any           `json:"value,omitempty"`
	BusinessArea  refs.Incoming `json:"businessArea"`
	Category      refs.Incoming `json:"category"`
	Description   *string       `json:"description,omitempty"`
	PaymentDate   *string       `json:"paymentDate,omitempty"`
	PaymentStatus *string       `json:"paymentStatus,omitempty"`
	DueDate       *string       `json:"dueDate,omitempty"`
}

// Payload is the body of POST /expenses.
type Payload struct {
	Phone          string  `json:"phone"`
	FarmID         string  `json:"farmId"`
	BusinessID     string  `json:"businessId"`
	Supplier       string  `json:"supplier"`
	Value          float64 `json:"value"`
	BusinessAreaID string  `json:"businessAreaId"`
	CategoryID     string  `json:"categoryId,omitempty"`
	Description    string  `json:"description,omitempty"`
	PaymentDate    string  `json:"paymentDate,omitempty"`
	PaymentStatus  string  `json:"paymentStatus"`
	DueDate        string  `json:"dueDate,omitempty"`
}

// Record is the expense as returned by the API.
type Record struct {
	ID            string  `json:"id"`
	Supplier      string  `json:"supplier"`
	Value         float64 `json:"value"`
	PaymentStatus string  `json:"paymentStatus"`
}
