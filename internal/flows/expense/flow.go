package expense

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/engine"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/refs"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/rules"
	"github.com/Chative-core-poc-v1/draftflow/internal/flows/coerce"
)

const FlowType = "expense"

// Selection list types.
const (
	ListBusinessAreas = "businessAreas"
	ListCategories    = "categories"
)

var (
	ErrInvalidValue         = errors.New("expense value must be greater than zero")
	ErrInvalidPaymentStatus = errors.New("unknown payment status")
	ErrIncomplete           = errors.New("expense draft is incomplete")
)

var paymentStatuses = map[string]string{
	"paid":     PaymentPaid,
	"pago":     PaymentPaid,
	"paga":     PaymentPaid,
	"pending":  PaymentPending,
	"pendente": PaymentPending,
	"a pagar":  PaymentPending,
}

// Flow is the expense configuration of the draft engine.
type Flow struct {
	autocomplete bool
}

// Service is the engine specialised for expenses.
type Service = engine.Service[Draft, Payload, Record, Upsert]

// NewFlow returns the expense flow. Autocomplete is off unless enabled.
func NewFlow(autocomplete bool) *Flow {
	return &Flow{autocomplete: autocomplete}
}

// NewService wires the expense flow into the engine.
func NewService(deps engine.Deps, autocomplete bool) (*Service, error) {
	return engine.New[Draft, Payload, Record, Upsert](NewFlow(autocomplete), deps)
}

func (f *Flow) Type() string              { return FlowType }
func (f *Flow) ServicePrefix() string     { return "/financial" }
func (f *Flow) EmptyDraft() Draft         { return Draft{} }
func (f *Flow) Meta(d *Draft) *draft.Meta { return &d.Meta }
func (f *Flow) SummaryTitle() string      { return "Resumo da despesa:" }
func (f *Flow) AutocompleteEnabled() bool { return f.autocomplete }

func (f *Flow) EditableFields() []string {
	return []string{"supplier", "value", "businessArea", "category", "description", "paymentDate", "paymentStatus", "dueDate"}
}

func (f *Flow) Endpoints() engine.Endpoints {
	return engine.Endpoints{
		engine.ActionCreate:       engine.Path("/expenses"),
		engine.ActionUpdate:       engine.Path("/expenses/{recordId}"),
		engine.ActionDelete:       engine.Path("/expenses/{recordId}"),
		engine.ActionAutoComplete: engine.PathFunc(func(p engine.EndpointParams) string {
			return "/farms/" + url.PathEscape(p.FarmID) + "/expenses/auto-complete"
		}),
	}
}

// ApplyUpdates coerces u onto d. Nothing is written when any field is invalid.
func (f *Flow) ApplyUpdates(d *Draft, u Upsert) error {
	next := *d

	if u.Supplier != nil {
		next.Supplier, _ = coerce.Text(*u.Supplier)
	}
	if u.Value != nil {
		v, err := coerce.Amount(u.Value)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidValue, u.Value)
		}
		next.Value = v
	}
	refs.Merge(&next.BusinessArea, u.BusinessArea)
	refs.Merge(&next.Category, u.Category)
	if u.Description != nil {
		next.Description, _ = coerce.Text(*u.Description)
	}
	if u.PaymentDate != nil {
		date, err := optionalDate(*u.PaymentDate)
		if err != nil {
			return err
		}
		next.PaymentDate = date
	}
	if u.PaymentStatus != nil {
		status, ok := paymentStatuses[strings.ToLower(strings.TrimSpace(*u.PaymentStatus))]
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, *u.PaymentStatus)
		}
		next.PaymentStatus = status
	}
	if u.DueDate != nil {
		date, err := optionalDate(*u.DueDate)
		if err != nil {
			return err
		}
		next.DueDate = date
	}

	*d = next
	return nil
}

// optionalDate normalizes s; blank input clears the date.
func optionalDate(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return coerce.Date(s)
}

func (f *Flow) RequiredFields() []rules.Rule[Draft] {
	return []rules.Rule[Draft]{
		rules.String("supplier", func(d Draft) any { return d.Supplier }),
		rules.Number("value", func(d Draft) any { return d.Value }),
		rules.Ref("businessArea", func(d Draft) any { return d.BusinessArea }),
		rules.Custom("dueDate", func(d Draft) any { return d.DueDate }, func(v any, d Draft) bool {
			return d.PaymentStatus != PaymentPending || rules.IsNonBlankString(v)
		}),
	}
}

func (f *Flow) SummarySections() []rules.Section[Draft] {
	return []rules.Section[Draft]{
		{Label: "Fornecedor", Value: func(d Draft) string { return d.Supplier }},
		{Label: "Valor", Value: func(d Draft) string { return formatBRL(d.Value) }},
		{Label: "Área de negócio", Value: func(d Draft) string { return d.BusinessArea.Display() }},
		{Label: "Categoria", Value: func(d Draft) string { return d.Category.Display() }},
		{Label: "Descrição", Value: func(d Draft) string { return d.Description }},
		{Label: "Data de pagamento", Value: func(d Draft) string { return coerce.DisplayDate(d.PaymentDate) }},
		{Label: "Situação", Value: func(d Draft) string { return statusLabel(d.PaymentStatus) }},
		{Label: "Vencimento", Value: func(d Draft) string { return coerce.DisplayDate(d.DueDate) }},
	}
}

func (f *Flow) TransformToAPIPayload(d Draft, scope engine.Scope) (Payload, error) {
	if missing := rules.ComputeMissing(d, f.RequiredFields()); len(missing) > 0 {
		return Payload{}, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	status := d.PaymentStatus
	if status == "" {
		status = PaymentPaid
	}
	return Payload{
		Phone:          scope.Phone,
		FarmID:         scope.FarmID,
		BusinessID:     scope.BusinessID,
		Supplier:       d.Supplier,
		Value:          d.Value,
		BusinessAreaID: d.BusinessArea.IDValue(),
		CategoryID:     d.Category.IDValue(),
		Description:    d.Description,
		PaymentDate:    d.PaymentDate,
		PaymentStatus:  status,
		DueDate:        d.DueDate,
	}, nil
}

func (f *Flow) BuildPartialUpdatePayload(d Draft, u Upsert) (map[string]any, error) {
	out := map[string]any{}
	if u.Supplier != nil {
		out["supplier"] = d.Supplier
	}
	if u.Value != nil {
		out["value"] = d.Value
	}
	if u.BusinessArea.IsSet() {
		out["businessAreaId"] = coerce.Nullable(d.BusinessArea.IDValue())
	}
	if u.Category.IsSet() {
		out["categoryId"] = coerce.Nullable(d.Category.IDValue())
	}
	if u.Description != nil {
		out["description"] = d.Description
	}
	if u.PaymentDate != nil {
		out["paymentDate"] = coerce.Nullable(d.PaymentDate)
	}
	if u.PaymentStatus != nil {
		out["paymentStatus"] = d.PaymentStatus
	}
	if u.DueDate != nil {
		out["dueDate"] = coerce.Nullable(d.DueDate)
	}
	return out, nil
}

func (f *Flow) BuildListParams(listType string, scope engine.Scope) url.Values {
	params := url.Values{"farmId": {scope.FarmID}}
	if listType == ListCategories {
		params.Set("type", "expense")
	}
	return params
}

func (f *Flow) ListErrorMessage(listType string) string {
	switch listType {
	case ListBusinessAreas:
		return "Não consegui carregar as áreas de negócio agora. Tente novamente em instantes."
	case ListCategories:
		return "Não consegui carregar as categorias de despesa agora. Tente novamente em instantes."
	default:
		return "Não consegui carregar as opções agora. Tente novamente em instantes."
	}
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

func formatBRL(v float64) string {
	if v <= 0 {
		return ""
	}
	return brl.Sprintf("R$ %v", number.Decimal(v, number.Scale(2)))
}

func statusLabel(s string) string {
	switch s {
	case PaymentPaid:
		return "Pago"
	case PaymentPending:
		return "Pendente"
	default:
		return s
	}
}

var _ engine.Flow[Draft, Payload, Upsert] = (*Flow)(nil)
