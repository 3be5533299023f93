package appointment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/engine"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/refs"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/rules"
	"github.com/Chative-core-poc-v1/draftflow/internal/flows/coerce"
)

const FlowType = "appointment"

const (
	ListServices = "services"
	ListBarbers  = "barbers"
)

var ErrIncomplete = errors.New("appointment draft is incomplete")

type Flow struct {
	autocomplete bool
}

type Service = engine.Service[Draft, Payload, Record, Upsert]

func NewFlow(autocomplete bool) *Flow {
	return &Flow{autocomplete: autocomplete}
}

func NewService(deps engine.Deps, autocomplete bool) (*Service, error) {
	return engine.New[Draft, Payload, Record, Upsert](NewFlow(autocomplete), deps)
}

func (f *Flow) Type() string              { return FlowType }
func (f *Flow) ServicePrefix() string     { return "/scheduling" }
func (f *Flow) EmptyDraft() Draft         { return Draft{} }
func (f *Flow) Meta(d *Draft) *draft.Meta { return &d.Meta }
func (f *Flow) SummaryTitle() string      { return "Resumo do agendamento:" }
func (f *Flow) AutocompleteEnabled() bool { return f.autocomplete }

func (f *Flow) EditableFields() []string {
	return []string{"service", "barber", "appointmentDate", "appointmentTime", "clientName", "notes"}
}

func (f *Flow) Endpoints() engine.Endpoints {
	scoped := func(suffix string) engine.Template {
		return engine.PathFunc(func(p engine.EndpointParams) string {
			return "/barbershops/" + url.PathEscape(p.BusinessID) + "/appointments/" + suffix
		})
	}
	return engine.Endpoints{
		engine.ActionCreate:       scoped(""),
		engine.ActionUpdate:       engine.Path("/appointments/{recordId}"),
		engine.ActionPatch:        engine.Path("/appointments/{recordId}/reschedule"),
		engine.ActionDelete:       engine.Path("/appointments/{recordId}"),
		engine.ActionAutoComplete: scoped("auto-complete"),
	}
}

// ApplyUpdates coerces u onto d. With autocomplete on, a date or time that
// cannot be parsed locally is kept as typed for the API to resolve.
func (f *Flow) ApplyUpdates(d *Draft, u Upsert) error {
	next := *d

	refs.Merge(&next.Service, u.Service)
	refs.Merge(&next.Barber, u.Barber)
	if u.AppointmentDate != nil {
		date, err := f.loose(*u.AppointmentDate, coerce.Date)
		if err != nil {
			return err
		}
		next.AppointmentDate = date
	}
	if u.AppointmentTime != nil {
		clock, err := f.loose(*u.AppointmentTime, coerce.Clock)
		if err != nil {
			return err
		}
		next.AppointmentTime = clock
	}
	if u.ClientName != nil {
		next.ClientName, _ = coerce.Text(*u.ClientName)
	}
	if u.Notes != nil {
		next.Notes = strings.TrimSpace(*u.Notes)
	}

	*d = next
	return nil
}

func (f *Flow) loose(s string, parse func(string) (string, error)) (string, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return "", nil
	}
	v, err := parse(raw)
	if err != nil && f.autocomplete {
		return raw, nil
	}
	return v, err
}

func (f *Flow) RequiredFields() []rules.Rule[Draft] {
	return []rules.Rule[Draft]{
		rules.Ref("service", func(d Draft) any { return d.Service }),
		rules.Ref("barber", func(d Draft) any { return d.Barber }),
		rules.Custom("appointmentDate", func(d Draft) any { return d.AppointmentDate }, func(v any, _ Draft) bool {
			return coerce.IsISODate(v)
		}),
		rules.Custom("appointmentTime", func(d Draft) any { return d.AppointmentTime }, func(v any, _ Draft) bool {
			return coerce.IsClock(v)
		}),
	}
}

func (f *Flow) SummarySections() []rules.Section[Draft] {
	return []rules.Section[Draft]{
		{Label: "Serviço", Value: func(d Draft) string { return d.Service.Display() }},
		{Label: "Barbeiro", Value: func(d Draft) string { return d.Barber.Display() }},
		{Label: "Data", Value: func(d Draft) string { return coerce.DisplayDate(d.AppointmentDate) }},
		{Label: "Horário", Value: func(d Draft) string { return d.AppointmentTime }},
		{Label: "Cliente", Value: func(d Draft) string { return d.ClientName }},
		{Label: "Observações", Value: func(d Draft) string { return d.Notes }},
	}
}

func (f *Flow) TransformToAPIPayload(d Draft, scope engine.Scope) (Payload, error) {
	if missing := rules.ComputeMissing(d, f.RequiredFields()); len(missing) > 0 {
		return Payload{}, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return Payload{
		Phone:      scope.Phone,
		BusinessID: scope.BusinessID,
		ServiceID:  d.Service.IDValue(),
		BarberID:   d.Barber.IDValue(),
		Date:       d.AppointmentDate,
		Time:       d.AppointmentTime,
		StartAt:    startAt(d.AppointmentDate, d.AppointmentTime),
		ClientName: d.ClientName,
		Notes:      d.Notes,
	}, nil
}

// BuildPartialUpdatePayload maps touched fields to API keys. A date or time
// change also recomputes startAt when both halves are known.
func (f *Flow) BuildPartialUpdatePayload(d Draft, u Upsert) (map[string]any, error) {
	out := map[string]any{}
	if u.Service.IsSet() {
		out["serviceId"] = coerce.Nullable(d.Service.IDValue())
	}
	if u.Barber.IsSet() {
		out["barberId"] = coerce.Nullable(d.Barber.IDValue())
	}
	if u.AppointmentDate != nil {
		out["appointmentDate"] = d.AppointmentDate
	}
	if u.AppointmentTime != nil {
		out["appointmentTime"] = d.AppointmentTime
	}
	if u.AppointmentDate != nil || u.AppointmentTime != nil {
		if s := startAt(d.AppointmentDate, d.AppointmentTime); s != "" {
			out["startAt"] = s
		}
	}
	if u.ClientName != nil {
		out["clientName"] = d.ClientName
	}
	if u.Notes != nil {
		out["notes"] = d.Notes
	}
	return out, nil
}

func (f *Flow) BuildListParams(listType string, scope engine.Scope) url.Values {
	params := url.Values{"businessId": {scope.BusinessID}}
	if listType == ListBarbers {
		params.Set("active", "true")
	}
	return params
}

func (f *Flow) ListErrorMessage(listType string) string {
	switch listType {
	case ListServices:
		return "Não consegui carregar os serviços da barbearia. Tente novamente em instantes."
	case ListBarbers:
		return "Não consegui carregar os barbeiros disponíveis. Tente novamente em instantes."
	default:
		return "Não consegui carregar as opções agora. Tente novamente em instantes."
	}
}

// startAt is empty until both halves are in canonical form.
func startAt(date, clock string) string {
	if !coerce.IsISODate(date) || !coerce.IsClock(clock) {
		return ""
	}
	return date + "T" + clock + ":00"
}

var _ engine.Flow[Draft, Payload, Upsert] = (*Flow)(nil)
