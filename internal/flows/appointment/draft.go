// Package appointment books barbershop appointments through the draft engine.
package appointment

import (
	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/refs"
)

type Draft struct {
	draft.Meta
	Service         *draft.IDNameRef `json:"service,omitempty"`
	Barber          *draft.IDNameRef `json:"barber,omitempty"`
	AppointmentDate string           `json:"appointmentDate,omitempty"`
	AppointmentTime string           `json:"appointmentTime,omitempty"`
	ClientName      string           `json:"clientName,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

type Upsert struct {
	Service         refs.Incoming `json:"service"`
	Barber          refs.Incoming `json:"barber"`
	AppointmentDate *string       `json:"appointmentDate,omitempty"`
	AppointmentTime *string       `json:"appointmentTime,omitempty"`
	ClientName      *string       `json:"clientName,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
}

type Payload struct {
	Phone      string `json:"phone"`
	BusinessID string `json:"businessId"`
	ServiceID  string `json:"serviceId"`
	BarberID   string `json:"barberId"`
	Date       string `json:"appointmentDate"`
	Time       string `json:"appointmentTime"`
	StartAt    string `json:"startAt"`
	ClientName string `json:"clientName,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type Record struct {
	ID      string `json:"id"`
	StartAt string `json:"startAt"`
	Status  string `json:"status"`
}
