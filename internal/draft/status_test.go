package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := Status("")
	var err error
	for _, step := range []struct {
		ev   Event
		want Status
	}{
		{EventEdit, StatusCollecting},
		{EventRequestConfirmation, StatusAwaitingConfirmation},
		{EventEdit, StatusCollecting},
		{EventRequestConfirmation, StatusAwaitingConfirmation},
		{EventConfirm, StatusConfirmed},
		{EventComplete, StatusCompleted},
	} {
		s, err = Transition(s, step.ev)
		require.NoError(t, err, step.ev)
		assert.Equal(t, step.want, s)
	}
}

func TestTransitionRejectsIllegal(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
	}{
		{StatusCollecting, EventConfirm},
		{StatusCollecting, EventComplete},
		{StatusAwaitingConfirmation, EventComplete},
		{StatusConfirmed, EventEdit},
		{StatusCompleted, EventConfirm},
		{StatusCompleted, EventRequestConfirmation},
	}
	for _, c := range cases {
		got, err := Transition(c.from, c.ev)
		assert.ErrorIs(t, err, ErrIllegalTransition, "%s on %s", c.ev, c.from)
		assert.Equal(t, c.from, got)
	}
}

func TestTransitionResetFromAnywhere(t *testing.T) {
	for _, from := range []Status{"", StatusCollecting, StatusAwaitingConfirmation, StatusConfirmed, StatusCompleted} {
		got, err := Transition(from, EventReset)
		require.NoError(t, err)
		assert.Equal(t, StatusCollecting, got)
	}
}

func TestIDNameRefAccessors(t *testing.T) {
	var nilRef *IDNameRef
	assert.True(t, nilRef.Empty())
	assert.Equal(t, "", nilRef.Display())

	r := NewRef("7", "")
	assert.Equal(t, "7", r.IDValue())
	assert.Nil(t, r.Name)
	assert.Equal(t, "7", r.Display())

	r = NewRef("7", "Corte")
	assert.Equal(t, "Corte", r.Display())
	assert.False(t, r.Empty())
}
