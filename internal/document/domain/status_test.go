package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusFinalized, true},
		{StatusDraft, StatusDraft, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusSent, false},
		{StatusDraft, StatusPaid, false},
		{StatusFinalized, StatusSent, true},
		{StatusFinalized, StatusPaid, true},
		{StatusFinalized, StatusCancelled, true},
		{StatusFinalized, StatusDraft, false},
		{StatusSent, StatusPaid, true},
		{StatusSent, StatusCancelled, false},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusDraft, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransition_RejectsIllegalMove(t *testing.T) {
	got, err := Transition(StatusSent, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StatusSent, got)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusDraft.Editable())
	assert.False(t, StatusFinalized.Editable())
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusSent.Terminal())
	assert.False(t, Status("UNKNOWN").Valid())
}
