package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	for _, s := range AllStates() {
		got, ok := ParseState(string(s))
		assert.True(t, ok, s)
		assert.Equal(t, s, got)
	}
	_, ok := ParseState("shipped")
	assert.False(t, ok)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, Closed.IsTerminal())
	assert.True(t, Cancelled.IsTerminal())
	assert.False(t, OnHold.IsTerminal())
	assert.False(t, Delivery.IsTerminal())
}

func TestDefaultSLAHours(t *testing.T) {
	tests := map[State]int{
		Enquiry:    24,
		Estimation: 72,
		Quotation:  48,
		Order:      24,
		Production: 240,
		Delivery:   72,
		Closed:     0,
		Cancelled:  0,
		OnHold:     0,
	}
	for state, want := range tests {
		assert.Equal(t, want, DefaultSLAHours(state), state)
		assert.Equal(t, want > 0, state.HasSLA(), state)
	}
}

func TestResolve_HappyPath(t *testing.T) {
	path := []State{Enquiry, Estimation, Quotation, Order, Production, Delivery, Closed}
	for i := 0; i < len(path)-1; i++ {
		tr, err := Resolve(path[i], path[i+1], "")
		require.NoError(t, err, "%s -> %s", path[i], path[i+1])
		assert.Equal(t, ActionTransition, tr.Action)
	}
}

func TestResolve_Guards(t *testing.T) {
	tests := []struct {
		from, to State
		guard    Guard
	}{
		{Estimation, Quotation, GuardApprovedEstimation},
		{Quotation, Order, GuardAcceptedQuotation},
		{Order, Production, GuardConfirmedSalesOrder},
		{Enquiry, Estimation, GuardNone},
		{Production, Delivery, GuardNone},
	}
	for _, tt := range tests {
		tr, err := Resolve(tt.from, tt.to, "")
		require.NoError(t, err)
		assert.Equal(t, tt.guard, tr.Guard, "%s -> %s", tt.from, tt.to)
	}
}

func TestResolve_ApprovalRequired(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Order, Cancelled, true},
		{Production, Cancelled, true},
		{Delivery, Closed, true},
		{Enquiry, Cancelled, false},
		{Quotation, Cancelled, false},
		{Production, Delivery, false},
	}
	for _, tt := range tests {
		tr, err := Resolve(tt.from, tt.to, "")
		require.NoError(t, err)
		assert.Equal(t, tt.want, tr.RequiresApproval, "%s -> %s", tt.from, tt.to)
	}
}

func TestResolve_Rejections(t *testing.T) {
	_, err := Resolve(Closed, Enquiry, "")
	assert.True(t, errors.Is(err, ErrTerminalState))

	_, err = Resolve(Cancelled, OnHold, "")
	assert.True(t, errors.Is(err, ErrTerminalState))

	_, err = Resolve(Enquiry, Order, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = Resolve(Delivery, Cancelled, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = Resolve(Enquiry, "shipped", "")
	assert.True(t, errors.Is(err, ErrUnknownState))
}

func TestResolve_HoldAndResume(t *testing.T) {
	tr, err := Resolve(Production, OnHold, "")
	require.NoError(t, err)
	assert.Equal(t, ActionHold, tr.Action)

	tr, err = Resolve(OnHold, Production, Production)
	require.NoError(t, err)
	assert.Equal(t, ActionResume, tr.Action)

	_, err = Resolve(OnHold, Delivery, Production)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "resume must return to the held state")

	_, err = Resolve(OnHold, OnHold, Production)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestResolve_CancelFromHoldInheritsApproval(t *testing.T) {
	tr, err := Resolve(OnHold, Cancelled, Production)
	require.NoError(t, err)
	assert.True(t, tr.RequiresApproval)

	tr, err = Resolve(OnHold, Cancelled, Enquiry)
	require.NoError(t, err)
	assert.False(t, tr.RequiresApproval)
}

func TestAvailable(t *testing.T) {
	got := Available(Estimation, "")
	var targets []State
	for _, tr := range got {
		targets = append(targets, tr.To)
	}
	assert.Equal(t, []State{Quotation, Enquiry, Cancelled, OnHold}, targets)

	held := Available(OnHold, Order)
	require.Len(t, held, 2)
	assert.Equal(t, Order, held[0].To)
	assert.Equal(t, ActionResume, held[0].Action)
	assert.True(t, held[1].RequiresApproval)

	assert.Empty(t, Available(Closed, ""))
}

func TestGuardDescribe(t *testing.T) {
	assert.Equal(t, "an approved estimation", GuardApprovedEstimation.Describe())
	assert.Equal(t, "", GuardNone.Describe())
}
