// Package workflow defines the case lifecycle: states, the legal transitions
// between them, the document each transition depends on, and which
// transitions need a second pair of eyes.
package workflow

import (
	"errors"
	"fmt"
)

type State string

const (
	Enquiry    State = "enquiry"
	Estimation State = "estimation"
	Quotation  State = "quotation"
	Order      State = "order"
	Production State = "production"
	Delivery   State = "delivery"
	Closed     State = "closed"
	OnHold     State = "on_hold"
	Cancelled  State = "cancelled"
)

var allStates = []State{Enquiry, Estimation, Quotation, Order, Production, Delivery, Closed, OnHold, Cancelled}

// AllStates returns every state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState validates a raw state name.
func ParseState(s string) (State, bool) {
	for _, st := range allStates {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s State) String() string { return string(s) }

// IsTerminal reports whether no transition may leave s.
func (s State) IsTerminal() bool {
	return s == Closed || s == Cancelled
}

// IsOpen reports whether a case in s still counts as work in progress.
func (s State) IsOpen() bool {
	return !s.IsTerminal()
}

// HasSLA reports whether time spent in s is measured against a deadline.
func (s State) HasSLA() bool {
	_, ok := defaultSLAHours[s]
	return ok
}

var defaultSLAHours = map[State]int{
	Enquiry:    24,
	Estimation: 72,
	Quotation:  48,
	Order:      24,
	Production: 240,
	Delivery:   72,
}

// DefaultSLAHours is the built-in allowance for a state, 0 when it has none.
func DefaultSLAHours(s State) int {
	return defaultSLAHours[s]
}

// Guard names the document a case must have before a transition is allowed.
type Guard string

const (
	GuardNone                Guard = ""
	GuardApprovedEstimation  Guard = "approved_estimation"
	GuardAcceptedQuotation   Guard = "accepted_quotation"
	GuardConfirmedSalesOrder Guard = "confirmed_sales_order"
)

// Describe is the human wording used in error messages.
func (g Guard) Describe() string {
	switch g {
	case GuardApprovedEstimation:
		return "an approved estimation"
	case GuardAcceptedQuotation:
		return "an accepted quotation"
	case GuardConfirmedSalesOrder:
		return "a confirmed sales order"
	default:
		return ""
	}
}

const (
	ActionTransition = "transition"
	ActionHold       = "hold"
	ActionResume     = "resume"
)

// Transition is one legal edge of the lifecycle graph.
type Transition struct {
	From             State  `json:"from"`
	To               State  `json:"to"`
	Action           string `json:"action"`
	Guard            Guard  `json:"guard,omitempty"`
	RequiresApproval bool   `json:"requires_approval"`
}

var (
	ErrUnknownState      = errors.New("unknown state")
	ErrTerminalState     = errors.New("case is in a terminal state")
	ErrInvalidTransition = errors.New("transition not allowed")
)

var edges = []Transition{
	{From: Enquiry, To: Estimation},
	{From: Enquiry, To: Cancelled},

	{From: Estimation, To: Quotation, Guard: GuardApprovedEstimation},
	{From: Estimation, To: Enquiry},
	{From: Estimation, To: Cancelled},

	{From: Quotation, To: Order, Guard: GuardAcceptedQuotation},
	{From: Quotation, To: Estimation},
	{From: Quotation, To: Cancelled},

	{From: Order, To: Production, Guard: GuardConfirmedSalesOrder},
	{From: Order, To: Cancelled, RequiresApproval: true},

	{From: Production, To: Delivery},
	{From: Production, To: Cancelled, RequiresApproval: true},

	{From: Delivery, To: Closed, RequiresApproval: true},
}

func edge(from, to State) (Transition, bool) {
	for _, e := range edges {
		if e.From == from && e.To == to {
			e.Action = ActionTransition
			return e, true
		}
	}
	return Transition{}, false
}

// Resolve finds the transition from -> to. previous is the state a held case
// was parked from and is only consulted when from is on_hold.
func Resolve(from, to, previous State) (Transition, error) {
	if _, ok := ParseState(string(from)); !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownState, from)
	}
	if _, ok := ParseState(string(to)); !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownState, to)
	}
	if from.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: %s", ErrTerminalState, from)
	}

	if from == OnHold {
		switch {
		case to == previous && previous != "" && previous != OnHold && !previous.IsTerminal():
			return Transition{From: OnHold, To: to, Action: ActionResume}, nil
		case to == Cancelled:
			// cancelling a parked case needs whatever cancelling it directly would need
			t := Transition{From: OnHold, To: Cancelled, Action: ActionTransition}
			if e, ok := edge(previous, Cancelled); ok {
				t.RequiresApproval = e.RequiresApproval
			}
			return t, nil
		}
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if to == OnHold {
		return Transition{From: from, To: OnHold, Action: ActionHold}, nil
	}

	if e, ok := edge(from, to); ok {
		return e, nil
	}
	return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Available lists the transitions that can leave from, in table order.
func Available(from, previous State) []Transition {
	if from.IsTerminal() {
		return nil
	}
	var out []Transition
	if from == OnHold {
		if t, err := Resolve(from, previous, previous); err == nil {
			out = append(out, t)
		}
		if t, err := Resolve(from, Cancelled, previous); err == nil {
			out = append(out, t)
		}
		return out
	}
	for _, e := range edges {
		if e.From == from {
			e.Action = ActionTransition
			out = append(out, e)
		}
	}
	out = append(out, Transition{From: from, To: OnHold, Action: ActionHold})
	return out
}
