package booking

import "salonbook/internal/model"

// Role identifies who is requesting a status change.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

// Action is a requested booking status change.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// TargetStatus maps an action to the status it drives the booking into.
func (a Action) TargetStatus() (model.BookingStatus, bool) {
	switch a {
	case ActionConfirm:
		return model.StatusConfirmed, true
	case ActionComplete:
		return model.StatusCompleted, true
	case ActionCancel:
		return model.StatusCancelled, true
	}
	return "", false
}

// StateMachine governs legal booking status transitions. Transitions are
// monotonic except into cancelled, which is reachable from any non-terminal
// state. Completed requires passing through confirmed.
type StateMachine struct {
	transitions map[model.BookingStatus][]model.BookingStatus
}

// NewStateMachine creates the machine with the fixed transition table.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		transitions: map[model.BookingStatus][]model.BookingStatus{
			model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
			model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
			model.StatusCompleted: {},
			model.StatusCancelled: {},
		},
	}
}

// CanTransition reports whether from -> to is a legal transition.
func (m *StateMachine) CanTransition(from, to model.BookingStatus) bool {
	allowed, ok := m.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// RoleAllows reports whether the role may drive a booking into the target
// status. Customers may only cancel, and only while the booking has not
// started (past is decided by the caller against the shop's clock);
// owners and admins may confirm, complete and cancel at any time.
func (m *StateMachine) RoleAllows(role Role, to model.BookingStatus, past bool) bool {
	switch role {
	case RoleOwner, RoleAdmin:
		return to == model.StatusConfirmed || to == model.StatusCompleted || to == model.StatusCancelled
	case RoleCustomer:
		return to == model.StatusCancelled && !past
	}
	return false
}
