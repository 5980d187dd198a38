package models

// State is the canonical lifecycle state of an item. It is always derived
// from the linked documents and never set by callers.
type State string

const (
	StateWished     State = "wished"
	StateOrdered    State = "ordered"
	StatePODraft    State = "po_draft"
	StatePOSent     State = "po_sent"
	StateReceived   State = "received"
	StateReserved   State = "reserved"
	StatePending    State = "pending"
	StatePaid       State = "paid"
	StateOutCreated State = "out_created"
	StateDelivered  State = "delivered"
	StateCancelled  State = "cancelled"
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{
	StateWished, StateOrdered, StatePODraft, StatePOSent, StateReceived,
	StateReserved, StatePending, StatePaid, StateOutCreated, StateDelivered,
	StateCancelled,
}

func (s State) String() string { return string(s) }

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateDelivered || s == StateCancelled
}

// CountsAsOrdered reports whether the item contributes to the list's ordered amount.
func (s State) CountsAsOrdered() bool {
	switch s {
	case StateOrdered, StateReserved, StatePaid, StateDelivered:
		return true
	}
	return false
}

// CountsAsPaid reports whether the item contributes to the list's paid amount.
func (s State) CountsAsPaid() bool {
	return s == StatePaid || s == StateDelivered
}

// Commits reports whether a quarter of the item price is held against the wallet.
func (s State) Commits() bool {
	return s == StateOrdered || s == StateReserved
}
