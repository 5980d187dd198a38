// Package state derives an item's canonical lifecycle state from the states
// of the documents it links to.
package state

import (
	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
)

// DocState is the observed state of one linked document. Present is false
// when the item has no reference of that kind.
type DocState[S ~string] struct {
	Present bool
	State   S
}

// Snapshot is everything Derive looks at.
type Snapshot struct {
	Cancelled       bool
	Purchase        DocState[erp.PurchaseState]
	Receipt         DocState[erp.TransferState]
	Delivery        DocState[erp.TransferState]
	Holding         DocState[erp.TransferState]
	HasDownPayment  bool
	HasFinalPayment bool
}

// Rule is one predicate of the chain. Name is used in logs and tests.
type Rule struct {
	Name   string
	Match  func(Snapshot) bool
	Result models.State
}

// Rules is evaluated top to bottom; the first match wins. Holding-transfer
// rules do not require a purchase reference: stock reservations never create
// a purchase order and must still surface as reserved and pending.
var Rules = []Rule{
	{"cancelled", func(s Snapshot) bool { return s.Cancelled }, models.StateCancelled},
	{"receipt_done", func(s Snapshot) bool {
		return s.Purchase.Present && s.Receipt.Present && s.Receipt.State == erp.TransferDone
	}, models.StateReceived},
	{"delivery_done", func(s Snapshot) bool {
		return s.Delivery.Present && s.Delivery.State == erp.TransferDone
	}, models.StateDelivered},
	{"delivery_created", func(s Snapshot) bool { return s.Delivery.Present }, models.StateOutCreated},
	{"final_payment", func(s Snapshot) bool { return s.HasFinalPayment }, models.StatePaid},
	{"holding_done", func(s Snapshot) bool {
		return s.Holding.Present && s.Holding.State == erp.TransferDone
	}, models.StatePending},
	{"holding_assigned", func(s Snapshot) bool {
		return s.Holding.Present && s.Holding.State == erp.TransferAssigned
	}, models.StateReserved},
	{"receipt_pending", func(s Snapshot) bool {
		return s.Purchase.Present && s.Receipt.Present && s.Receipt.State != erp.TransferDone
	}, models.StatePending},
	{"po_sent", func(s Snapshot) bool {
		return s.Purchase.Present && s.Purchase.State == erp.PurchaseSent
	}, models.StatePOSent},
	{"po_draft", func(s Snapshot) bool { return s.Purchase.Present }, models.StatePODraft},
	{"down_payment", func(s Snapshot) bool { return s.HasDownPayment }, models.StateOrdered},
}

// Derive is pure and total: it returns the result of the first matching rule,
// or wished when none matches.
func Derive(s Snapshot) models.State {
	st, _ := Explain(s)
	return st
}

// Explain is Derive plus the name of the rule that fired ("default" when none).
func Explain(s Snapshot) (models.State, string) {
	for _, r := range Rules {
		if r.Match(s) {
			return r.Result, r.Name
		}
	}
	return models.StateWished, "default"
}
