// Package models holds the workflow action log: a per-document history of
// what happened, who or what caused it, and the state it moved between.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "giftlist/pkg/domain"
)

// DocumentType names the kind of document an action belongs to.
type DocumentType string

const (
	DocGiftList      DocumentType = "gift_list"
	DocGiftListItem  DocumentType = "gift_list_item"
	DocSaleOrder     DocumentType = "sale_order"
	DocPurchaseOrder DocumentType = "purchase_order"
	DocTransfer      DocumentType = "transfer"
	DocPosOrder      DocumentType = "pos_order"
	DocWallet        DocumentType = "wallet"
)

func (d DocumentType) IsValid() bool {
	switch d {
	case DocGiftList, DocGiftListItem, DocSaleOrder, DocPurchaseOrder, DocTransfer, DocPosOrder, DocWallet:
		return true
	}
	return false
}

type ActionType string

const (
	ActionCreation                  ActionType = "creation"
	ActionStateChange               ActionType = "state_change"
	ActionCancellation              ActionType = "cancellation"
	ActionTransferCreated           ActionType = "transfer_created"
	ActionTransferLinked            ActionType = "transfer_linked"
	ActionReceiptValidated          ActionType = "receipt_validated"
	ActionInternalTransferValidated ActionType = "internal_transfer_validated"
	ActionDeliveryValidated         ActionType = "delivery_validated"
	ActionPOCreated                 ActionType = "po_created"
	ActionPOSent                    ActionType = "po_sent"
	ActionPOConfirmed               ActionType = "po_confirmed"
	ActionPaymentReceived           ActionType = "payment_received"
	ActionPaymentRefunded           ActionType = "payment_refunded"
	ActionWalletCredit              ActionType = "wallet_credit"
	ActionWalletDebit               ActionType = "wallet_debit"

	// Provider webhook statuses.
	ActionAPIShipmentCreated   ActionType = "api_shipment_created"
	ActionAPIShipmentInTransit ActionType = "api_shipment_in_transit"
	ActionAPIShipmentDelivered ActionType = "api_shipment_delivered"
	ActionAPIShipmentFailed    ActionType = "api_shipment_failed"
	ActionAPIPaymentConfirmed  ActionType = "api_payment_confirmed"
	ActionAPIPaymentFailed     ActionType = "api_payment_failed"
	ActionAPIPaymentRefunded   ActionType = "api_payment_refunded"
)

// ShipmentAction maps a shipping provider status to its action type.
func ShipmentAction(status string) (ActionType, bool) {
	switch status {
	case "created":
		return ActionAPIShipmentCreated, true
	case "in_transit":
		return ActionAPIShipmentInTransit, true
	case "delivered":
		return ActionAPIShipmentDelivered, true
	case "failed":
		return ActionAPIShipmentFailed, true
	}
	return "", false
}

// PaymentAction maps a payment provider status to its action type.
func PaymentAction(status string) (ActionType, bool) {
	switch status {
	case "confirmed":
		return ActionAPIPaymentConfirmed, true
	case "failed":
		return ActionAPIPaymentFailed, true
	case "refunded":
		return ActionAPIPaymentRefunded, true
	}
	return "", false
}

// ActionSource tells whether an operator, the system itself, or an external
// provider caused the action.
type ActionSource string

const (
	SourceUser   ActionSource = "user"
	SourceSystem ActionSource = "system"
	SourceAPI    ActionSource = "api"
)

// Action is one entry of a document's history. DocumentRef is the human
// readable name (S00001, WH/OUT/00002, a list name); ResID is its identifier.
type Action struct {
	ID           id.ActionID      `json:"id"`
	DocumentType DocumentType     `json:"document_type"`
	DocumentRef  string           `json:"document_ref"`
	ResID        uuid.UUID        `json:"res_id"`
	ActionType   ActionType       `json:"action_type"`
	Source       ActionSource     `json:"source"`
	StateFrom    string           `json:"state_from,omitempty"`
	StateTo      string           `json:"state_to,omitempty"`
	Partner      id.PartnerID     `json:"partner_id"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Provider     string           `json:"provider,omitempty"`
	Note         string           `json:"note,omitempty"`
	RequestID    string           `json:"request_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Filter selects one document's history. Zero fields are ignored.
type Filter struct {
	DocumentType DocumentType
	ResID        uuid.UUID
	Limit        int
}

func (f Filter) Matches(a Action) bool {
	if f.DocumentType != "" && a.DocumentType != f.DocumentType {
		return false
	}
	if f.ResID != uuid.Nil && a.ResID != f.ResID {
		return false
	}
	return true
}
