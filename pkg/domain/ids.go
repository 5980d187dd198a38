package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "giftlist/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so that an item ID can never be passed
// where a transfer ID is expected. The zero value means "not set".
type (
	ItemID          uuid.UUID
	ListID          uuid.UUID
	WalletID        uuid.UUID
	PartnerID       uuid.UUID
	ProductID       uuid.UUID
	SaleOrderID     uuid.UUID
	SaleLineID      uuid.UUID
	PurchaseOrderID uuid.UUID
	PurchaseLineID  uuid.UUID
	TransferID      uuid.UUID
	MoveID          uuid.UUID
	PosOrderID      uuid.UUID
	PosLineID       uuid.UUID
	LedgerEntryID   uuid.UUID
	ActionID        uuid.UUID
	OperatorID      uuid.UUID
)

const maxIDLength = 64

// parseUUID enforces the identifier invariant shared by every typed ID:
// non-empty, well formed and not the nil UUID.
func parseUUID(s, kind string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" ID")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" ID")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID cannot be nil")
	}
	return id, nil
}

// ParseItemID parses an item identifier.
func ParseItemID(s string) (ItemID, error) {
	id, err := parseUUID(s, "item")
	return ItemID(id), err
}

func (id ItemID) String() string { return uuid.UUID(id).String() }
func (id ItemID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ItemID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ItemID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseListID parses a list identifier.
func ParseListID(s string) (ListID, error) {
	id, err := parseUUID(s, "list")
	return ListID(id), err
}

func (id ListID) String() string { return uuid.UUID(id).String() }
func (id ListID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ListID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ListID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseWalletID parses a wallet identifier.
func ParseWalletID(s string) (WalletID, error) {
	id, err := parseUUID(s, "wallet")
	return WalletID(id), err
}

func (id WalletID) String() string { return uuid.UUID(id).String() }
func (id WalletID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id WalletID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *WalletID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParsePartnerID parses a partner identifier.
func ParsePartnerID(s string) (PartnerID, error) {
	id, err := parseUUID(s, "partner")
	return PartnerID(id), err
}

func (id PartnerID) String() string { return uuid.UUID(id).String() }
func (id PartnerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id PartnerID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *PartnerID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseProductID parses a product identifier.
func ParseProductID(s string) (ProductID, error) {
	id, err := parseUUID(s, "product")
	return ProductID(id), err
}

func (id ProductID) String() string { return uuid.UUID(id).String() }
func (id ProductID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ProductID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ProductID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseSaleOrderID parses a sale order identifier.
func ParseSaleOrderID(s string) (SaleOrderID, error) {
	id, err := parseUUID(s, "sale order")
	return SaleOrderID(id), err
}

func (id SaleOrderID) String() string { return uuid.UUID(id).String() }
func (id SaleOrderID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id SaleOrderID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *SaleOrderID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseSaleLineID parses a sale line identifier.
func ParseSaleLineID(s string) (SaleLineID, error) {
	id, err := parseUUID(s, "sale line")
	return SaleLineID(id), err
}

func (id SaleLineID) String() string { return uuid.UUID(id).String() }
func (id SaleLineID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id SaleLineID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *SaleLineID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParsePurchaseOrderID parses a purchase order identifier.
func ParsePurchaseOrderID(s string) (PurchaseOrderID, error) {
	id, err := parseUUID(s, "purchase order")
	return PurchaseOrderID(id), err
}

func (id PurchaseOrderID) String() string { return uuid.UUID(id).String() }
func (id PurchaseOrderID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id PurchaseOrderID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *PurchaseOrderID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParsePurchaseLineID parses a purchase line identifier.
func ParsePurchaseLineID(s string) (PurchaseLineID, error) {
	id, err := parseUUID(s, "purchase line")
	return PurchaseLineID(id), err
}

func (id PurchaseLineID) String() string { return uuid.UUID(id).String() }
func (id PurchaseLineID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id PurchaseLineID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *PurchaseLineID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseTransferID parses a transfer identifier.
func ParseTransferID(s string) (TransferID, error) {
	id, err := parseUUID(s, "transfer")
	return TransferID(id), err
}

func (id TransferID) String() string { return uuid.UUID(id).String() }
func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id TransferID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *TransferID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseMoveID parses a move identifier.
func ParseMoveID(s string) (MoveID, error) {
	id, err := parseUUID(s, "move")
	return MoveID(id), err
}

func (id MoveID) String() string { return uuid.UUID(id).String() }
func (id MoveID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id MoveID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *MoveID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParsePosOrderID parses a POS order identifier.
func ParsePosOrderID(s string) (PosOrderID, error) {
	id, err := parseUUID(s, "POS order")
	return PosOrderID(id), err
}

func (id PosOrderID) String() string { return uuid.UUID(id).String() }
func (id PosOrderID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id PosOrderID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *PosOrderID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParsePosLineID parses a POS line identifier.
func ParsePosLineID(s string) (PosLineID, error) {
	id, err := parseUUID(s, "POS line")
	return PosLineID(id), err
}

func (id PosLineID) String() string { return uuid.UUID(id).String() }
func (id PosLineID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id PosLineID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *PosLineID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseLedgerEntryID parses a ledger entry identifier.
func ParseLedgerEntryID(s string) (LedgerEntryID, error) {
	id, err := parseUUID(s, "ledger entry")
	return LedgerEntryID(id), err
}

func (id LedgerEntryID) String() string { return uuid.UUID(id).String() }
func (id LedgerEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id LedgerEntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *LedgerEntryID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseActionID parses a action identifier.
func ParseActionID(s string) (ActionID, error) {
	id, err := parseUUID(s, "action")
	return ActionID(id), err
}

func (id ActionID) String() string { return uuid.UUID(id).String() }
func (id ActionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ActionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ActionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseOperatorID parses an operator identifier.
func ParseOperatorID(s string) (OperatorID, error) {
	id, err := parseUUID(s, "operator")
	return OperatorID(id), err
}

func (id OperatorID) String() string { return uuid.UUID(id).String() }
func (id OperatorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id OperatorID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *OperatorID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
