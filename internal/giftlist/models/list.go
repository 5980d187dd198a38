package models

import (
	"strings"
	"time"

	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
)

type ListType string

const (
	ListTypeBirth   ListType = "birth"
	ListTypeWedding ListType = "wedding"
	ListTypeOther   ListType = "other"
)

func (t ListType) IsValid() bool {
	return t == ListTypeBirth || t == ListTypeWedding || t == ListTypeOther
}

type ListState string

const (
	ListDraft     ListState = "draft"
	ListActive    ListState = "active"
	ListInactive  ListState = "inactive"
	ListCompleted ListState = "completed"
)

func (s ListState) IsValid() bool {
	switch s {
	case ListDraft, ListActive, ListInactive, ListCompleted:
		return true
	}
	return false
}

// List groups items for one beneficiary and links the beneficiary's wallet.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Beneficiary is always set
//   - A completed list never changes state again
//   - Items can only be added in draft or active
type List struct {
	ID                id.ListID     `json:"id"`
	Name              string        `json:"name"`
	Beneficiary       id.PartnerID  `json:"beneficiary_id"`
	SecondBeneficiary id.PartnerID  `json:"second_beneficiary_id"`
	Type              ListType      `json:"list_type"`
	ExpectedDate      *time.Time    `json:"expected_date,omitempty"`
	State             ListState     `json:"state"`
	WalletID          id.WalletID   `json:"wallet_id"`
	Advisor           id.OperatorID `json:"advisor_id"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func NewList(
	listID id.ListID,
	name string,
	beneficiary id.PartnerID,
	listType ListType,
	expectedDate *time.Time,
	advisor id.OperatorID,
	now time.Time,
) (*List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "list name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "list name must be 128 characters or less")
	}
	if beneficiary.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "list requires a beneficiary")
	}
	if listType == "" {
		listType = ListTypeBirth
	}
	if !listType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid list type")
	}
	return &List{
		ID:           listID,
		Name:         name,
		Beneficiary:  beneficiary,
		Type:         listType,
		ExpectedDate: expectedDate,
		State:        ListActive,
		Advisor:      advisor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanAddItems reports whether new items are accepted.
func (l *List) CanAddItems() error {
	if l.State != ListDraft && l.State != ListActive {
		return dErrors.Newf(dErrors.CodeFailedPrecondition, "Cannot modify %s list. Reactivate it first.", l.State)
	}
	return nil
}

// CanModify reports whether list fields and items may be changed.
func (l *List) CanModify() error {
	if l.State == ListInactive || l.State == ListCompleted {
		return dErrors.Newf(dErrors.CodeFailedPrecondition, "Cannot modify %s list. Reactivate it first.", l.State)
	}
	return nil
}

func (l *List) Activate(now time.Time) error {
	if l.State == ListCompleted {
		return dErrors.New(dErrors.CodeFailedPrecondition, "Cannot reactivate a completed list.")
	}
	l.State = ListActive
	l.UpdatedAt = now
	return nil
}

func (l *List) Deactivate(now time.Time) error {
	if l.State == ListCompleted {
		return dErrors.New(dErrors.CodeFailedPrecondition, "Cannot deactivate a completed list.")
	}
	l.State = ListInactive
	l.UpdatedAt = now
	return nil
}

// Complete closes the list. When items are still ordered or reserved the
// caller must confirm explicitly.
func (l *List) Complete(items []*Item, confirmed bool, now time.Time) error {
	if l.State == ListCompleted {
		return nil
	}
	if !confirmed {
		for _, it := range items {
			if it.State == StateOrdered || it.State == StateReserved {
				return dErrors.New(dErrors.CodeFailedPrecondition,
					"List has ordered or reserved items. Confirm to complete anyway.")
			}
		}
	}
	l.State = ListCompleted
	l.UpdatedAt = now
	return nil
}

// SharesWallet reports whether the list's committed funds count against the wallet.
func (l *List) SharesWallet(walletID id.WalletID) bool {
	if l.WalletID != walletID || walletID.IsNil() {
		return false
	}
	return l.State == ListActive || l.State == ListInactive
}

// OriginPrefix marks stock documents created on behalf of a list.
const OriginPrefix = "GIFT: "

// Origin is the source reference written on holding transfers and purchase orders.
func (l *List) Origin() string {
	return OriginPrefix + l.Name
}
