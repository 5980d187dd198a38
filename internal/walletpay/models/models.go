// Package models holds the customer wallet and its append-only ledger.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "giftlist/pkg/domain"
)

// Wallet is the single eWallet card a partner owns. Balance always equals the
// sum of the wallet's ledger entries.
type Wallet struct {
	ID        id.WalletID     `json:"id"`
	Partner   id.PartnerID    `json:"partner_id"`
	Program   string          `json:"program"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntry is one credit (Issued) or debit (Used) on a wallet. PosOrder
// and Item are zero when the movement is not tied to a register order or an item.
type LedgerEntry struct {
	ID          id.LedgerEntryID `json:"id"`
	WalletID    id.WalletID      `json:"wallet_id"`
	PosOrder    id.PosOrderID    `json:"pos_order_id"`
	Item        id.ItemID        `json:"item_id"`
	Issued      decimal.Decimal  `json:"issued"`
	Used        decimal.Decimal  `json:"used"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Delta is the change the entry makes to the balance.
func (e LedgerEntry) Delta() decimal.Decimal {
	return e.Issued.Sub(e.Used)
}
