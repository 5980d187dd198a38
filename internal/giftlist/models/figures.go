package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommitRate is the share of an ordered or reserved item held against the wallet.
var CommitRate = decimal.RequireFromString("0.25")

const (
	pregnancyDays  = 280
	pregnancyWeeks = 40
)

// Amounts are the list totals by lifecycle bucket.
type Amounts struct {
	Total     decimal.Decimal `json:"amount_total"`
	Ordered   decimal.Decimal `json:"amount_ordered"`
	Paid      decimal.Decimal `json:"amount_paid"`
	Delivered decimal.Decimal `json:"amount_delivered"`
}

// ComputeAmounts sums price_final per bucket. Cancelled items count towards
// nothing but the total.
func ComputeAmounts(items []*Item) Amounts {
	a := Amounts{Total: decimal.Zero, Ordered: decimal.Zero, Paid: decimal.Zero, Delivered: decimal.Zero}
	for _, it := range items {
		price := it.PriceFinal()
		a.Total = a.Total.Add(price)
		if it.State.CountsAsOrdered() {
			a.Ordered = a.Ordered.Add(price)
		}
		if it.State.CountsAsPaid() {
			a.Paid = a.Paid.Add(price)
		}
		if it.State == StateDelivered {
			a.Delivered = a.Delivered.Add(price)
		}
	}
	return a
}

// WalletFigures show what the beneficiary can still spend.
type WalletFigures struct {
	Balance   decimal.Decimal `json:"wallet_balance"`
	Committed decimal.Decimal `json:"wallet_committed"`
	Available decimal.Decimal `json:"wallet_available"`
}

// ComputeWalletFigures derives committed funds from every item of every list
// sharing the wallet. Callers pass the items of all sibling lists, not just
// the current one.
func ComputeWalletFigures(balance decimal.Decimal, siblingItems []*Item) WalletFigures {
	committed := decimal.Zero
	for _, it := range siblingItems {
		if it.State.Commits() {
			committed = committed.Add(it.PriceFinal())
		}
	}
	committed = committed.Mul(CommitRate)
	return WalletFigures{
		Balance:   balance,
		Committed: committed,
		Available: balance.Sub(committed),
	}
}

// Progress tracks a pregnancy against the expected birth date.
type Progress struct {
	WeeksProgress int  `json:"weeks_progress"`
	WeeksTotal    int  `json:"weeks_total"`
	DaysRemaining int  `json:"days_remaining"`
	IsOverdue     bool `json:"is_overdue"`
}

// ComputeProgress measures whole days between today and the expected date.
// Only birth lists advance the week counter.
func ComputeProgress(listType ListType, expected *time.Time, today time.Time) Progress {
	p := Progress{WeeksTotal: pregnancyWeeks}
	if expected == nil || expected.IsZero() {
		return p
	}
	daysUntil := daysBetween(today, *expected)
	p.DaysRemaining = max(0, daysUntil)
	p.IsOverdue = daysUntil < 0
	if listType == ListTypeBirth {
		p.WeeksProgress = min(max((pregnancyDays-daysUntil)/7, 0), pregnancyWeeks)
	}
	return p
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
