package walletpay

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftlist/internal/walletpay/models"
	"giftlist/internal/walletpay/store"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/testutil"
)

func TestLedger(t *testing.T) {
	ctx := testutil.FixedTime(time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC))
	ledger := NewLedger(store.NewInMemory(), WithProgram("Gift eWallet"))
	partner := id.PartnerID(uuid.New())

	walletID, err := ledger.EnsureForPartner(ctx, partner)
	require.NoError(t, err)
	again, err := ledger.EnsureForPartner(ctx, partner)
	require.NoError(t, err)
	assert.Equal(t, walletID, again, "one wallet per partner")

	w, err := ledger.Wallet(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, "Gift eWallet", w.Program)

	t.Run("top-up must be positive", func(t *testing.T) {
		_, err := ledger.TopUp(ctx, walletID, decimal.Zero, id.PosOrderID{}, "nothing")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("debit beyond balance is blocking", func(t *testing.T) {
		_, err := ledger.TopUp(ctx, walletID, decimal.NewFromInt(30), id.PosOrderID{}, "gift card")
		require.NoError(t, err)
		_, err = ledger.debit(ctx, models.LedgerEntry{WalletID: walletID, Used: decimal.NewFromInt(31)})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeFailedPrecondition))

		balance, err := ledger.Balance(ctx, walletID)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(30)))
	})

	t.Run("refund covers only the item's share of a shared order", func(t *testing.T) {
		order := id.PosOrderID(uuid.New())
		lamp, chair := id.ItemID(uuid.New()), id.ItemID(uuid.New())
		_, err := ledger.TopUp(ctx, walletID, decimal.NewFromInt(100), id.PosOrderID{}, "gift card")
		require.NoError(t, err)
		for item, amount := range map[id.ItemID]int64{lamp: 40, chair: 60} {
			_, err := ledger.debit(ctx, models.LedgerEntry{WalletID: walletID, PosOrder: order, Item: item, Used: decimal.NewFromInt(amount)})
			require.NoError(t, err)
		}
		before, err := ledger.Balance(ctx, walletID)
		require.NoError(t, err)

		refunded, err := ledger.Refund(ctx, walletID, lamp, []id.PosOrderID{order}, "Gift List Return: Night lamp")
		require.NoError(t, err)
		assert.True(t, refunded.Equal(decimal.NewFromInt(40)), refunded.String())

		after, err := ledger.Balance(ctx, walletID)
		require.NoError(t, err)
		assert.True(t, after.Equal(before.Add(decimal.NewFromInt(40))))
	})

	t.Run("refund with no debits credits nothing", func(t *testing.T) {
		refunded, err := ledger.Refund(ctx, walletID, id.ItemID(uuid.New()), []id.PosOrderID{id.PosOrderID(uuid.New())}, "return")
		require.NoError(t, err)
		assert.True(t, refunded.IsZero())
	})

	t.Run("missing partner", func(t *testing.T) {
		_, err := ledger.EnsureForPartner(ctx, id.PartnerID{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
