package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "giftlist/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseItemID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseItemID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseItemID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseItemID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ItemID(validUUID), id)
		assert.False(t, id.IsNil())
	})
}

func TestParseID_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE gift_list_items;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransferID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestZeroValueIsNil(t *testing.T) {
	assert.True(t, ItemID{}.IsNil())
	assert.True(t, TransferID{}.IsNil())
	assert.True(t, PosOrderID{}.IsNil())
	assert.False(t, WalletID(uuid.New()).IsNil())
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Item     ItemID     `json:"item_id"`
		Delivery TransferID `json:"delivery_id"`
	}
	in := payload{Item: ItemID(uuid.New()), Delivery: TransferID(uuid.New())}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), in.Item.String())

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errItem := ParseItemID(validUUID)
		_, errList := ParseListID(validUUID)
		_, errWallet := ParseWalletID(validUUID)
		_, errTransfer := ParseTransferID(validUUID)
		_, errPosOrder := ParsePosOrderID(validUUID)

		require.NoError(t, errItem)
		require.NoError(t, errList)
		require.NoError(t, errWallet)
		require.NoError(t, errTransfer)
		require.NoError(t, errPosOrder)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errItem := ParseItemID(input)
			_, errList := ParseListID(input)
			_, errWallet := ParseWalletID(input)
			_, errTransfer := ParseTransferID(input)
			_, errPosOrder := ParsePosOrderID(input)

			require.Error(t, errItem)
			require.Error(t, errList)
			require.Error(t, errWallet)
			require.Error(t, errTransfer)
			require.Error(t, errPosOrder)
		})
	}
}
