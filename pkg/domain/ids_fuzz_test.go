//go:build go1.18

package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	dErrors "giftlist/pkg/domain-errors"
)

// parsers reduces every typed parser to the UUID it accepted.
var parsers = map[string]func(string) (uuid.UUID, error){
	"item":           asUUID(ParseItemID),
	"list":           asUUID(ParseListID),
	"wallet":         asUUID(ParseWalletID),
	"partner":        asUUID(ParsePartnerID),
	"product":        asUUID(ParseProductID),
	"sale order":     asUUID(ParseSaleOrderID),
	"sale line":      asUUID(ParseSaleLineID),
	"purchase order": asUUID(ParsePurchaseOrderID),
	"purchase line":  asUUID(ParsePurchaseLineID),
	"transfer":       asUUID(ParseTransferID),
	"move":           asUUID(ParseMoveID),
	"POS order":      asUUID(ParsePosOrderID),
	"POS line":       asUUID(ParsePosLineID),
	"ledger entry":   asUUID(ParseLedgerEntryID),
	"action":         asUUID(ParseActionID),
	"operator":       asUUID(ParseOperatorID),
}

func asUUID[T ~[16]byte](parse func(string) (T, error)) func(string) (uuid.UUID, error) {
	return func(s string) (uuid.UUID, error) {
		v, err := parse(s)
		return uuid.UUID(v), err
	}
}

func seedIDs(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("  550e8400-e29b-41d4-a716-446655440000\n")
	f.Add("{550e8400-e29b-41d4-a716-446655440000}")
	f.Add("urn:uuid:550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0xff, 0xfe, 0x00}))
	f.Add(strings.Repeat("a", maxIDLength+1))
}

// FuzzParseItemID checks the item parser never accepts the nil UUID and that
// what it accepts survives the text form used in URLs and JSON.
func FuzzParseItemID(f *testing.F) {
	seedIDs(f)

	f.Fuzz(func(t *testing.T, input string) {
		itemID, err := ParseItemID(input)
		if err != nil {
			if !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
				t.Errorf("rejection of %q is not invalid input: %v", input, err)
			}
			return
		}
		if itemID.IsNil() {
			t.Fatalf("accepted nil item ID from %q", input)
		}
		if len(strings.TrimSpace(input)) > maxIDLength {
			t.Errorf("accepted %d characters", len(input))
		}

		text, err := itemID.MarshalText()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded ItemID
		if err := decoded.UnmarshalText(text); err != nil || decoded != itemID {
			t.Errorf("text round trip of %s gave %s, %v", itemID, decoded, err)
		}
		again, err := ParseItemID(itemID.String())
		if err != nil || again != itemID {
			t.Errorf("reparse of %s gave %s, %v", itemID, again, err)
		}
	})
}

// FuzzParseAllIDs checks every identifier kind agrees on what it accepts and
// on the UUID it yields, so a link copied from one document to another never
// changes meaning.
func FuzzParseAllIDs(f *testing.F) {
	seedIDs(f)

	f.Fuzz(func(t *testing.T, input string) {
		want, wantErr := ParseItemID(input)
		for kind, parse := range parsers {
			got, err := parse(input)
			if (err == nil) != (wantErr == nil) {
				t.Fatalf("%s parser disagrees with item parser on %q: %v vs %v", kind, input, err, wantErr)
			}
			if err != nil {
				if !strings.Contains(dErrors.MessageOf(err), kind) {
					t.Errorf("%s rejection does not name the kind: %q", kind, dErrors.MessageOf(err))
				}
				continue
			}
			if got != uuid.UUID(want) {
				t.Errorf("%s parsed %q as %s, item parser as %s", kind, input, got, want)
			}
		}
	})
}
