package handler

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"giftlist/internal/giftlist/models"
	giftsvc "giftlist/internal/giftlist/service"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// CreateListRequest is the body of POST /lists.
type CreateListRequest struct {
	Name              string `json:"name"`
	Beneficiary       string `json:"beneficiary_id"`
	SecondBeneficiary string `json:"second_beneficiary_id,omitempty"`
	Type              string `json:"type"`
	ExpectedDate      string `json:"expected_date,omitempty"`

	parsed giftsvc.CreateListRequest
}

func (r *CreateListRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	beneficiary, err := id.ParsePartnerID(r.Beneficiary)
	if err != nil {
		return err
	}
	r.parsed = giftsvc.CreateListRequest{
		Name:        r.Name,
		Beneficiary: beneficiary,
		Type:        models.ListTypeBirth,
	}
	if r.SecondBeneficiary != "" {
		if r.parsed.SecondBeneficiary, err = id.ParsePartnerID(r.SecondBeneficiary); err != nil {
			return err
		}
	}
	if r.Type != "" {
		t := models.ListType(r.Type)
		if !t.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "unknown list type %q", r.Type)
		}
		r.parsed.Type = t
	}
	if r.ExpectedDate != "" {
		d, err := time.Parse(dateLayout, r.ExpectedDate)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "expected_date must be YYYY-MM-DD")
		}
		r.parsed.ExpectedDate = &d
	}
	return nil
}

// UpdateListRequest is the body of PATCH /lists/{id}. Absent fields are left alone.
type UpdateListRequest struct {
	Name              *string `json:"name,omitempty"`
	Beneficiary       *string `json:"beneficiary_id,omitempty"`
	SecondBeneficiary *string `json:"second_beneficiary_id,omitempty"`
	Type              *string `json:"type,omitempty"`
	ExpectedDate      *string `json:"expected_date,omitempty"`

	parsed giftsvc.ListPatch
}

func (r *UpdateListRequest) Validate() error {
	r.parsed = giftsvc.ListPatch{Name: r.Name}
	if r.Beneficiary != nil {
		p, err := id.ParsePartnerID(*r.Beneficiary)
		if err != nil {
			return err
		}
		r.parsed.Beneficiary = &p
	}
	if r.SecondBeneficiary != nil {
		var p id.PartnerID
		if *r.SecondBeneficiary != "" {
			var err error
			if p, err = id.ParsePartnerID(*r.SecondBeneficiary); err != nil {
				return err
			}
		}
		r.parsed.SecondBeneficiary = &p
	}
	if r.Type != nil {
		t := models.ListType(*r.Type)
		if !t.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "unknown list type %q", *r.Type)
		}
		r.parsed.Type = &t
	}
	if r.ExpectedDate != nil {
		d, err := time.Parse(dateLayout, *r.ExpectedDate)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "expected_date must be YYYY-MM-DD")
		}
		r.parsed.ExpectedDate = &d
	}
	return nil
}

// CompleteListRequest confirms completing a list that still has open items.
type CompleteListRequest struct {
	Confirm bool `json:"confirm"`
}

// AddItemRequest is the body of POST /lists/{id}/items.
type AddItemRequest struct {
	ProductID string           `json:"product_id"`
	PriceUnit *decimal.Decimal `json:"price_unit,omitempty"`
	Discount  decimal.Decimal  `json:"discount"`
	Sequence  int              `json:"sequence"`

	product id.ProductID
}

func (r *AddItemRequest) Validate() error {
	product, err := id.ParseProductID(r.ProductID)
	if err != nil {
		return err
	}
	r.product = product
	if r.PriceUnit != nil && r.PriceUnit.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "price_unit cannot be negative")
	}
	if r.Discount.IsNegative() || r.Discount.GreaterThan(decimal.NewFromInt(100)) {
		return dErrors.New(dErrors.CodeValidation, "discount must be between 0 and 100")
	}
	return nil
}

// CancelItemRequest is the body of POST /items/{id}/cancel.
type CancelItemRequest struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`

	reason models.CancelReason
}

func (r *CancelItemRequest) Validate() error {
	reason := models.CancelReason(strings.TrimSpace(r.Reason))
	if reason == "" {
		reason = models.CancelOther
	}
	if !reason.IsValid() || reason == models.CancelReturned {
		return dErrors.Newf(dErrors.CodeValidation, "unknown cancel reason %q", r.Reason)
	}
	r.reason = reason
	r.Detail = strings.TrimSpace(r.Detail)
	return nil
}

// itemPatch turns a raw PATCH body into the service patch. Every key of the
// body is reported in Fields so the service can refuse non-editable ones.
func itemPatch(raw map[string]json.RawMessage) (giftsvc.ItemPatch, error) {
	var patch giftsvc.ItemPatch
	for field, value := range raw {
		patch.Fields = append(patch.Fields, field)
		switch field {
		case "sequence":
			var seq int
			if err := json.Unmarshal(value, &seq); err != nil {
				return patch, dErrors.New(dErrors.CodeValidation, "sequence must be an integer")
			}
			patch.Sequence = &seq
		case "paid_by":
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return patch, dErrors.New(dErrors.CodeValidation, "paid_by must be a partner ID")
			}
			p, err := id.ParsePartnerID(s)
			if err != nil {
				return patch, err
			}
			patch.PaidBy = &p
		}
	}
	sort.Strings(patch.Fields)
	if len(patch.Fields) == 0 {
		return patch, dErrors.New(dErrors.CodeBadRequest, "nothing to update")
	}
	return patch, nil
}
