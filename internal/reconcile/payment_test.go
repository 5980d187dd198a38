package reconcile

import (
	"github.com/shopspring/decimal"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	id "giftlist/pkg/domain"
)

func (s *ReconcileSuite) paidOrder(order erp.PosOrder) *erp.PosOrder {
	created, err := s.sim.POS().CreateOrder(s.ctx, order)
	s.Require().NoError(err)
	paid, err := s.sim.POS().MarkPaid(s.ctx, created.ID)
	s.Require().NoError(err)
	return paid
}

func (s *ReconcileSuite) TestMatchPayment() {
	it := s.addItem()
	sale, err := s.sim.Sales().Order(s.ctx, it.Refs.SaleOrder)
	s.Require().NoError(err)
	hundred := decimal.NewFromInt(100)

	down := s.paidOrder(erp.PosOrder{
		Partner: s.beneficiary.ID,
		Lines: []erp.PosLine{{
			ProductName:   "Down payment",
			Qty:           decimal.NewFromInt(1),
			PriceUnit:     hundred,
			Subtotal:      hundred,
			SaleOrigin:    sale.ID,
			IsDownPayment: true,
		}},
		Payments: []erp.Payment{{Method: "card", Amount: hundred}},
	})

	s.Run("down payment line matches by origin", func() {
		matches, err := s.svc.Payments.Match(s.ctx, down)
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal(PaymentDown, matches[0].Kind)
		s.Equal("sale_origin", matches[0].Strategy)
		s.Equal(it.ID, matches[0].Item.ID)
		s.True(matches[0].PaidForSale.Equal(hundred))
	})

	s.Run("explicit sale link matches every item of the sale", func() {
		linked, err := s.sim.POS().CreateOrder(s.ctx, erp.PosOrder{
			Partner:      s.beneficiary.ID,
			SaleOrderIDs: []id.SaleOrderID{sale.ID},
			Lines: []erp.PosLine{{
				ProductName: "Gift",
				Qty:         decimal.NewFromInt(1),
				PriceUnit:   hundred,
				Subtotal:    hundred,
			}},
			Payments: []erp.Payment{{Method: "card", Amount: hundred}},
		})
		s.Require().NoError(err)

		matches, err := s.svc.Payments.Match(s.ctx, linked)
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal("sale_order", matches[0].Strategy)
		s.Equal(it.ID, matches[0].Item.ID)
		s.Equal(sale.ID, matches[0].Sale.ID)
	})

	s.Run("sales are detected from line origins", func() {
		sales, err := s.svc.Payments.detectSales(s.ctx, down)
		s.Require().NoError(err)
		s.Require().Len(sales, 1)
		s.Equal(sale.ID, sales[0].ID)
	})

	_, err = s.gifts.LinkDocuments(s.ctx, it.ID, func(it *models.Item) (bool, error) {
		it.Refs.DownPayment = down.ID
		return true, nil
	})
	s.Require().NoError(err)

	s.Run("a down payment is never matched twice", func() {
		matches, err := s.svc.Payments.Match(s.ctx, down)
		s.Require().NoError(err)
		s.Empty(matches)
	})

	final := s.paidOrder(erp.PosOrder{
		Partner: s.beneficiary.ID,
		Lines: []erp.PosLine{
			{
				Product:     s.stroller.ID,
				ProductName: "Stroller",
				Qty:         decimal.NewFromInt(1),
				PriceUnit:   decimal.NewFromInt(400),
				Subtotal:    decimal.NewFromInt(400),
				SaleLine:    it.Refs.SaleLine,
			},
			{
				ProductName:   "Down payment",
				Qty:           decimal.NewFromInt(-1),
				PriceUnit:     hundred,
				Subtotal:      hundred.Neg(),
				SaleOrigin:    sale.ID,
				IsDownPayment: true,
			},
		},
		Payments: []erp.Payment{{Method: "card", Amount: decimal.NewFromInt(300)}},
	})

	s.Run("settling order is the final payment", func() {
		matches, err := s.svc.Payments.Match(s.ctx, final)
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal(PaymentFinal, matches[0].Kind)
		s.Equal("sale_line", matches[0].Strategy)
		s.True(matches[0].PaidForSale.Equal(decimal.NewFromInt(500)))
	})

	s.Run("settlement rewrite keeps the paid figure", func() {
		rewritten := *final
		rewritten.Payments = nil
		rewritten.Lines = append(rewritten.Lines, erp.PosLine{
			ProductName:   "eWallet",
			Qty:           decimal.NewFromInt(-1),
			PriceUnit:     decimal.NewFromInt(300),
			Subtotal:      decimal.NewFromInt(-300),
			IsWalletDebit: true,
		})
		rewritten.AmountTotal = rewritten.LinesTotal()
		s.Require().NoError(s.sim.POS().UpdateOrder(s.ctx, &rewritten))

		paid, err := s.svc.Payments.TotalPaidForSale(s.ctx, sale, nil)
		s.Require().NoError(err)
		s.True(paid.Equal(decimal.NewFromInt(500)), paid.String())
	})
}

func (s *ReconcileSuite) TestMatchPaymentByPartnerAmount() {
	it := s.addItem()

	s.Run("a quarter of the total is a down payment", func() {
		order := s.paidOrder(erp.PosOrder{
			Partner:  s.beneficiary.ID,
			Lines:    []erp.PosLine{{ProductName: "Deposit", Qty: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(98)}},
			Payments: []erp.Payment{{Method: "cash", Amount: decimal.NewFromInt(98)}},
		})

		matches, err := s.svc.Payments.Match(s.ctx, order)
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal(it.ID, matches[0].Item.ID)
		s.Equal("partner_amount", matches[0].Strategy)
		s.Equal(PaymentDown, matches[0].Kind)
	})

	s.Run("an unrelated amount matches nothing", func() {
		order := s.paidOrder(erp.PosOrder{
			Partner: s.beneficiary.ID,
			Lines:   []erp.PosLine{{ProductName: "Misc", Qty: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(42)}},
		})

		matches, err := s.svc.Payments.Match(s.ctx, order)
		s.Require().NoError(err)
		s.Empty(matches)
	})
}
