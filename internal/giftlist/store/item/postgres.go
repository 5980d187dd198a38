package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"giftlist/internal/giftlist/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
	txcontext "giftlist/pkg/platform/tx"
)

// PostgresStore persists items in gift_list_items. It is pure I/O; state
// derivation and guards live in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

const itemColumns = `
	id, list_id, product_id, product_name, price_unit, discount, sequence, state,
	is_cancelled, cancel_reason, cancel_detail, cancelled_at, paid_by,
	sale_order_id, sale_line_id, purchase_order_id, receipt_id, delivery_id, holding_id,
	down_payment_id, final_payment_id, refunded_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, it *models.Item) error {
	query := `INSERT INTO gift_list_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`
	_, err := s.execer(ctx).ExecContext(ctx, query, itemArgs(it)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create item: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, it *models.Item) error {
	query := `
		UPDATE gift_list_items SET
			list_id = $2, product_id = $3, product_name = $4, price_unit = $5, discount = $6,
			sequence = $7, state = $8, is_cancelled = $9, cancel_reason = $10, cancel_detail = $11,
			cancelled_at = $12, paid_by = $13, sale_order_id = $14, sale_line_id = $15,
			purchase_order_id = $16, receipt_id = $17, delivery_id = $18, holding_id = $19,
			down_payment_id = $20, final_payment_id = $21, refunded_at = $22,
			created_at = $23, updated_at = $24
		WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, itemArgs(it)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update item: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", it.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, itemID id.ItemID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM gift_list_items WHERE id = $1`, uuid.UUID(itemID))
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM gift_list_items WHERE id = $1`, uuid.UUID(itemID))
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return it, nil
}

func (s *PostgresStore) Find(ctx context.Context, f models.ItemFilter) ([]*models.Item, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if len(f.ListIDs) > 0 {
		ids := make([]string, len(f.ListIDs))
		for i, l := range f.ListIDs {
			ids[i] = l.String()
		}
		add("list_id = ANY($%d::uuid[])", pq.Array(ids))
	}
	if !f.Product.IsNil() {
		add("product_id = $%d", uuid.UUID(f.Product))
	}
	if !f.SaleOrder.IsNil() {
		add("sale_order_id = $%d", uuid.UUID(f.SaleOrder))
	}
	if !f.SaleLine.IsNil() {
		add("sale_line_id = $%d", uuid.UUID(f.SaleLine))
	}
	if !f.Purchase.IsNil() {
		add("purchase_order_id = $%d", uuid.UUID(f.Purchase))
	}
	if !f.Receipt.IsNil() {
		add("receipt_id = $%d", uuid.UUID(f.Receipt))
	}
	if !f.Delivery.IsNil() {
		add("delivery_id = $%d", uuid.UUID(f.Delivery))
	}
	if !f.Holding.IsNil() {
		add("holding_id = $%d", uuid.UUID(f.Holding))
	}
	if !f.PaymentOrder.IsNil() {
		args = append(args, uuid.UUID(f.PaymentOrder))
		where = append(where, fmt.Sprintf("(down_payment_id = $%d OR final_payment_id = $%d)", len(args), len(args)))
	}
	if f.DeliveryUnset {
		where = append(where, "delivery_id IS NULL")
	}
	if f.SaleOrderSet {
		where = append(where, "sale_order_id IS NOT NULL")
	}
	if f.ExcludeCancelled {
		where = append(where, "NOT is_cancelled")
	}

	query := `SELECT ` + itemColumns + ` FROM gift_list_items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sequence, created_at, id"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	defer rows.Close()

	var out []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		it                                             models.Item
		itemID, listID, productID                      uuid.UUID
		state                                          string
		cancelReason, cancelDetail                     sql.NullString
		cancelledAt, refundedAt                        sql.NullTime
		paidBy, saleOrder, saleLine, purchase, receipt uuid.NullUUID
		delivery, holding, downPayment, finalPayment   uuid.NullUUID
	)
	err := row.Scan(
		&itemID, &listID, &productID, &it.ProductName, &it.PriceUnit, &it.Discount, &it.Sequence, &state,
		&it.IsCancelled, &cancelReason, &cancelDetail, &cancelledAt, &paidBy,
		&saleOrder, &saleLine, &purchase, &receipt, &delivery, &holding,
		&downPayment, &finalPayment, &refundedAt, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.ID = id.ItemID(itemID)
	it.ListID = id.ListID(listID)
	it.ProductID = id.ProductID(productID)
	it.State = models.State(state)
	it.CancelReason = models.CancelReason(cancelReason.String)
	it.CancelDetail = cancelDetail.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		it.CancelledAt = &t
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		it.RefundedAt = &t
	}
	it.PaidBy = id.PartnerID(paidBy.UUID)
	it.Refs = models.DocumentRefs{
		SaleOrder:    id.SaleOrderID(saleOrder.UUID),
		SaleLine:     id.SaleLineID(saleLine.UUID),
		Purchase:     id.PurchaseOrderID(purchase.UUID),
		Receipt:      id.TransferID(receipt.UUID),
		Delivery:     id.TransferID(delivery.UUID),
		Holding:      id.TransferID(holding.UUID),
		DownPayment:  id.PosOrderID(downPayment.UUID),
		FinalPayment: id.PosOrderID(finalPayment.UUID),
	}
	return &it, nil
}

func itemArgs(it *models.Item) []any {
	return []any{
		uuid.UUID(it.ID),
		uuid.UUID(it.ListID),
		uuid.UUID(it.ProductID),
		it.ProductName,
		it.PriceUnit,
		it.Discount,
		it.Sequence,
		string(it.State),
		it.IsCancelled,
		nullString(string(it.CancelReason)),
		nullString(it.CancelDetail),
		it.CancelledAt,
		nullUUID(uuid.UUID(it.PaidBy)),
		nullUUID(uuid.UUID(it.Refs.SaleOrder)),
		nullUUID(uuid.UUID(it.Refs.SaleLine)),
		nullUUID(uuid.UUID(it.Refs.Purchase)),
		nullUUID(uuid.UUID(it.Refs.Receipt)),
		nullUUID(uuid.UUID(it.Refs.Delivery)),
		nullUUID(uuid.UUID(it.Refs.Holding)),
		nullUUID(uuid.UUID(it.Refs.DownPayment)),
		nullUUID(uuid.UUID(it.Refs.FinalPayment)),
		it.RefundedAt,
		it.CreatedAt,
		it.UpdatedAt,
	}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
