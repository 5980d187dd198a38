package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"giftlist/internal/walletpay/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

// Postgres keeps wallets in the wallets table and the ledger in
// wallet_ledger. Apply locks the wallet row for the length of the
// transaction so balance and ledger never diverge.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const walletColumns = `id, partner_id, program, balance, created_at, updated_at`

func (s *Postgres) EnsureForPartner(ctx context.Context, partner id.PartnerID, program string, now time.Time) (*models.Wallet, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wallets (id, partner_id, program, balance, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		ON CONFLICT (partner_id) DO NOTHING`,
		uuid.New(), uuid.UUID(partner), program, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}
	return s.ByPartner(ctx, partner)
}

func (s *Postgres) ByPartner(ctx context.Context, partner id.PartnerID) (*models.Wallet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE partner_id = $1`, uuid.UUID(partner))
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("wallet for partner %s: %w", partner, err)
	}
	return w, nil
}

func (s *Postgres) ByID(ctx context.Context, walletID id.WalletID) (*models.Wallet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, uuid.UUID(walletID))
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", walletID, err)
	}
	return w, nil
}

// Apply appends the entry and moves the balance inside one transaction
// holding the wallet row lock.
func (s *Postgres) Apply(ctx context.Context, entry models.LedgerEntry) (*models.Wallet, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin wallet tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, uuid.UUID(entry.WalletID))
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("lock wallet %s: %w", entry.WalletID, err)
	}
	balance := w.Balance.Add(entry.Delta())
	if balance.IsNegative() {
		return nil, fmt.Errorf("wallet %s balance %s cannot cover %s: %w",
			entry.WalletID, w.Balance.StringFixed(2), entry.Used.StringFixed(2), sentinel.ErrInvalidState)
	}
	if entry.ID.IsNil() {
		entry.ID = id.LedgerEntryID(uuid.New())
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(entry.WalletID), balance, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("update wallet balance: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallet_ledger (id, wallet_id, pos_order_id, item_id, issued, used, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.WalletID),
		uuid.NullUUID{UUID: uuid.UUID(entry.PosOrder), Valid: !entry.PosOrder.IsNil()},
		uuid.NullUUID{UUID: uuid.UUID(entry.Item), Valid: !entry.Item.IsNil()},
		entry.Issued,
		entry.Used,
		entry.Description,
		entry.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit wallet tx: %w", err)
	}

	w.Balance = balance
	w.UpdatedAt = entry.CreatedAt
	return w, nil
}

const ledgerColumns = `id, wallet_id, pos_order_id, item_id, issued, used, description, created_at`

func (s *Postgres) Entries(ctx context.Context, walletID id.WalletID) ([]models.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ledgerColumns+` FROM wallet_ledger
		WHERE wallet_id = $1 ORDER BY created_at, id`, uuid.UUID(walletID))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return collectEntries(rows)
}

func (s *Postgres) EntriesForOrders(ctx context.Context, orders []id.PosOrderID) ([]models.LedgerEntry, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, uuid.UUID(o))
	}
	rows, err := s.pool.Query(ctx, `SELECT `+ledgerColumns+` FROM wallet_ledger
		WHERE pos_order_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query ledger by orders: %w", err)
	}
	return collectEntries(rows)
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var (
		w                 models.Wallet
		walletID, partner uuid.UUID
	)
	err := row.Scan(&walletID, &partner, &w.Program, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.ID = id.WalletID(walletID)
	w.Partner = id.PartnerID(partner)
	return &w, nil
}

func collectEntries(rows pgx.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()
	var out []models.LedgerEntry
	for rows.Next() {
		var (
			e            models.LedgerEntry
			entryID, wID uuid.UUID
			order, item  uuid.NullUUID
			issued, used decimal.Decimal
		)
		if err := rows.Scan(&entryID, &wID, &order, &item, &issued, &used, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.ID = id.LedgerEntryID(entryID)
		e.WalletID = id.WalletID(wID)
		if order.Valid {
			e.PosOrder = id.PosOrderID(order.UUID)
		}
		if item.Valid {
			e.Item = id.ItemID(item.UUID)
		}
		e.Issued = issued
		e.Used = used
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return out, nil
}
