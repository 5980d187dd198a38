package list

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

// PostgresStore persists lists in gift_lists.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

const listColumns = `id, name, beneficiary_id, second_beneficiary_id, list_type, expected_date,
	state, wallet_id, advisor_id, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, l *models.List) error {
	query := `INSERT INTO gift_lists (` + listColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := s.execer(ctx).ExecContext(ctx, query, listArgs(l)...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create list: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create list: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, l *models.List) error {
	query := `
		UPDATE gift_lists SET
			name = $2, beneficiary_id = $3, second_beneficiary_id = $4, list_type = $5,
			expected_date = $6, state = $7, wallet_id = $8, advisor_id = $9,
			created_at = $10, updated_at = $11
		WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, listArgs(l)...)
	if err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("list %s: %w", l.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, listID id.ListID) (*models.List, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM gift_lists WHERE id = $1`, uuid.UUID(listID))
	l, err := scanList(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("list %s: %w", listID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find list: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) Find(ctx context.Context, f models.ListFilter) ([]*models.List, error) {
	var (
		where []string
		args  []any
	)
	if !f.Beneficiary.IsNil() {
		args = append(args, uuid.UUID(f.Beneficiary))
		where = append(where, fmt.Sprintf("beneficiary_id = $%d", len(args)))
	}
	if !f.Wallet.IsNil() {
		args = append(args, uuid.UUID(f.Wallet))
		where = append(where, fmt.Sprintf("wallet_id = $%d", len(args)))
	}
	if f.Name != "" {
		args = append(args, f.Name)
		where = append(where, fmt.Sprintf("name = $%d", len(args)))
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, st := range f.States {
			states[i] = string(st)
		}
		args = append(args, pq.Array(states))
		where = append(where, fmt.Sprintf("state = ANY($%d)", len(args)))
	}

	query := `SELECT ` + listColumns + ` FROM gift_lists`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find lists: %w", err)
	}
	defer rows.Close()

	var out []*models.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanList(row rowScanner) (*models.List, error) {
	var (
		l                       models.List
		listID, beneficiary     uuid.UUID
		second, wallet, advisor uuid.NullUUID
		listType, state         string
		expected                sql.NullTime
	)
	if err := row.Scan(&listID, &l.Name, &beneficiary, &second, &listType, &expected,
		&state, &wallet, &advisor, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.ID = id.ListID(listID)
	l.Beneficiary = id.PartnerID(beneficiary)
	l.SecondBeneficiary = id.PartnerID(second.UUID)
	l.Type = models.ListType(listType)
	l.State = models.ListState(state)
	l.WalletID = id.WalletID(wallet.UUID)
	l.Advisor = id.OperatorID(advisor.UUID)
	if expected.Valid {
		t := expected.Time
		l.ExpectedDate = &t
	}
	return &l, nil
}

func listArgs(l *models.List) []any {
	return []any{
		uuid.UUID(l.ID),
		l.Name,
		uuid.UUID(l.Beneficiary),
		nullUUID(uuid.UUID(l.SecondBeneficiary)),
		string(l.Type),
		l.ExpectedDate,
		string(l.State),
		nullUUID(uuid.UUID(l.WalletID)),
		nullUUID(uuid.UUID(l.Advisor)),
		l.CreatedAt,
		l.UpdatedAt,
	}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
