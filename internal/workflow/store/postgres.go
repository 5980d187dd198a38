package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	txcontext "giftlist/pkg/platform/tx"
)

// Postgres writes each action to workflow_actions and, in the same
// transaction, to workflow_outbox for the Kafka relay.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, action models.Action) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal workflow action: %w", err)
	}

	if tx, ok := txcontext.From(ctx); ok {
		return appendTx(ctx, tx, action, payload)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workflow tx: %w", err)
	}
	if err := appendTx(ctx, tx, action, payload); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow tx: %w", err)
	}
	return nil
}

func appendTx(ctx context.Context, tx *sql.Tx, a models.Action, payload []byte) error {
	var amount any
	if a.Amount != nil {
		amount = *a.Amount
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_actions (
			id, document_type, document_ref, res_id, action_type, source,
			state_from, state_to, partner_id, amount, provider, note, request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(a.ID),
		string(a.DocumentType),
		a.DocumentRef,
		uuid.NullUUID{UUID: a.ResID, Valid: a.ResID != uuid.Nil},
		string(a.ActionType),
		string(a.Source),
		a.StateFrom,
		a.StateTo,
		uuid.NullUUID{UUID: uuid.UUID(a.Partner), Valid: !a.Partner.IsNil()},
		amount,
		a.Provider,
		a.Note,
		a.RequestID,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow action: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_outbox (id, action_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), uuid.UUID(a.ID), string(a.ActionType), payload, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow outbox entry: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter models.Filter) ([]models.Action, error) {
	query := `
		SELECT id, document_type, document_ref, res_id, action_type, source,
			   COALESCE(state_from, ''), COALESCE(state_to, ''), partner_id, amount,
			   COALESCE(provider, ''), COALESCE(note, ''), COALESCE(request_id, ''), created_at
		FROM workflow_actions
		WHERE ($1 = '' OR document_type = $1)
		  AND ($2::uuid IS NULL OR res_id = $2)
		ORDER BY created_at DESC, id`
	args := []any{
		string(filter.DocumentType),
		uuid.NullUUID{UUID: filter.ResID, Valid: filter.ResID != uuid.Nil},
	}
	if filter.Limit > 0 {
		query += " LIMIT $3"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query workflow actions: %w", err)
	}
	defer rows.Close()

	var out []models.Action
	for rows.Next() {
		var (
			a                   models.Action
			actionID            uuid.UUID
			docType, actionType string
			source              string
			resID, partner      uuid.NullUUID
			amount              decimal.NullDecimal
		)
		if err := rows.Scan(&actionID, &docType, &a.DocumentRef, &resID, &actionType, &source,
			&a.StateFrom, &a.StateTo, &partner, &amount,
			&a.Provider, &a.Note, &a.RequestID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow action: %w", err)
		}
		a.ID = id.ActionID(actionID)
		a.DocumentType = models.DocumentType(docType)
		a.ActionType = models.ActionType(actionType)
		a.Source = models.ActionSource(source)
		a.ResID = resID.UUID
		a.Partner = id.PartnerID(partner.UUID)
		if amount.Valid {
			v := amount.Decimal
			a.Amount = &v
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow actions: %w", err)
	}
	return out, nil
}

// Pending returns unpublished outbox rows, oldest first.
func (s *Postgres) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_id, event_type, payload, created_at
		FROM workflow_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query workflow outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ActionID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow outbox: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, u := range ids {
		raw[i] = u.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE workflow_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark workflow outbox published: %w", err)
	}
	return nil
}
