package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ShopPulse/internal/deliverylog"
	"ShopPulse/internal/models"
)

const upsertDelivery = `
INSERT INTO email_deliveries
	(job_id, recipient, subject, template, priority, max_retries, metadata, created_at,
	 status, attempts, error, message_id, sent_at, completed_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (job_id) DO UPDATE
SET status       = EXCLUDED.status,
    attempts     = EXCLUDED.attempts,
    error        = COALESCE(EXCLUDED.error, email_deliveries.error),
    message_id   = COALESCE(EXCLUDED.message_id, email_deliveries.message_id),
    sent_at      = COALESCE(EXCLUDED.sent_at, email_deliveries.sent_at),
    completed_at = COALESCE(EXCLUDED.completed_at, email_deliveries.completed_at),
    updated_at   = EXCLUDED.updated_at`

const selectDeliveries = `
SELECT job_id, recipient, subject, template, status, priority, attempts, max_retries,
       error, message_id, metadata, sent_at, completed_at, created_at, updated_at
FROM email_deliveries`

// Store keeps the delivery log in PostgreSQL.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, conn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Upsert(ctx context.Context, u deliverylog.Update) error {
	metadata, err := marshalMetadata(u.Metadata)
	if err != nil {
		return err
	}

	_, err = s.Pool.Exec(ctx, upsertDelivery,
		u.JobID,
		u.Recipient,
		u.Subject,
		u.Template,
		u.Priority,
		u.MaxRetries,
		metadata,
		u.CreatedAt,
		string(u.Status),
		u.Attempts,
		nullString(u.Error),
		nullString(u.MessageID),
		u.SentAt,
		u.CompletedAt,
		u.UpdatedAt,
	)
	return err
}

func (s *Store) List(ctx context.Context, f deliverylog.Filter) ([]models.Delivery, error) {
	query, args := listQuery(f)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Delivery
	for rows.Next() {
		var (
			d         models.Delivery
			status    string
			errMsg    *string
			messageID *string
			metadata  []byte
		)

		if err := rows.Scan(
			&d.JobID, &d.Recipient, &d.Subject, &d.Template, &status,
			&d.Priority, &d.Attempts, &d.MaxRetries,
			&errMsg, &messageID, &metadata,
			&d.SentAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}

		d.Status = models.JobStatus(status)
		if errMsg != nil {
			d.Error = *errMsg
		}
		if messageID != nil {
			d.MessageID = *messageID
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", d.JobID, err)
			}
		}

		out = append(out, d)
	}

	return out, rows.Err()
}

func listQuery(f deliverylog.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)

	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Recipient != "" {
		args = append(args, f.Recipient)
		where = append(where, fmt.Sprintf("lower(recipient) = lower($%d)", len(args)))
	}
	if f.Template != "" {
		args = append(args, f.Template)
		where = append(where, fmt.Sprintf("template = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(selectDeliveries)
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\nORDER BY created_at DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, "\nLIMIT $%d", len(args))
	}

	return b.String(), args
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
