package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"guild-sync/backend/internal/syncevent/domain"
)

const eventColumns = `id, domain, tag, team_id, payload, created_at, processed_at, error, attempts, failed_at`

type PostgresRepository struct {
	db          *sql.DB
	maxAttempts int
}

// NewPostgresRepository returns an outbox repository backed by the sync_events table.
// maxAttempts caps failed deliveries: when a failure brings attempts to the cap the event is closed as failed.
// Zero or negative means failed events stay pending and are retried on every poll.
func NewPostgresRepository(db *sql.DB, maxAttempts int) *PostgresRepository {
	return &PostgresRepository{db: db, maxAttempts: maxAttempts}
}

// Append inserts row as a pending event. A missing ID gets a new UUID and a zero CreatedAt becomes now.
func (r *PostgresRepository) Append(ctx context.Context, row *domain.Row) error {
	if row == nil {
		return errors.New("outbox: nil row")
	}
	if !row.Domain.Valid() {
		return fmt.Errorf("outbox: invalid domain %q", row.Domain)
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_events (id, domain, tag, team_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		row.ID, string(row.Domain), string(row.Tag), row.TeamID, string(row.Payload), row.CreatedAt)
	return err
}

// GetEvent returns the event for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetEvent(ctx context.Context, id string) (*domain.Row, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM sync_events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *PostgresRepository) GetUnprocessedEvents(ctx context.Context, d domain.Domain, limit int) ([]*domain.Row, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM sync_events
		WHERE domain = $1 AND processed_at IS NULL
		ORDER BY created_at, id
		LIMIT $2`, string(d), limit)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// ClaimUnprocessedEvents leases up to limit pending events to workerID in one conditional update.
// Rows leased to another worker are skipped until their lease expires; locked rows are skipped too.
func (r *PostgresRepository) ClaimUnprocessedEvents(ctx context.Context, d domain.Domain, workerID string, lease time.Duration, limit int) ([]*domain.Row, error) {
	if workerID == "" {
		return nil, errors.New("outbox: worker id is required to claim events")
	}
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	rows, err := r.db.QueryContext(ctx, `
		UPDATE sync_events
		SET claimed_by = $2, claimed_until = now() + ($3::bigint * interval '1 millisecond')
		WHERE id IN (
			SELECT id FROM sync_events
			WHERE domain = $1 AND processed_at IS NULL
			  AND (claimed_by IS NULL OR claimed_by = $2 OR claimed_until < now())
			ORDER BY created_at, id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+eventColumns, string(d), workerID, lease.Milliseconds(), limit)
	if err != nil {
		return nil, err
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	slices.SortStableFunc(out, func(a, b *domain.Row) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *PostgresRepository) MarkEventProcessed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_events
		SET processed_at = now(), claimed_by = NULL, claimed_until = NULL
		WHERE id = $1 AND processed_at IS NULL`, id)
	if err != nil {
		return err
	}
	return r.checkUpdated(ctx, res, id)
}

func (r *PostgresRepository) MarkEventFailed(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_events
		SET error = $2,
		    attempts = attempts + 1,
		    last_attempt_at = now(),
		    claimed_by = NULL,
		    claimed_until = NULL,
		    failed_at = CASE WHEN $3::int > 0 AND attempts + 1 >= $3::int THEN now() ELSE failed_at END,
		    processed_at = CASE WHEN $3::int > 0 AND attempts + 1 >= $3::int THEN now() ELSE processed_at END
		WHERE id = $1 AND processed_at IS NULL`, id, reason, r.maxAttempts)
	if err != nil {
		return err
	}
	return r.checkUpdated(ctx, res, id)
}

func (r *PostgresRepository) ListFailedEvents(ctx context.Context, d domain.Domain, limit int) ([]*domain.Row, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM sync_events
		WHERE domain = $1 AND error IS NOT NULL AND (processed_at IS NULL OR failed_at IS NOT NULL)
		ORDER BY last_attempt_at DESC NULLS LAST, id
		LIMIT $2`, string(d), limit)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func (r *PostgresRepository) RequeueEvent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_events
		SET processed_at = NULL, failed_at = NULL, error = NULL, attempts = 0,
		    last_attempt_at = NULL, claimed_by = NULL, claimed_until = NULL
		WHERE id = $1 AND error IS NOT NULL AND (processed_at IS NULL OR failed_at IS NOT NULL)`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	row, err := r.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrEventNotFound
	}
	return ErrEventNotFailed
}

// checkUpdated treats zero affected rows as success when the row exists (already closed), so acks stay idempotent.
func (r *PostgresRepository) checkUpdated(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sync_events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrEventNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(s rowScanner) (*domain.Row, error) {
	var (
		row         domain.Row
		d, tag      string
		payload     []byte
		processedAt sql.NullTime
		errText     sql.NullString
		failedAt    sql.NullTime
	)
	if err := s.Scan(&row.ID, &d, &tag, &row.TeamID, &payload, &row.CreatedAt, &processedAt, &errText, &row.Attempts, &failedAt); err != nil {
		return nil, err
	}
	row.Domain = domain.Domain(d)
	row.Tag = domain.Tag(tag)
	row.Payload = payload
	if processedAt.Valid {
		t := processedAt.Time
		row.ProcessedAt = &t
	}
	if errText.Valid {
		msg := errText.String
		row.Error = &msg
	}
	if failedAt.Valid {
		t := failedAt.Time
		row.FailedAt = &t
	}
	return &row, nil
}

func collectRows(rows *sql.Rows) ([]*domain.Row, error) {
	defer rows.Close()
	var out []*domain.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
