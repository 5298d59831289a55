package resolution

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bountyflow/ledger"
)

// Repository is the PostgreSQL-backed resolution action store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, kind, COALESCE(submission_id::text, ''), bounty_id, reason, created_at, executed, executed_at, COALESCE(ledger_ref, '')`

// InsertPending records a freshly emitted action. The partial unique indexes
// on (submission_id) / (bounty_id) WHERE NOT executed make re-emission
// across ticks a no-op; ok is false when a pending action already exists.
func (r *Repository) InsertPending(ctx context.Context, a Action) (Action, bool, error) {
	const query = `
		INSERT INTO resolution_actions (kind, submission_id, bounty_id, reason)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING ` + columns

	stored, err := scanAction(r.pool.QueryRow(ctx, query, a.Kind, a.SubmissionID, a.BountyID, a.Reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Action{}, false, nil
		}
		return Action{}, false, fmt.Errorf("resolution: insert action: %w", err)
	}
	return stored, true, nil
}

// ListPending returns unexecuted actions, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]Action, error) {
	const query = `
		SELECT ` + columns + `
		FROM resolution_actions
		WHERE NOT executed
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("resolution: list pending: %w", err)
	}
	defer rows.Close()

	out := make([]Action, 0, 8)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("resolution: scan action: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolution: iterate actions: %w", err)
	}
	return out, nil
}

// ListRecent returns the newest actions, executed or not, for the audit
// surface.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM resolution_actions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("resolution: list recent: %w", err)
	}
	defer rows.Close()

	out := make([]Action, 0, limit)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("resolution: scan action: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolution: iterate actions: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Action, error) {
	const query = `SELECT ` + columns + ` FROM resolution_actions WHERE id = $1`

	a, err := scanAction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Action{}, ErrActionNotFound
		}
		return Action{}, fmt.Errorf("resolution: get action: %w", err)
	}
	return a, nil
}

// MarkExecuted sets the executed flag exactly once. ok is false when another
// scheduler instance already claimed the action.
func (r *Repository) MarkExecuted(ctx context.Context, id string, ref ledger.Ref) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE resolution_actions
		SET executed = TRUE, executed_at = NOW(), ledger_ref = NULLIF($2, '')
		WHERE id = $1 AND NOT executed
	`, id, string(ref))
	if err != nil {
		return false, fmt.Errorf("resolution: mark executed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanAction(row pgx.Row) (Action, error) {
	var (
		a   Action
		ref string
	)
	if err := row.Scan(&a.ID, &a.Kind, &a.SubmissionID, &a.BountyID, &a.Reason,
		&a.CreatedAt, &a.Executed, &a.ExecutedAt, &ref); err != nil {
		return Action{}, err
	}
	a.LedgerRef = ledger.Ref(ref)
	return a, nil
}
