package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bountyflow/db"
)

// Repository is the PostgreSQL-backed escrow vault store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `bounty_id, creator, amount::text, deadline, vault_ref, status::text, created_at`

func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	const query = `
		INSERT INTO escrows (bounty_id, creator, amount, deadline, vault_ref, status)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		RETURNING ` + columns

	row := r.pool.QueryRow(ctx, query,
		rec.BountyID, rec.Creator, rec.Amount.String(), rec.Deadline, rec.VaultRef, rec.Status)
	stored, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("escrow: insert: %w", err)
	}
	return stored, nil
}

func (r *Repository) Get(ctx context.Context, vaultRef string) (Record, error) {
	const query = `SELECT ` + columns + ` FROM escrows WHERE vault_ref = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, vaultRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("escrow: get: %w", err)
	}
	return rec, nil
}

// GetByBounty returns the escrow locked for a bounty. At most one escrow
// exists per bounty (unique index on bounty_id).
func (r *Repository) GetByBounty(ctx context.Context, bountyID string) (Record, error) {
	const query = `SELECT ` + columns + ` FROM escrows WHERE bounty_id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, bountyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("escrow: get by bounty: %w", err)
	}
	return rec, nil
}

// Transition flips the status only while the row is still in one of the
// expected states. Conditional update keeps concurrent settlement attempts
// from both reaching a terminal state.
func (r *Repository) Transition(ctx context.Context, vaultRef string, from []Status, to Status) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("escrow: transition requires expected states")
	}

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE escrows
		SET status = $2::escrow_status, updated_at = NOW()
		WHERE vault_ref = $1 AND status = ANY($3::escrow_status[])
	`, vaultRef, to, states)
	if err != nil {
		return false, fmt.Errorf("escrow: transition: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpired returns active escrows past their deadline.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]Record, error) {
	const query = `
		SELECT ` + columns + `
		FROM escrows
		WHERE status = 'active' AND deadline < $1
		ORDER BY deadline`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("escrow: list expired: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 4)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow: scan expired: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escrow: iterate expired: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		amount string
	)
	if err := row.Scan(&rec.BountyID, &rec.Creator, &amount, &rec.Deadline, &rec.VaultRef, &rec.Status, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	parsed, err := db.ParseAmount(amount)
	if err != nil {
		return Record{}, err
	}
	rec.Amount = parsed
	return rec, nil
}
