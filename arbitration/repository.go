package arbitration

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL-backed arbitration case store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, bounty_id, submission_id, arbitrator, decision::text, COALESCE(reasoning, ''), decided_at, created_at`

// FindOpen returns the pending case for a submission, if one exists. The
// partial unique index on (submission_id) WHERE decision = 'pending' keeps
// concurrent opens from creating duplicates.
func (r *Repository) FindOpen(ctx context.Context, submissionID string) (Case, error) {
	const query = `
		SELECT ` + columns + `
		FROM arbitration_cases
		WHERE submission_id = $1 AND decision = 'pending'`

	c, err := scanCase(r.pool.QueryRow(ctx, query, submissionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrCaseNotFound
		}
		return Case{}, fmt.Errorf("arbitration: find open: %w", err)
	}
	return c, nil
}

func (r *Repository) Insert(ctx context.Context, c Case) (Case, error) {
	const query = `
		INSERT INTO arbitration_cases (bounty_id, submission_id, arbitrator, decision)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (submission_id) WHERE decision = 'pending' DO NOTHING
		RETURNING ` + columns

	stored, err := scanCase(r.pool.QueryRow(ctx, query, c.BountyID, c.SubmissionID, c.Arbitrator))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race to a concurrent open; hand back the winner.
			return r.FindOpen(ctx, c.SubmissionID)
		}
		return Case{}, fmt.Errorf("arbitration: insert: %w", err)
	}
	return stored, nil
}

func (r *Repository) Get(ctx context.Context, caseID string) (Case, error) {
	const query = `SELECT ` + columns + ` FROM arbitration_cases WHERE id = $1`

	c, err := scanCase(r.pool.QueryRow(ctx, query, caseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrCaseNotFound
		}
		return Case{}, fmt.Errorf("arbitration: get: %w", err)
	}
	return c, nil
}

// Decide flips a pending case to its verdict. Conditional update: a case
// that already left pending reports ok=false rather than being overwritten.
func (r *Repository) Decide(ctx context.Context, caseID string, decision Decision, reasoning string) (Case, bool, error) {
	const query = `
		UPDATE arbitration_cases
		SET decision = $2::arbitration_decision, reasoning = $3, decided_at = NOW()
		WHERE id = $1 AND decision = 'pending'
		RETURNING ` + columns

	c, err := scanCase(r.pool.QueryRow(ctx, query, caseID, decision, reasoning))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, false, nil
		}
		return Case{}, false, fmt.Errorf("arbitration: decide: %w", err)
	}
	return c, true, nil
}

func scanCase(row pgx.Row) (Case, error) {
	var c Case
	if err := row.Scan(&c.ID, &c.BountyID, &c.SubmissionID, &c.Arbitrator,
		&c.Decision, &c.Reasoning, &c.DecidedAt, &c.CreatedAt); err != nil {
		return Case{}, err
	}
	return c, nil
}
