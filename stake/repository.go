package stake

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bountyflow/db"
	"bountyflow/ledger"
	"bountyflow/locator"
)

var ErrPositionNotFound = errors.New("stake: position not found")

// Repository is the PostgreSQL-backed stake position store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AppendPosition inserts the immutable position and bumps the submission's
// directional running total in one transaction. The position row and the
// total can never diverge.
func (r *Repository) AppendPosition(ctx context.Context, pos Position) (Position, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Position{}, fmt.Errorf("stake: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
		INSERT INTO stake_positions (staker, submission_id, target_id, amount, direction, ledger_ref)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING id, placed_at
	`
	if err := tx.QueryRow(ctx, insertSQL,
		pos.Staker, pos.SubmissionID, string(pos.Target),
		pos.Amount.String(), pos.Direction, string(pos.LedgerRef)).
		Scan(&pos.ID, &pos.PlacedAt); err != nil {
		return Position{}, fmt.Errorf("stake: insert position: %w", err)
	}

	column := "for_stake"
	if pos.Direction == DirectionAgainst {
		column = "against_stake"
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE submissions
		SET %s = %s + $2::numeric, updated_at = NOW()
		WHERE id = $1
	`, column, column), pos.SubmissionID, pos.Amount.String())
	if err != nil {
		return Position{}, fmt.Errorf("stake: bump total: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return Position{}, fmt.Errorf("stake: submission %s not found", pos.SubmissionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return Position{}, fmt.Errorf("stake: commit: %w", err)
	}
	return pos, nil
}

func (r *Repository) ListForSubmission(ctx context.Context, submissionID string) ([]Position, error) {
	const query = `
		SELECT id, staker, submission_id, target_id, amount::text, direction::text, placed_at, ledger_ref
		FROM stake_positions
		WHERE submission_id = $1
		ORDER BY placed_at
	`

	rows, err := r.pool.Query(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("stake: list positions: %w", err)
	}
	defer rows.Close()

	out := make([]Position, 0, 8)
	for rows.Next() {
		var (
			p      Position
			target string
			amount string
			ref    string
		)
		if err := rows.Scan(&p.ID, &p.Staker, &p.SubmissionID, &target, &amount, &p.Direction, &p.PlacedAt, &ref); err != nil {
			return nil, fmt.Errorf("stake: scan position: %w", err)
		}
		p.Target = locator.TargetID(target)
		p.LedgerRef = ledger.Ref(ref)
		if p.Amount, err = db.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("stake: parse amount: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stake: iterate positions: %w", err)
	}
	return out, nil
}

// MarkRedeemed records the redemption event against a position. The position
// row itself stays immutable; redemption lands in a separate table.
func (r *Repository) MarkRedeemed(ctx context.Context, positionID string, ref ledger.Ref) error {
	const query = `
		INSERT INTO stake_redemptions (position_id, ledger_ref)
		SELECT id, $2 FROM stake_positions WHERE id = $1
		RETURNING position_id
	`
	var id string
	if err := r.pool.QueryRow(ctx, query, positionID, string(ref)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPositionNotFound
		}
		return fmt.Errorf("stake: mark redeemed: %w", err)
	}
	return nil
}
