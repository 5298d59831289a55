package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Staker hammers one submission with positions in random directions. The
// totals bump is conditional on the staking window still being open, so a
// position row only lands together with its bump.
func Staker(ctx context.Context, pool *pgxpool.Pool, submissionID, targetID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		amount := fmt.Sprintf("%d", 1+rand.Intn(500))
		direction := "for"
		column := "for_stake"
		if rand.Intn(3) == 0 {
			direction = "against"
			column = "against_stake"
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("staker begin: %w", err)
		}
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			`UPDATE submissions SET %s = %s + $2::numeric, updated_at = NOW()
			 WHERE id = $1 AND status = 'staking_period'`, column, column),
			submissionID, amount)
		if err == nil && tag.RowsAffected() == 1 {
			_, err = tx.Exec(ctx, `
				INSERT INTO stake_positions (staker, submission_id, target_id, amount, direction, ledger_ref)
				VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
				fmt.Sprintf("0xstaker%04d", rand.Intn(1000)), submissionID, targetID,
				amount, direction, fmt.Sprintf("0xstake-%d", rand.Int63()))
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Resolver plays the scheduler: it queues actions for submissions whose
// staking window elapsed, then claims pending actions with SKIP LOCKED and
// settles escrow before flipping submission status. Multiple resolvers run
// at once; the partial unique indexes and row locks keep them honest.
func Resolver(ctx context.Context, pool *pgxpool.Pool, arbitrator string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := emitElapsed(ctx, pool); err != nil {
			return err
		}
		if err := executeOne(ctx, pool, arbitrator); err != nil {
			return err
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

func emitElapsed(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO resolution_actions (kind, submission_id, bounty_id, reason)
		SELECT CASE
		         WHEN for_stake + against_stake = 0 THEN 'send_to_arbitration'
		         WHEN for_stake * 100 >= 70 * (for_stake + against_stake) THEN 'auto_approve'
		         WHEN against_stake * 100 >= 70 * (for_stake + against_stake) THEN 'auto_reject'
		         ELSE 'send_to_arbitration'
		       END,
		       id, bounty_id, 'stress classification'
		FROM submissions
		WHERE status = 'staking_period' AND staking_ends_at < NOW()
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("resolver emit: %w", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO resolution_actions (kind, bounty_id, reason)
		SELECT 'refund_expired', e.bounty_id, 'stress refund'
		FROM escrows e
		WHERE e.status = 'active' AND e.deadline < NOW()
		  AND NOT EXISTS (SELECT 1 FROM submissions s
		                  WHERE s.bounty_id = e.bounty_id AND s.status = 'approved')
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("resolver emit refund: %w", err)
	}
	return nil
}

func executeOne(ctx context.Context, pool *pgxpool.Pool, arbitrator string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("resolver begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		actionID, kind, bountyID string
		submissionID             *string
	)
	err = tx.QueryRow(ctx, `
		SELECT id, kind, bounty_id, submission_id::text FROM resolution_actions
		WHERE NOT executed
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1`).Scan(&actionID, &kind, &bountyID, &submissionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolver claim: %w", err)
	}

	ref := fmt.Sprintf("0x%s-%d", kind, rand.Int63())
	switch kind {
	case "auto_approve":
		tag, err := tx.Exec(ctx, `UPDATE escrows SET status = 'resolved', updated_at = NOW()
			WHERE bounty_id = $1 AND status IN ('active', 'disputed')`, bountyID)
		if err != nil {
			return fmt.Errorf("resolver release: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// another submission already won; retire without funds
			ref = ""
		} else {
			if _, err := tx.Exec(ctx, `UPDATE submissions SET status = 'approved', updated_at = NOW()
				WHERE id = $1 AND status = 'staking_period'`, *submissionID); err != nil {
				return fmt.Errorf("resolver approve: %w", err)
			}
		}
	case "auto_reject":
		if _, err := tx.Exec(ctx, `UPDATE submissions SET status = 'rejected', updated_at = NOW()
			WHERE id = $1 AND status = 'staking_period'`, *submissionID); err != nil {
			return fmt.Errorf("resolver reject: %w", err)
		}
		ref = ""
	case "send_to_arbitration":
		if _, err := tx.Exec(ctx, `UPDATE escrows SET status = 'disputed', updated_at = NOW()
			WHERE bounty_id = $1 AND status = 'active'`, bountyID); err != nil {
			return fmt.Errorf("resolver dispute escrow: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE submissions SET status = 'disputed', updated_at = NOW()
			WHERE id = $1 AND status = 'staking_period'`, *submissionID); err != nil {
			return fmt.Errorf("resolver dispute: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO arbitration_cases (bounty_id, submission_id, arbitrator)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, bountyID, *submissionID, arbitrator); err != nil {
			return fmt.Errorf("resolver open case: %w", err)
		}
		ref = ""
	case "refund_expired":
		tag, err := tx.Exec(ctx, `UPDATE escrows SET status = 'refunded', updated_at = NOW()
			WHERE bounty_id = $1 AND status IN ('active', 'expired')`, bountyID)
		if err != nil {
			return fmt.Errorf("resolver refund: %w", err)
		}
		if tag.RowsAffected() == 0 {
			ref = ""
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE resolution_actions
		SET executed = TRUE, executed_at = NOW(), ledger_ref = NULLIF($2, '')
		WHERE id = $1 AND NOT executed`, actionID, ref); err != nil {
		return fmt.Errorf("resolver retire: %w", err)
	}
	return tx.Commit(ctx)
}

// Arbitrator decides open cases with a long enough ruling and settles the
// disputed escrow in the same transaction.
func Arbitrator(ctx context.Context, pool *pgxpool.Pool, name string, stop <-chan struct{}) error {
	const ruling = "Reviewed the submitted dataset against the bounty brief and the community stake history before ruling."
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("arbitrator begin: %w", err)
		}
		var caseID, bountyID, submissionID string
		err = tx.QueryRow(ctx, `
			SELECT id, bounty_id, submission_id FROM arbitration_cases
			WHERE decision = 'pending'
			FOR UPDATE SKIP LOCKED
			LIMIT 1`).Scan(&caseID, &bountyID, &submissionID)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(150 * time.Millisecond)
			continue
		}

		decision := "approve"
		escrowTo, submissionTo := "resolved", "approved"
		if rand.Intn(2) == 0 {
			decision = "reject"
			escrowTo, submissionTo = "refunded", "rejected"
		}
		_, err = tx.Exec(ctx, `UPDATE arbitration_cases
			SET decision = $2, reasoning = $3, decided_at = NOW()
			WHERE id = $1 AND decision = 'pending'`, caseID, decision, ruling)
		if err == nil {
			_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE escrows SET status = '%s', updated_at = NOW()
				WHERE bounty_id = $1 AND status = 'disputed'`, escrowTo), bountyID)
		}
		if err == nil {
			_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE submissions SET status = '%s', updated_at = NOW()
				WHERE id = $1 AND status = 'disputed'`, submissionTo), submissionID)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("arbitrator decide: %w", err)
		}
		_ = tx.Commit(ctx)
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}

// Redeemer cashes out positions on settled submissions. The primary key on
// stake_redemptions makes a second redemption of the same position a no-op.
func Redeemer(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO stake_redemptions (position_id, ledger_ref)
			SELECT p.id, '0xredeem-' || p.id
			FROM stake_positions p
			JOIN submissions s ON s.id = p.submission_id
			WHERE s.status IN ('approved', 'rejected')
			ORDER BY random()
			LIMIT 3
			ON CONFLICT DO NOTHING`)
		if err != nil {
			return fmt.Errorf("redeemer insert: %w", err)
		}
		time.Sleep(time.Duration(60+rand.Intn(60)) * time.Millisecond)
	}
}
