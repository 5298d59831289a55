package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_escrow_per_bounty",
			SQL: `SELECT bounty_id, COUNT(*) FROM escrows
                  GROUP BY bounty_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_single_winner_per_bounty",
			SQL: `SELECT bounty_id, COUNT(*) FROM submissions
                  WHERE status = 'approved'
                  GROUP BY bounty_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_totals_match_positions",
			SQL: `SELECT s.id FROM submissions s
                  WHERE s.for_stake <> COALESCE((SELECT SUM(p.amount) FROM stake_positions p
                        WHERE p.submission_id = s.id AND p.direction = 'for'), 0)
                     OR s.against_stake <> COALESCE((SELECT SUM(p.amount) FROM stake_positions p
                        WHERE p.submission_id = s.id AND p.direction = 'against'), 0)`,
		},
		{
			Name: "O4_no_stake_after_settlement",
			SQL: `SELECT p.id FROM stake_positions p
                  JOIN submissions s ON s.id = p.submission_id
                  WHERE s.status <> 'staking_period' AND p.placed_at > s.updated_at`,
		},
		{
			Name: "O5_winner_has_settled_escrow",
			SQL: `SELECT s.id FROM submissions s
                  JOIN escrows e ON e.bounty_id = s.bounty_id
                  WHERE s.status = 'approved' AND e.status <> 'resolved'`,
		},
		{
			Name: "O6_executed_actions_stamped",
			SQL: `SELECT id FROM resolution_actions
                  WHERE executed AND executed_at IS NULL`,
		},
		{
			Name: "O7_at_most_one_pending_action",
			SQL: `SELECT submission_id, COUNT(*) FROM resolution_actions
                  WHERE NOT executed AND submission_id IS NOT NULL
                  GROUP BY submission_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O8_decided_cases_carry_ruling",
			SQL: `SELECT id FROM arbitration_cases
                  WHERE decision <> 'pending'
                    AND (reasoning IS NULL OR LENGTH(reasoning) < 50 OR decided_at IS NULL)`,
		},
		{
			Name: "O9_redemption_only_after_settlement",
			SQL: `SELECT r.position_id FROM stake_redemptions r
                  JOIN stake_positions p ON p.id = r.position_id
                  JOIN submissions s ON s.id = p.submission_id
                  WHERE s.status IN ('staking_period', 'pending_review')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
