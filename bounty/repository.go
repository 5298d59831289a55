package bounty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bountyflow/db"
	"bountyflow/locator"
)

var (
	ErrBountyNotFound     = errors.New("bounty: not found")
	ErrSubmissionNotFound = errors.New("bounty: submission not found")
)

// Repository is the PostgreSQL-backed bounty/submission store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bountyColumns = `id, title, creator, reward::text, deadline, kind::text, created_at`

const submissionColumns = `id, bounty_id, submitter, content_locator, target_id,
       submitted_at, staking_ends_at, for_stake::text, against_stake::text, status::text`

func (r *Repository) CreateBounty(ctx context.Context, params CreateBountyParams) (Bounty, error) {
	const query = `
		INSERT INTO bounties (title, creator, reward, deadline, kind)
		VALUES ($1, $2, $3::numeric, $4, $5)
		RETURNING ` + bountyColumns

	row := r.pool.QueryRow(ctx, query,
		params.Title, params.Creator, params.Reward.String(), params.Deadline, params.Kind)
	b, err := scanBounty(row)
	if err != nil {
		return Bounty{}, fmt.Errorf("bounty: create: %w", err)
	}
	return b, nil
}

func (r *Repository) GetBounty(ctx context.Context, id string) (Bounty, error) {
	const query = `SELECT ` + bountyColumns + ` FROM bounties WHERE id = $1`

	b, err := scanBounty(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bounty{}, ErrBountyNotFound
		}
		return Bounty{}, fmt.Errorf("bounty: get: %w", err)
	}
	return b, nil
}

// CreateSubmission inserts a new submission already in staking_period with
// the caller-computed staking window.
func (r *Repository) CreateSubmission(ctx context.Context, params CreateSubmissionParams, target locator.TargetID, stakingEndsAt time.Time) (Submission, error) {
	const query = `
		INSERT INTO submissions (bounty_id, submitter, content_locator, target_id, staking_ends_at, status)
		SELECT $1, $2, $3, $4, $5, 'staking_period'
		WHERE EXISTS (SELECT 1 FROM bounties WHERE id = $1)
		RETURNING ` + submissionColumns

	row := r.pool.QueryRow(ctx, query,
		params.BountyID, params.Submitter, params.Locator, string(target), stakingEndsAt)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, ErrBountyNotFound
		}
		return Submission{}, fmt.Errorf("bounty: create submission: %w", err)
	}
	return s, nil
}

func (r *Repository) GetSubmission(ctx context.Context, id string) (Submission, error) {
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	s, err := scanSubmission(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, fmt.Errorf("bounty: get submission: %w", err)
	}
	return s, nil
}

// ListSubmissions returns all submissions for a bounty, newest first.
func (r *Repository) ListSubmissions(ctx context.Context, bountyID string) ([]Submission, error) {
	const query = `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE bounty_id = $1
		ORDER BY submitted_at DESC`

	rows, err := r.pool.Query(ctx, query, bountyID)
	if err != nil {
		return nil, fmt.Errorf("bounty: list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]Submission, 0, 8)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("bounty: scan submission: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bounty: iterate submissions: %w", err)
	}
	return out, nil
}

// ListStakingElapsed returns staking_period submissions whose window ended
// before now.
func (r *Repository) ListStakingElapsed(ctx context.Context, now time.Time) ([]Submission, error) {
	const query = `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE status = 'staking_period' AND staking_ends_at < $1
		ORDER BY staking_ends_at`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("bounty: list elapsed: %w", err)
	}
	defer rows.Close()

	out := make([]Submission, 0, 8)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("bounty: scan elapsed: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bounty: iterate elapsed: %w", err)
	}
	return out, nil
}

// HasApprovedSubmission reports whether the bounty already has a winning
// submission.
func (r *Repository) HasApprovedSubmission(ctx context.Context, bountyID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE bounty_id = $1 AND status = 'approved')`,
		bountyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("bounty: check approved: %w", err)
	}
	return exists, nil
}

// TransitionStatus flips a submission's status only when it is still in one
// of the expected states. It reports false when the row has already moved,
// letting callers classify the race instead of clobbering a concurrent
// decision.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from []SubmissionStatus, to SubmissionStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("bounty: transition requires expected states")
	}

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2::submission_status, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3::submission_status[])
	`, id, to, states)
	if err != nil {
		return false, fmt.Errorf("bounty: transition status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanBounty(row pgx.Row) (Bounty, error) {
	var (
		b      Bounty
		reward string
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Creator, &reward, &b.Deadline, &b.Kind, &b.CreatedAt); err != nil {
		return Bounty{}, err
	}
	amount, err := db.ParseAmount(reward)
	if err != nil {
		return Bounty{}, err
	}
	b.Reward = amount
	return b, nil
}

func scanSubmission(row pgx.Row) (Submission, error) {
	var (
		s                  Submission
		target             string
		forRaw, againstRaw string
	)
	if err := row.Scan(&s.ID, &s.BountyID, &s.Submitter, &s.Locator, &target,
		&s.SubmittedAt, &s.StakingEndsAt, &forRaw, &againstRaw, &s.Status); err != nil {
		return Submission{}, err
	}
	s.Target = locator.TargetID(target)

	var err error
	if s.ForStake, err = db.ParseAmount(forRaw); err != nil {
		return Submission{}, err
	}
	if s.AgainstStake, err = db.ParseAmount(againstRaw); err != nil {
		return Submission{}, err
	}
	return s, nil
}
