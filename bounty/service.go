package bounty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bountyflow/locator"
)

// DefaultStakingPeriod is how long the community may stake on a new
// submission unless the deployment configures otherwise.
const DefaultStakingPeriod = 7 * 24 * time.Hour

var (
	ErrInvalidLocator = errors.New("bounty: locator does not resolve to a target")
	ErrMissingField   = errors.New("bounty: missing required field")
)

// Store abstracts the repository for the service.
type Store interface {
	CreateBounty(ctx context.Context, params CreateBountyParams) (Bounty, error)
	GetBounty(ctx context.Context, id string) (Bounty, error)
	CreateSubmission(ctx context.Context, params CreateSubmissionParams, target locator.TargetID, stakingEndsAt time.Time) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissions(ctx context.Context, bountyID string) ([]Submission, error)
}

// Service exposes bounty and submission registration.
type Service struct {
	store         Store
	stakingPeriod time.Duration
	now           func() time.Time
}

func NewService(store Store, stakingPeriod time.Duration) *Service {
	if stakingPeriod <= 0 {
		stakingPeriod = DefaultStakingPeriod
	}
	return &Service{store: store, stakingPeriod: stakingPeriod, now: time.Now}
}

func (s *Service) CreateBounty(ctx context.Context, params CreateBountyParams) (Bounty, error) {
	if params.Title == "" || params.Creator == "" {
		return Bounty{}, ErrMissingField
	}
	if params.Reward == nil || params.Reward.Sign() <= 0 {
		return Bounty{}, fmt.Errorf("bounty: reward must be positive")
	}
	if params.Kind == "" {
		params.Kind = KindData
	}
	if params.Kind != KindData && params.Kind != KindReputation {
		return Bounty{}, fmt.Errorf("bounty: invalid kind %q", params.Kind)
	}
	return s.store.CreateBounty(ctx, params)
}

func (s *Service) GetBounty(ctx context.Context, id string) (Bounty, error) {
	return s.store.GetBounty(ctx, id)
}

// SubmitSolution registers a candidate solution, resolving its locator up
// front so an unparseable one is rejected before anything is stored, and
// stamping the staking window from submission time.
func (s *Service) SubmitSolution(ctx context.Context, params CreateSubmissionParams) (Submission, error) {
	if params.BountyID == "" || params.Submitter == "" {
		return Submission{}, ErrMissingField
	}

	target, err := locator.ResolveTarget(params.Locator)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	stakingEndsAt := s.now().Add(s.stakingPeriod)
	return s.store.CreateSubmission(ctx, params, target, stakingEndsAt)
}

func (s *Service) GetSubmission(ctx context.Context, id string) (Submission, error) {
	return s.store.GetSubmission(ctx, id)
}

func (s *Service) ListSubmissions(ctx context.Context, bountyID string) ([]Submission, error) {
	return s.store.ListSubmissions(ctx, bountyID)
}
