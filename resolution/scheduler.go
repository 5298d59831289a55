package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bountyflow/arbitration"
	"bountyflow/bounty"
	"bountyflow/escrow"
	"bountyflow/ledger"
	"bountyflow/stake"
)

const (
	// DefaultInterval is the scan cadence.
	DefaultInterval = 30 * time.Second
	// DefaultWorkers bounds concurrent action execution per tick.
	DefaultWorkers = 4
)

// SubmissionSource is the slice of the bounty store the scheduler needs.
type SubmissionSource interface {
	ListStakingElapsed(ctx context.Context, now time.Time) ([]bounty.Submission, error)
	GetSubmission(ctx context.Context, id string) (bounty.Submission, error)
	TransitionStatus(ctx context.Context, id string, from []bounty.SubmissionStatus, to bounty.SubmissionStatus) (bool, error)
	HasApprovedSubmission(ctx context.Context, bountyID string) (bool, error)
}

// EscrowManager is the slice of the escrow service the scheduler needs.
type EscrowManager interface {
	GetByBounty(ctx context.Context, bountyID string) (escrow.Record, error)
	ReleaseToSolver(ctx context.Context, vaultRef, solver, submissionID string) (ledger.Ref, error)
	RefundToCreator(ctx context.Context, vaultRef, creator string) (ledger.Ref, error)
	MarkDisputed(ctx context.Context, vaultRef string) error
	MarkExpired(ctx context.Context, vaultRef string) error
	ListExpired(ctx context.Context, now time.Time) ([]escrow.Record, error)
}

// CaseOpener opens arbitration cases for inconclusive submissions.
type CaseOpener interface {
	OpenCase(ctx context.Context, bountyID, submissionID, arbitrator string) (arbitration.Case, error)
}

// ActionStore persists emitted actions. InsertPending must be a no-op when a
// pending action already exists for the same submission or bounty, and
// MarkExecuted must flip the executed flag at most once.
type ActionStore interface {
	InsertPending(ctx context.Context, a Action) (Action, bool, error)
	ListPending(ctx context.Context) ([]Action, error)
	MarkExecuted(ctx context.Context, id string, ref ledger.Ref) (bool, error)
}

// Scheduler periodically evaluates elapsed staking windows and expired
// escrows, emits resolution actions, and executes them. Safe to run
// alongside other instances: emission dedupes on the store's pending index
// and execution claims actions through a conditional flag flip.
type Scheduler struct {
	subs    SubmissionSource
	escrows EscrowManager
	cases   CaseOpener
	actions ActionStore
	engine  *stake.Engine

	// Arbitrator is the address assigned to cases opened by the scheduler.
	Arbitrator string
	Interval   time.Duration
	Workers    int

	log *slog.Logger
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewScheduler(subs SubmissionSource, escrows EscrowManager, cases CaseOpener, actions ActionStore, engine *stake.Engine, arbitrator string, log *slog.Logger) *Scheduler {
	if engine == nil {
		engine = stake.NewEngine()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		subs:       subs,
		escrows:    escrows,
		cases:      cases,
		actions:    actions,
		engine:     engine,
		Arbitrator: arbitrator,
		Interval:   DefaultInterval,
		Workers:    DefaultWorkers,
		log:        log,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Run ticks until the context is cancelled. The first tick fires
// immediately so a restart does not wait a full interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			s.log.Error("resolution tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one full scan-then-execute pass.
func (s *Scheduler) Tick(ctx context.Context) error {
	if err := s.Scan(ctx); err != nil {
		return err
	}
	return s.ExecutePending(ctx)
}

// Scan evaluates every submission whose staking window has elapsed and every
// escrow past its deadline, emitting one pending action apiece. Re-running
// before execution emits nothing new.
func (s *Scheduler) Scan(ctx context.Context) error {
	now := s.now()

	elapsed, err := s.subs.ListStakingElapsed(ctx, now)
	if err != nil {
		return fmt.Errorf("resolution: scan submissions: %w", err)
	}
	for _, sub := range elapsed {
		consensus := s.engine.Calculate(sub.ForStake, sub.AgainstStake)
		action := classify(sub, consensus)
		if _, ok, err := s.actions.InsertPending(ctx, action); err != nil {
			return err
		} else if ok {
			s.log.Info("resolution action emitted",
				"kind", action.Kind, "submission", sub.ID, "reason", action.Reason)
		}
	}

	expired, err := s.escrows.ListExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("resolution: scan escrows: %w", err)
	}
	for _, rec := range expired {
		approved, err := s.subs.HasApprovedSubmission(ctx, rec.BountyID)
		if err != nil {
			return err
		}
		if approved {
			continue
		}
		action := Action{
			Kind:     KindRefundExpired,
			BountyID: rec.BountyID,
			Reason:   "Bounty deadline passed without an approved submission",
		}
		if _, ok, err := s.actions.InsertPending(ctx, action); err != nil {
			return err
		} else if ok {
			s.log.Info("resolution action emitted",
				"kind", action.Kind, "bounty", rec.BountyID, "reason", action.Reason)
		}
	}
	return nil
}

// classify maps a consensus result onto an action, carrying the
// human-readable reason shown on the audit surface.
func classify(sub bounty.Submission, c stake.Consensus) Action {
	a := Action{SubmissionID: sub.ID, BountyID: sub.BountyID}
	switch c.Recommendation {
	case stake.RecommendApprove:
		a.Kind = KindAutoApprove
		a.Reason = fmt.Sprintf("Community approval threshold reached (%d%% FOR)", c.ForRatio)
	case stake.RecommendReject:
		a.Kind = KindAutoReject
		a.Reason = fmt.Sprintf("Community rejection threshold reached (%d%% AGAINST)", c.AgainstRatio)
	default:
		a.Kind = KindSendToArbitration
		a.Reason = fmt.Sprintf("Inconclusive community decision (%d%% FOR, %d%% AGAINST)", c.ForRatio, c.AgainstRatio)
	}
	return a
}

// ExecutePending drains the pending action queue through a bounded worker
// pool. Actions for the same submission serialize on a keyed lock so two
// workers can never interleave on one submission's state machine.
func (s *Scheduler) ExecutePending(ctx context.Context) error {
	pending, err := s.actions.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("resolution: list pending: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for _, a := range pending {
		g.Go(func() error {
			unlock := s.lock(a.key())
			defer unlock()

			err := s.execute(ctx, a)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrStaleAction):
				// A concurrent transition (arbitration decision, another
				// instance) got there first. Retire the action so it does
				// not re-run every tick.
				s.log.Info("resolution action stale", "action", a.ID, "kind", a.Kind)
				_, merr := s.actions.MarkExecuted(ctx, a.ID, "")
				return merr
			default:
				s.log.Error("resolution action failed",
					"action", a.ID, "kind", a.Kind, "error", err)
				return nil
			}
		})
	}
	return g.Wait()
}

func (s *Scheduler) execute(ctx context.Context, a Action) error {
	if a.Executed {
		return nil
	}
	switch a.Kind {
	case KindAutoApprove:
		return s.approve(ctx, a)
	case KindAutoReject:
		return s.reject(ctx, a)
	case KindSendToArbitration:
		return s.arbitrate(ctx, a)
	case KindRefundExpired:
		return s.refundExpired(ctx, a)
	default:
		return fmt.Errorf("resolution: unknown action kind %q", a.Kind)
	}
}

func (s *Scheduler) approve(ctx context.Context, a Action) error {
	sub, err := s.subs.GetSubmission(ctx, a.SubmissionID)
	if err != nil {
		return err
	}
	if sub.Status != bounty.StatusStakingPeriod {
		return fmt.Errorf("%w: submission %s is %s", ErrStaleAction, sub.ID, sub.Status)
	}

	vault, err := s.escrows.GetByBounty(ctx, a.BountyID)
	if err != nil {
		return err
	}
	ref, err := s.escrows.ReleaseToSolver(ctx, vault.VaultRef, sub.Submitter, sub.ID)
	if err != nil {
		return err
	}

	ok, err := s.subs.TransitionStatus(ctx, sub.ID, []bounty.SubmissionStatus{bounty.StatusStakingPeriod}, bounty.StatusApproved)
	if err != nil {
		return err
	}
	if !ok {
		// Funds already moved. The escrow's own state machine blocks a
		// double release, so record the lost race and retire the action.
		s.log.Warn("submission moved after release", "submission", sub.ID)
	}
	return s.retire(ctx, a, ref)
}

func (s *Scheduler) reject(ctx context.Context, a Action) error {
	sub, err := s.subs.GetSubmission(ctx, a.SubmissionID)
	if err != nil {
		return err
	}
	if sub.Status != bounty.StatusStakingPeriod {
		return fmt.Errorf("%w: submission %s is %s", ErrStaleAction, sub.ID, sub.Status)
	}

	// No fund movement. The escrow stays locked for the bounty's other
	// submissions until one wins or the deadline refund kicks in.
	ok, err := s.subs.TransitionStatus(ctx, sub.ID, []bounty.SubmissionStatus{bounty.StatusStakingPeriod}, bounty.StatusRejected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: submission %s left staking_period", ErrStaleAction, sub.ID)
	}
	return s.retire(ctx, a, "")
}

func (s *Scheduler) arbitrate(ctx context.Context, a Action) error {
	sub, err := s.subs.GetSubmission(ctx, a.SubmissionID)
	if err != nil {
		return err
	}
	if sub.Status != bounty.StatusStakingPeriod {
		return fmt.Errorf("%w: submission %s is %s", ErrStaleAction, sub.ID, sub.Status)
	}

	vault, err := s.escrows.GetByBounty(ctx, a.BountyID)
	if err != nil {
		return err
	}
	if err := s.escrows.MarkDisputed(ctx, vault.VaultRef); err != nil {
		return err
	}

	ok, err := s.subs.TransitionStatus(ctx, sub.ID, []bounty.SubmissionStatus{bounty.StatusStakingPeriod}, bounty.StatusDisputed)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: submission %s left staking_period", ErrStaleAction, sub.ID)
	}

	if _, err := s.cases.OpenCase(ctx, a.BountyID, sub.ID, s.Arbitrator); err != nil {
		return err
	}
	return s.retire(ctx, a, "")
}

func (s *Scheduler) refundExpired(ctx context.Context, a Action) error {
	approved, err := s.subs.HasApprovedSubmission(ctx, a.BountyID)
	if err != nil {
		return err
	}
	if approved {
		return fmt.Errorf("%w: bounty %s gained an approved submission", ErrStaleAction, a.BountyID)
	}

	vault, err := s.escrows.GetByBounty(ctx, a.BountyID)
	if err != nil {
		return err
	}
	if vault.Status == escrow.StatusResolved || vault.Status == escrow.StatusRefunded {
		return fmt.Errorf("%w: escrow %s already settled", ErrStaleAction, vault.VaultRef)
	}

	if vault.Status == escrow.StatusActive {
		if err := s.escrows.MarkExpired(ctx, vault.VaultRef); err != nil {
			return err
		}
	}

	ref, err := s.escrows.RefundToCreator(ctx, vault.VaultRef, vault.Creator)
	if err != nil {
		return err
	}
	return s.retire(ctx, a, ref)
}

// retire marks the action executed. A false claim means another instance
// beat us after we already moved funds; the ledger op is idempotent per
// vault so this only loses the ref, which is logged.
func (s *Scheduler) retire(ctx context.Context, a Action, ref ledger.Ref) error {
	ok, err := s.actions.MarkExecuted(ctx, a.ID, ref)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("action claimed by another instance", "action", a.ID)
	}
	return nil
}

func (a Action) key() string {
	if a.SubmissionID != "" {
		return "submission:" + a.SubmissionID
	}
	return "bounty:" + a.BountyID
}

func (s *Scheduler) lock(key string) func() {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
