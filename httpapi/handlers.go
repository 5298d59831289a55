package httpapi

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bountyflow/arbitration"
	"bountyflow/auth"
	"bountyflow/bounty"
	"bountyflow/escrow"
	"bountyflow/resolution"
	"bountyflow/stake"
)

// ActionLog is the slice of the resolution store the audit endpoint needs.
type ActionLog interface {
	ListRecent(ctx context.Context, limit int) ([]resolution.Action, error)
}

// Ticker triggers a resolution pass outside the normal cadence.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Handlers bundles the services behind the HTTP surface.
type Handlers struct {
	Auth        *auth.Service
	Bounties    *bounty.Service
	Escrows     *escrow.Service
	Stakes      *stake.Service
	Arbitration *arbitration.Service
	Actions     ActionLog
	Resolver    Ticker
}

type registerResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, auth.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, registerResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
	})
}

func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user": registerResponse{
			ID:          result.User.ID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			Role:        string(result.User.Role),
		},
	})
}

func (h *Handlers) CurrentUser(c *gin.Context) {
	user, err := h.Auth.GetUserByID(c.Request.Context(), UserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, registerResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
	})
}

type createBountyRequest struct {
	Title    string    `json:"title" binding:"required"`
	Creator  string    `json:"creator" binding:"required"`
	Reward   string    `json:"reward" binding:"required"`
	Deadline time.Time `json:"deadline" binding:"required"`
	Kind     string    `json:"kind"`
}

type bountyResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Creator      string    `json:"creator"`
	Reward       string    `json:"reward"`
	Deadline     time.Time `json:"deadline"`
	Kind         string    `json:"kind"`
	EscrowStatus string    `json:"escrow_status,omitempty"`
	VaultRef     string    `json:"vault_ref,omitempty"`
}

// CreateBounty registers the bounty and locks its reward in escrow. The
// escrow lock runs against the external ledger before the response is sent;
// a failed lock surfaces as an error with no bounty visible to stakers.
func (h *Handlers) CreateBounty(c *gin.Context) {
	var req createBountyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reward, ok := new(big.Int).SetString(req.Reward, 10)
	if !ok || reward.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reward must be a positive integer string"})
		return
	}

	ctx := c.Request.Context()
	b, err := h.Bounties.CreateBounty(ctx, bounty.CreateBountyParams{
		Title:    req.Title,
		Creator:  req.Creator,
		Reward:   reward,
		Deadline: req.Deadline,
		Kind:     bounty.Kind(req.Kind),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.Escrows.Create(ctx, b.ID, b.Creator, b.Reward, b.Deadline)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "escrow lock failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, bountyResponse{
		ID:           b.ID,
		Title:        b.Title,
		Creator:      b.Creator,
		Reward:       b.Reward.String(),
		Deadline:     b.Deadline,
		Kind:         string(b.Kind),
		EscrowStatus: string(rec.Status),
		VaultRef:     rec.VaultRef,
	})
}

func (h *Handlers) GetBounty(c *gin.Context) {
	ctx := c.Request.Context()
	b, err := h.Bounties.GetBounty(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, bounty.ErrBountyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bounty not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	resp := bountyResponse{
		ID:       b.ID,
		Title:    b.Title,
		Creator:  b.Creator,
		Reward:   b.Reward.String(),
		Deadline: b.Deadline,
		Kind:     string(b.Kind),
	}
	if rec, err := h.Escrows.GetByBounty(ctx, b.ID); err == nil {
		resp.EscrowStatus = string(rec.Status)
		resp.VaultRef = rec.VaultRef
	} else if !errors.Is(err, escrow.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "escrow lookup failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

type submitSolutionRequest struct {
	Submitter string `json:"submitter" binding:"required"`
	Locator   string `json:"locator" binding:"required"`
}

type submissionResponse struct {
	ID            string    `json:"id"`
	BountyID      string    `json:"bounty_id"`
	Submitter     string    `json:"submitter"`
	Locator       string    `json:"locator"`
	Target        string    `json:"target"`
	Status        string    `json:"status"`
	StakingEndsAt time.Time `json:"staking_ends_at"`
	ForStake      string    `json:"for_stake"`
	AgainstStake  string    `json:"against_stake"`
}

func toSubmissionResponse(s bounty.Submission) submissionResponse {
	return submissionResponse{
		ID:            s.ID,
		BountyID:      s.BountyID,
		Submitter:     s.Submitter,
		Locator:       s.Locator,
		Target:        string(s.Target),
		Status:        string(s.Status),
		StakingEndsAt: s.StakingEndsAt,
		ForStake:      s.ForStake.String(),
		AgainstStake:  s.AgainstStake.String(),
	}
}

func (h *Handlers) SubmitSolution(c *gin.Context) {
	var req submitSolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s, err := h.Bounties.SubmitSolution(c.Request.Context(), bounty.CreateSubmissionParams{
		BountyID:  c.Param("id"),
		Submitter: req.Submitter,
		Locator:   req.Locator,
	})
	if err != nil {
		switch {
		case errors.Is(err, bounty.ErrInvalidLocator):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, bounty.ErrBountyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "bounty not found"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, toSubmissionResponse(s))
}

func (h *Handlers) ListSubmissions(c *gin.Context) {
	subs, err := h.Bounties.ListSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	out := make([]submissionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": out})
}

func (h *Handlers) GetSubmission(c *gin.Context) {
	s, err := h.Bounties.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, bounty.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, toSubmissionResponse(s))
}

type placeStakeRequest struct {
	Staker    string `json:"staker" binding:"required"`
	Locator   string `json:"locator" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (h *Handlers) PlaceStake(c *gin.Context) {
	var req placeStakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be an integer string"})
		return
	}

	pos, err := h.Stakes.PlaceStake(c.Request.Context(), stake.PlaceStakeParams{
		Staker:       req.Staker,
		SubmissionID: c.Param("id"),
		Locator:      req.Locator,
		Amount:       amount,
		Direction:    stake.Direction(req.Direction),
	})
	if err != nil {
		switch {
		case errors.Is(err, stake.ErrBelowMinimum),
			errors.Is(err, stake.ErrAboveMaximum),
			errors.Is(err, stake.ErrInvalidDirection):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, stake.ErrInvalidLocator):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         pos.ID,
		"target":     string(pos.Target),
		"amount":     pos.Amount.String(),
		"direction":  string(pos.Direction),
		"ledger_ref": string(pos.LedgerRef),
	})
}

func (h *Handlers) GetConsensus(c *gin.Context) {
	s, err := h.Bounties.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, bounty.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	consensus := h.Stakes.Consensus(s.ForStake, s.AgainstStake)
	c.JSON(http.StatusOK, gin.H{
		"submission_id":  s.ID,
		"for_ratio":      consensus.ForRatio,
		"against_ratio":  consensus.AgainstRatio,
		"total_staked":   consensus.Total.String(),
		"recommendation": string(consensus.Recommendation),
	})
}

type decideCaseRequest struct {
	Decision  string `json:"decision" binding:"required"`
	Reasoning string `json:"reasoning" binding:"required"`
}

// DecideCase records an arbitration ruling. Only users holding the
// arbitrator role, checked against the store rather than the token, may
// call this.
func (h *Handlers) DecideCase(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.Auth.RequireArbitrator(ctx, UserID(c)); err != nil {
		if errors.Is(err, auth.ErrNotArbitrator) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization check failed"})
		return
	}

	var req decideCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ref, err := h.Arbitration.SubmitDecision(ctx, c.Param("id"), arbitration.Decision(req.Decision), req.Reasoning)
	if err != nil {
		switch {
		case errors.Is(err, arbitration.ErrCaseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		case errors.Is(err, arbitration.ErrAlreadyDecided):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, arbitration.ErrReasoningTooShort),
			errors.Is(err, arbitration.ErrInvalidDecision):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ledger_ref": string(ref)})
}

func (h *Handlers) GetCase(c *gin.Context) {
	cs, err := h.Arbitration.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, arbitration.ErrCaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            cs.ID,
		"bounty_id":     cs.BountyID,
		"submission_id": cs.SubmissionID,
		"arbitrator":    cs.Arbitrator,
		"decision":      string(cs.Decision),
		"reasoning":     cs.Reasoning,
	})
}

type actionResponse struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	SubmissionID string     `json:"submission_id,omitempty"`
	BountyID     string     `json:"bounty_id"`
	Reason       string     `json:"reason"`
	CreatedAt    time.Time  `json:"created_at"`
	Executed     bool       `json:"executed"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	LedgerRef    string     `json:"ledger_ref,omitempty"`
}

// ListActions exposes the resolution audit trail, newest first.
func (h *Handlers) ListActions(c *gin.Context) {
	actions, err := h.Actions.ListRecent(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	out := make([]actionResponse, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionResponse{
			ID:           a.ID,
			Kind:         string(a.Kind),
			SubmissionID: a.SubmissionID,
			BountyID:     a.BountyID,
			Reason:       a.Reason,
			CreatedAt:    a.CreatedAt,
			Executed:     a.Executed,
			ExecutedAt:   a.ExecutedAt,
			LedgerRef:    string(a.LedgerRef),
		})
	}
	c.JSON(http.StatusOK, gin.H{"actions": out})
}

// TriggerTick runs one resolution pass now instead of waiting for the next
// scheduled one.
func (h *Handlers) TriggerTick(c *gin.Context) {
	if err := h.Resolver.Tick(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "tick completed"})
}
