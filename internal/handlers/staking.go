package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crowdsale/internal/tokenomics"
)

// ListPools returns every staking pool
func (h *Handler) ListPools(c *gin.Context) {
	pools, err := h.engine.Pools(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pools)
}

// ProjectPool forecasts rewards of a hypothetical stake.
// Query: amount, horizon_days, lock_days, step_days, compound_every_days.
func (h *Handler) ProjectPool(c *gin.Context) {
	poolID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	amount, ok := parseDecimal(c, "amount", c.Query("amount"))
	if !ok {
		return
	}
	req := tokenomics.ProjectionRequest{Amount: amount}
	for name, dst := range map[string]*int{
		"horizon_days":        &req.HorizonDays,
		"lock_days":           &req.LockDays,
		"step_days":           &req.StepDays,
		"compound_every_days": &req.CompoundEveryDays,
	} {
		v, ok := queryInt(c, name)
		if !ok {
			return
		}
		*dst = v
	}
	start, ok := h.asOf(c)
	if !ok {
		return
	}
	req.Start = start

	points, err := h.engine.ProjectStake(c.Request.Context(), poolID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// ListWalletStakes returns a wallet's positions with rewards pending at as_of
func (h *Handler) ListWalletStakes(c *gin.Context) {
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}
	views, err := h.engine.StakePositions(c.Request.Context(), c.Param("wallet"), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// CreateStake opens a position
func (h *Handler) CreateStake(c *gin.Context) {
	var request StakeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, ok := parseDecimal(c, "amount", request.Amount)
	if !ok {
		return
	}

	position, err := h.engine.Stake(c.Request.Context(), request.WalletAddress, request.PoolID, amount, request.LockDays, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newStakeResp(*position))
}

// ClaimStakeRewards pays out accrued rewards
func (h *Handler) ClaimStakeRewards(c *gin.Context) {
	settlement, err := h.engine.ClaimRewards(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SettlementResp{Claim: newRewardClaimResp(settlement.Claim), Position: newStakeResp(settlement.Position)})
}

// CompoundStake adds accrued rewards to the principal
func (h *Handler) CompoundStake(c *gin.Context) {
	settlement, err := h.engine.Compound(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SettlementResp{Claim: newRewardClaimResp(settlement.Claim), Position: newStakeResp(settlement.Position)})
}

// UnstakePosition closes a position. An empty body means the penalty is not accepted.
func (h *Handler) UnstakePosition(c *gin.Context) {
	var request UnstakeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	result, err := h.engine.Unstake(c.Request.Context(), c.Param("id"), h.now(), request.AcceptPenalty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUnstakeResp(result))
}

// WithdrawStake releases principal once the cooldown has passed
func (h *Handler) WithdrawStake(c *gin.Context) {
	position, err := h.engine.Withdraw(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStakeResp(*position))
}
