package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetWalletVesting returns the unlock state of every purchase of a wallet.
// ?as_of= previews a future or past date.
func (h *Handler) GetWalletVesting(c *gin.Context) {
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}
	vesting, err := h.engine.WalletVesting(c.Request.Context(), c.Param("wallet"), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vesting)
}

// ClaimVested claims everything the wallet has unlocked
func (h *Handler) ClaimVested(c *gin.Context) {
	claim, err := h.engine.ClaimVested(c.Request.Context(), c.Param("wallet"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVestingClaimResp(claim))
}
