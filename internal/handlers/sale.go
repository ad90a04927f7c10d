package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListTiers returns every tier with its remaining allocation
func (h *Handler) ListTiers(c *gin.Context) {
	snapshots, err := h.engine.TierSnapshots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

// QuoteTier prices ?usd= against a tier without reserving
func (h *Handler) QuoteTier(c *gin.Context) {
	tierID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	usd, ok := parseDecimal(c, "usd", c.Query("usd"))
	if !ok {
		return
	}
	quote, err := h.engine.Quote(c.Request.Context(), tierID, usd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CreatePurchase reserves tokens of a tier for a wallet
func (h *Handler) CreatePurchase(c *gin.Context) {
	var request PurchaseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	usd, ok := parseDecimal(c, "usd_amount", request.UsdAmount)
	if !ok {
		return
	}

	reservation, err := h.engine.Reserve(c.Request.Context(), request.TierID, usd, request.WalletAddress, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPurchaseResp(reservation))
}
