package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListBeneficiaries returns every beneficiary with the total credited to it
func (h *Handler) ListBeneficiaries(c *gin.Context) {
	views, err := h.engine.Beneficiaries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// SelectBeneficiary sets the wallet's beneficiary for future reward claims
func (h *Handler) SelectBeneficiary(c *gin.Context) {
	var request BeneficiarySelectionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	selection, err := h.engine.SelectBeneficiary(c.Request.Context(), request.WalletAddress, request.BeneficiaryID, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, selection)
}
