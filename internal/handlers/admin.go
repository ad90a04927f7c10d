package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Reconcile checks stored totals against their ledgers and the vault.
// Returns 200 when consistent and 409 with the report otherwise.
func (h *Handler) Reconcile(c *gin.Context) {
	report, err := h.engine.Reconcile(c.Request.Context(), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}

// AccrueRewards brings every active position up to now
func (h *Handler) AccrueRewards(c *gin.Context) {
	updated, err := h.engine.AccrueAll(c.Request.Context(), h.now())
	if err != nil {
		log.WithError(err).Warn("accrual finished with failures")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "updated": updated})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// StreamPurchases upgrades to a websocket and pushes committed purchases
func (h *Handler) StreamPurchases(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "purchase feed disabled"})
		return
	}
	if err := h.feed.Serve(c.Writer, c.Request); err != nil {
		log.WithError(err).Warn("purchase feed connection failed")
	}
}
