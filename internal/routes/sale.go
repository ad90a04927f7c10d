package routes

import (
	"github.com/gin-gonic/gin"

	"crowdsale/internal/handlers"
)

// SetupSaleRoutes sets up tier and purchase routes
func SetupSaleRoutes(r *gin.Engine, h *handlers.Handler) {
	sale := r.Group("/sale")
	{
		sale.GET("/tiers", h.ListTiers)
		sale.GET("/tiers/:id/quote", h.QuoteTier)
		sale.POST("/purchases", h.CreatePurchase)
		sale.GET("/feed", h.StreamPurchases)
	}
}

// SetupVestingRoutes sets up vesting routes
func SetupVestingRoutes(r *gin.Engine, h *handlers.Handler) {
	vesting := r.Group("/vesting")
	{
		vesting.GET("/:wallet", h.GetWalletVesting)
		vesting.POST("/:wallet/claim", h.ClaimVested)
	}
}
