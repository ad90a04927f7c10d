package routes

import (
	"github.com/gin-gonic/gin"

	"crowdsale/internal/handlers"
)

// SetupStakingRoutes sets up pool and stake position routes
func SetupStakingRoutes(r *gin.Engine, h *handlers.Handler) {
	staking := r.Group("/staking")
	{
		staking.GET("/pools", h.ListPools)
		staking.GET("/pools/:id/projection", h.ProjectPool)
		staking.GET("/wallets/:wallet/stakes", h.ListWalletStakes)
		staking.POST("/stakes", h.CreateStake)
		staking.POST("/stakes/:id/claim", h.ClaimStakeRewards)
		staking.POST("/stakes/:id/compound", h.CompoundStake)
		staking.POST("/stakes/:id/unstake", h.UnstakePosition)
		staking.POST("/stakes/:id/withdraw", h.WithdrawStake)
	}
}

// SetupBeneficiaryRoutes sets up beneficiary routes
func SetupBeneficiaryRoutes(r *gin.Engine, h *handlers.Handler) {
	beneficiaries := r.Group("/beneficiaries")
	{
		beneficiaries.GET("", h.ListBeneficiaries)
		beneficiaries.PUT("/selection", h.SelectBeneficiary)
	}
}

// SetupAdminRoutes sets up operator routes
func SetupAdminRoutes(r *gin.Engine, h *handlers.Handler) {
	admin := r.Group("/admin")
	{
		admin.GET("/reconcile", h.Reconcile)
		admin.POST("/accrue", h.AccrueRewards)
	}
}
