package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type StakingPool struct {
	ID             uint            `json:"id"`
	MinStake       decimal.Decimal `json:"min_stake"`
	LockPeriodDays int             `json:"lock_period_days"`
	IsActive       bool            `json:"is_active"`
}

type Stake struct {
	StakeID      string          `json:"stake_id"`
	StakedAmount decimal.Decimal `json:"staked_amount"`
	Status       string          `json:"status"`
}

type ProjectionPoint struct {
	Day              int             `json:"day"`
	CumulativeReward decimal.Decimal `json:"cumulative_reward"`
}

func TestStakingAPI(t *testing.T) {
	wallet := types.NewAccount().PublicKey.ToBase58()

	var pools []StakingPool
	require.Equal(t, http.StatusOK, getJSON(t, "/staking/pools", &pools))
	var pool *StakingPool
	for i := range pools {
		if pools[i].IsActive && pools[i].LockPeriodDays == 0 {
			pool = &pools[i]
			break
		}
	}
	if pool == nil {
		t.Skip("no unlocked pool seeded")
	}

	t.Run("Projection", func(t *testing.T) {
		var points []ProjectionPoint
		path := fmt.Sprintf("/staking/pools/%d/projection?amount=%s&horizon_days=30", pool.ID, pool.MinStake)
		require.Equal(t, http.StatusOK, getJSON(t, path, &points))
		require.Len(t, points, 30)
		assert.Equal(t, 30, points[29].Day)
		assert.False(t, points[29].CumulativeReward.IsNegative())
	})

	var stake Stake
	t.Run("Create Stake", func(t *testing.T) {
		resp := postJSON(t, "/staking/stakes", map[string]interface{}{
			"wallet_address": wallet,
			"pool_id":        pool.ID,
			"amount":         pool.MinStake.String(),
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&stake))
		assert.Equal(t, "active", stake.Status)
	})

	t.Run("Unstake", func(t *testing.T) {
		resp := postJSON(t, "/staking/stakes/"+stake.StakeID+"/unstake", map[string]bool{"accept_penalty": false})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Reconcile", func(t *testing.T) {
		status := getJSON(t, "/admin/reconcile", nil)
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, status)
	})
}
