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

type TierSnapshot struct {
	Tier struct {
		ID          uint            `json:"id"`
		Name        string          `json:"name"`
		MinPurchase decimal.Decimal `json:"min_purchase"`
		IsActive    bool            `json:"is_active"`
	} `json:"tier"`
	Remaining decimal.Decimal `json:"remaining"`
}

type Purchase struct {
	PurchaseID    uint            `json:"purchase_id"`
	TokenAmount   decimal.Decimal `json:"token_amount"`
	TierRemaining decimal.Decimal `json:"tier_remaining"`
}

type WalletVesting struct {
	TotalTokens decimal.Decimal `json:"total_tokens"`
	Vested      decimal.Decimal `json:"vested"`
	Locked      decimal.Decimal `json:"locked"`
}

func TestSaleAPI(t *testing.T) {
	wallet := types.NewAccount().PublicKey.ToBase58()

	var tiers []TierSnapshot
	require.Equal(t, http.StatusOK, getJSON(t, "/sale/tiers", &tiers))
	var tier *TierSnapshot
	for i := range tiers {
		if tiers[i].Tier.IsActive && tiers[i].Remaining.IsPositive() {
			tier = &tiers[i]
			break
		}
	}
	if tier == nil {
		t.Skip("no active tier seeded")
	}

	var purchase Purchase
	t.Run("Create Purchase", func(t *testing.T) {
		resp := postJSON(t, "/sale/purchases", map[string]interface{}{
			"tier_id":        tier.Tier.ID,
			"usd_amount":     tier.Tier.MinPurchase.String(),
			"wallet_address": wallet,
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&purchase))
		assert.NotZero(t, purchase.PurchaseID)
		assert.True(t, purchase.TokenAmount.IsPositive())
	})

	t.Run("Below Minimum", func(t *testing.T) {
		resp := postJSON(t, "/sale/purchases", map[string]interface{}{
			"tier_id":        tier.Tier.ID,
			"usd_amount":     "0.000001",
			"wallet_address": wallet,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Wallet Vesting", func(t *testing.T) {
		var vesting WalletVesting
		require.Equal(t, http.StatusOK, getJSON(t, "/vesting/"+wallet, &vesting))
		assert.True(t, purchase.TokenAmount.Equal(vesting.TotalTokens))
		assert.True(t, vesting.Vested.Add(vesting.Locked).Equal(vesting.TotalTokens))
	})

	t.Run("Unknown Tier", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, getJSON(t, fmt.Sprintf("/sale/tiers/%d/quote?usd=10", 1<<30), nil))
	})
}
