package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision used for token and USD quantities. Every division in the sale and
// staking math truncates toward zero at these places, so the tier sold counter
// always equals the sum of individual token amounts.
const (
	TokenDecimals int32 = 18
	UsdDecimals   int32 = 6
)

// DefaultPlatformFeePercent is the platform fee charged on a purchase, in percent
var DefaultPlatformFeePercent = decimal.RequireFromString("2.5")

// DefaultNetworkFeeUsd is the flat network fee added to every purchase
var DefaultNetworkFeeUsd = decimal.RequireFromString("0.5")

var (
	ErrNonPositivePrice = errors.New("price must be positive")
	ErrNegativeAmount   = errors.New("amount must not be negative")

	hundred = decimal.NewFromInt(100)
)

// FeeBreakdown 费用明细
type FeeBreakdown struct {
	PlatformFee decimal.Decimal `json:"platform_fee"`
	NetworkFee  decimal.Decimal `json:"network_fee"`
	TotalFee    decimal.Decimal `json:"total_fee"`
}

// PurchaseQuote is the token amount and fee breakdown for a USD amount at a tier price
type PurchaseQuote struct {
	UsdAmount   decimal.Decimal `json:"usd_amount"`
	Price       decimal.Decimal `json:"price"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	Fees        FeeBreakdown    `json:"fees"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// PricingCalculator converts between USD and tokens and computes purchase fees
type PricingCalculator struct {
	PlatformFeePercent decimal.Decimal
	NetworkFeeUsd      decimal.Decimal
}

// NewPricingCalculator creates a calculator with the given fee settings
func NewPricingCalculator(platformFeePercent, networkFeeUsd decimal.Decimal) *PricingCalculator {
	return &PricingCalculator{
		PlatformFeePercent: platformFeePercent,
		NetworkFeeUsd:      networkFeeUsd,
	}
}

// DefaultPricingCalculator uses a 2.5% platform fee and a 0.50 USD network fee
func DefaultPricingCalculator() *PricingCalculator {
	return NewPricingCalculator(DefaultPlatformFeePercent, DefaultNetworkFeeUsd)
}

// TruncDiv divides a by b and truncates the quotient toward zero at places.
// b must not be zero.
func TruncDiv(a, b decimal.Decimal, places int32) decimal.Decimal {
	q, _ := a.QuoRem(b, places)
	return q
}

// PercentOf returns value * percent / 100 truncated at places
func PercentOf(value, percent decimal.Decimal, places int32) decimal.Decimal {
	return TruncDiv(value.Mul(percent), hundred, places)
}

// TokensForUsd 按档位价格把美元金额换算为代币数量
func TokensForUsd(usdAmount, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNonPositivePrice, price)
	}
	if usdAmount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeAmount, usdAmount)
	}
	return TruncDiv(usdAmount, price, TokenDecimals), nil
}

// UsdForTokens 按档位价格把代币数量换算为美元金额
func UsdForTokens(tokenAmount, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNonPositivePrice, price)
	}
	if tokenAmount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeAmount, tokenAmount)
	}
	return tokenAmount.Mul(price).Truncate(UsdDecimals), nil
}

// Fees returns the platform fee plus the flat network fee for a purchase
func (pc *PricingCalculator) Fees(usdAmount decimal.Decimal) (FeeBreakdown, error) {
	if usdAmount.IsNegative() {
		return FeeBreakdown{}, fmt.Errorf("%w: %s", ErrNegativeAmount, usdAmount)
	}
	platformFee := PercentOf(usdAmount, pc.PlatformFeePercent, UsdDecimals)
	networkFee := pc.NetworkFeeUsd.Truncate(UsdDecimals)
	return FeeBreakdown{
		PlatformFee: platformFee,
		NetworkFee:  networkFee,
		TotalFee:    platformFee.Add(networkFee),
	}, nil
}

// Quote 计算购买报价
func (pc *PricingCalculator) Quote(usdAmount, price decimal.Decimal) (*PurchaseQuote, error) {
	tokens, err := TokensForUsd(usdAmount, price)
	if err != nil {
		return nil, err
	}
	fees, err := pc.Fees(usdAmount)
	if err != nil {
		return nil, err
	}
	return &PurchaseQuote{
		UsdAmount:   usdAmount,
		Price:       price,
		TokenAmount: tokens,
		Fees:        fees,
		TotalCost:   usdAmount.Add(fees.TotalFee),
	}, nil
}
