package tokenomics

import (
	"time"

	"github.com/shopspring/decimal"

	"crowdsale/internal/models"
	"crowdsale/pkg/utils"
)

// VestingTerms are the unlock parameters of a tier
type VestingTerms struct {
	TgePercent decimal.Decimal `json:"tge_percent"`
	Months     int             `json:"months"`
}

// TermsOf returns the vesting terms of a tier
func TermsOf(tier models.SaleTier) VestingTerms {
	return VestingTerms{TgePercent: tier.VestingTgePercent, Months: tier.VestingMonths}
}

// Milestone is one unlock tranche. Index 0 is the TGE tranche.
type Milestone struct {
	Index      int             `json:"index"`
	Timestamp  time.Time       `json:"timestamp"`
	Amount     decimal.Decimal `json:"amount"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// VestingScheduleCalculator derives unlock amounts from purchase positions.
// It holds no state besides the optional global TGE.
type VestingScheduleCalculator struct {
	// TGETime is the vesting start shared by every position. Zero means each
	// position starts vesting at its purchase time.
	TGETime time.Time
}

func NewVestingScheduleCalculator(tgeTime time.Time) *VestingScheduleCalculator {
	return &VestingScheduleCalculator{TGETime: tgeTime}
}

// Start returns the vesting start of a position
func (v *VestingScheduleCalculator) Start(position models.PurchasePosition) time.Time {
	if !v.TGETime.IsZero() {
		return v.TGETime
	}
	return position.PurchaseTime
}

// tgeTokens 计算TGE时刻立即释放的代币
func tgeTokens(tokenAmount decimal.Decimal, terms VestingTerms) decimal.Decimal {
	if terms.Months <= 0 {
		return tokenAmount
	}
	tge := utils.PercentOf(tokenAmount, terms.TgePercent, utils.TokenDecimals)
	if tge.GreaterThan(tokenAmount) {
		return tokenAmount
	}
	if tge.IsNegative() {
		return decimal.Zero
	}
	return tge
}

// monthsElapsed counts whole calendar months from start to asOf
func monthsElapsed(start, asOf time.Time) int {
	if asOf.Before(start) {
		return -1
	}
	m := (asOf.Year()-start.Year())*12 + int(asOf.Month()-start.Month())
	for m > 0 && start.AddDate(0, m, 0).After(asOf) {
		m--
	}
	return m
}

// vestedAfter returns the tokens unlocked once m months have elapsed.
// The linear part releases in whole-month steps, not continuously.
func vestedAfter(tokenAmount decimal.Decimal, terms VestingTerms, m int) decimal.Decimal {
	if m < 0 {
		return decimal.Zero
	}
	if terms.Months <= 0 || m >= terms.Months {
		return tokenAmount
	}
	tge := tgeTokens(tokenAmount, terms)
	remaining := tokenAmount.Sub(tge)
	linear := utils.TruncDiv(remaining.Mul(decimal.NewFromInt(int64(m))), decimal.NewFromInt(int64(terms.Months)), utils.TokenDecimals)
	return tge.Add(linear)
}

// VestedAt returns the total unlocked amount of the position at asOf, claimed or not
func (v *VestingScheduleCalculator) VestedAt(position models.PurchasePosition, terms VestingTerms, asOf time.Time) decimal.Decimal {
	return vestedAfter(position.TokenAmount, terms, monthsElapsed(v.Start(position), asOf))
}

// ClaimableAt returns the unlocked and not yet claimed amount, clamped to [0, tokenAmount]
func (v *VestingScheduleCalculator) ClaimableAt(position models.PurchasePosition, terms VestingTerms, asOf time.Time) decimal.Decimal {
	claimable := v.VestedAt(position, terms, asOf).Sub(position.ClaimedAmount)
	if claimable.IsNegative() {
		return decimal.Zero
	}
	if claimable.GreaterThan(position.TokenAmount) {
		return position.TokenAmount
	}
	return claimable
}

// LockedAt returns the amount still locked at asOf
func (v *VestingScheduleCalculator) LockedAt(position models.PurchasePosition, terms VestingTerms, asOf time.Time) decimal.Decimal {
	return position.TokenAmount.Sub(v.VestedAt(position, terms, asOf))
}

// Milestones returns every unlock tranche of the position. Amounts sum to the token amount.
func (v *VestingScheduleCalculator) Milestones(position models.PurchasePosition, terms VestingTerms) []Milestone {
	start := v.Start(position)
	tge := vestedAfter(position.TokenAmount, terms, 0)
	milestones := []Milestone{{Index: 0, Timestamp: start, Amount: tge, Cumulative: tge}}
	prev := tge
	for m := 1; m <= terms.Months; m++ {
		cumulative := vestedAfter(position.TokenAmount, terms, m)
		milestones = append(milestones, Milestone{
			Index:      m,
			Timestamp:  start.AddDate(0, m, 0),
			Amount:     cumulative.Sub(prev),
			Cumulative: cumulative,
		})
		prev = cumulative
	}
	return milestones
}

// NextMilestone returns the first tranche strictly after asOf, or nil when fully vested
func (v *VestingScheduleCalculator) NextMilestone(position models.PurchasePosition, terms VestingTerms, asOf time.Time) *Milestone {
	for _, milestone := range v.Milestones(position, terms) {
		if milestone.Timestamp.After(asOf) && milestone.Amount.IsPositive() {
			m := milestone
			return &m
		}
	}
	return nil
}

// ScheduleFor returns the unlock tranches of a purchase event
func (v *VestingScheduleCalculator) ScheduleFor(event PurchaseEvent) []Milestone {
	position := models.PurchasePosition{
		ID:            event.PurchaseID,
		WalletAddress: event.WalletAddress,
		TierID:        event.TierID,
		TokenAmount:   event.TokenAmount,
		PurchaseTime:  event.PurchaseTime,
	}
	return v.Milestones(position, VestingTerms{TgePercent: event.VestingTgePercent, Months: event.VestingMonths})
}
