package tokenomics

import (
	"time"

	"github.com/shopspring/decimal"

	"crowdsale/internal/models"
)

const secondsPerDay = 24 * 60 * 60

// ProjectionRequest describes a hypothetical stake.
// LockDays 0 means the pool lock, StepDays 0 means one point per day and
// CompoundEveryDays 0 disables compounding.
type ProjectionRequest struct {
	Pool              models.StakingPool
	Amount            decimal.Decimal
	LockDays          int
	HorizonDays       int
	StepDays          int
	CompoundEveryDays int
	Start             time.Time
}

// ProjectionPoint is the forecast state at the end of a day
type ProjectionPoint struct {
	Day              int             `json:"day"`
	Date             time.Time       `json:"date"`
	PeriodReward     decimal.Decimal `json:"period_reward"`
	CumulativeReward decimal.Decimal `json:"cumulative_reward"`
	CompoundedAmount decimal.Decimal `json:"compounded_amount"`
	Unlocked         bool            `json:"unlocked"`
}

// RewardProjectionEngine forecasts reward curves with the same accrual
// function the staking engine applies to live positions
type RewardProjectionEngine struct {
	MaxDays int
}

func NewRewardProjectionEngine(maxDays int) *RewardProjectionEngine {
	return &RewardProjectionEngine{MaxDays: maxDays}
}

// Project returns one point per day for horizonDays days
func (p *RewardProjectionEngine) Project(pool models.StakingPool, amount decimal.Decimal, lockDays, horizonDays int, start time.Time) ([]ProjectionPoint, error) {
	return p.ProjectWith(ProjectionRequest{
		Pool:        pool,
		Amount:      amount,
		LockDays:    lockDays,
		HorizonDays: horizonDays,
		Start:       start,
	})
}

// ProjectWith forecasts a stake. Within a compounding segment the cumulative
// reward is computed from the segment start in one step, so the last point
// equals what a live position accrues over the same time.
func (p *RewardProjectionEngine) ProjectWith(req ProjectionRequest) ([]ProjectionPoint, error) {
	if !req.Amount.IsPositive() {
		return nil, newError(ErrInvalidAmount, "projected amount must be positive, got %s", req.Amount)
	}
	if req.HorizonDays <= 0 {
		return nil, newError(ErrInvalidHorizon, "horizon must be at least one day, got %d", req.HorizonDays)
	}
	if p.MaxDays > 0 && req.HorizonDays > p.MaxDays {
		return nil, newError(ErrInvalidHorizon, "horizon of %d days exceeds the maximum of %d", req.HorizonDays, p.MaxDays)
	}
	if req.LockDays < 0 {
		return nil, newError(ErrInvalidLockPeriod, "lock period must not be negative, got %d", req.LockDays)
	}
	if req.CompoundEveryDays < 0 {
		return nil, newError(ErrInvalidHorizon, "compounding interval must not be negative, got %d", req.CompoundEveryDays)
	}

	lockDays := req.LockDays
	if lockDays == 0 {
		lockDays = req.Pool.LockPeriodDays
	}
	if lockDays < req.Pool.LockPeriodDays {
		return nil, newError(ErrInvalidLockPeriod, "lock of %d days is shorter than the pool lock of %d days",
			lockDays, req.Pool.LockPeriodDays)
	}
	step := req.StepDays
	if step <= 0 {
		step = 1
	}
	apy := req.Pool.APY()

	points := make([]ProjectionPoint, 0, req.HorizonDays/step+1)
	principal := req.Amount
	segmentStart := 0
	segmentBase := decimal.Zero
	lastReported := decimal.Zero

	for day := 1; day <= req.HorizonDays; day++ {
		segmentReward := Accrual(principal, apy, int64(day-segmentStart)*secondsPerDay)
		cumulative := segmentBase.Add(segmentReward)

		if req.CompoundEveryDays > 0 && day-segmentStart == req.CompoundEveryDays {
			principal = principal.Add(segmentReward)
			segmentBase = cumulative
			segmentStart = day
		}

		if day%step == 0 || day == req.HorizonDays {
			points = append(points, ProjectionPoint{
				Day:              day,
				Date:             req.Start.Add(time.Duration(day) * secondsPerDay * time.Second),
				PeriodReward:     cumulative.Sub(lastReported),
				CumulativeReward: cumulative,
				CompoundedAmount: principal,
				Unlocked:         day >= lockDays,
			})
			lastReported = cumulative
		}
	}
	return points, nil
}
