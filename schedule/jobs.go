package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"

	"crowdsale/internal/tokenomics"
	"crowdsale/pkg/config"
)

// Default cron specs, with seconds
const (
	DefaultAccrualSpec   = "0 * * * * *"
	DefaultTierCloseSpec = "30 * * * * *"
	DefaultReconcileSpec = "0 */15 * * * *"

	jobTimeout = 5 * time.Minute
)

// Jobs runs the periodic maintenance of the engine
type Jobs struct {
	engine *tokenomics.Engine
	now    func() time.Time
}

func NewJobs(engine *tokenomics.Engine) *Jobs {
	return &Jobs{engine: engine, now: func() time.Time { return time.Now().UTC() }}
}

// AccrueRewards 把所有活跃仓位的奖励计算到当前时间
func (j *Jobs) AccrueRewards(ctx context.Context) error {
	updated, err := j.engine.AccrueAll(ctx, j.now())
	if err != nil {
		return fmt.Errorf("accrual finished with failures after %d positions: %w", updated, err)
	}
	logger.Infof("> 奖励计算完成, 更新 %d 个仓位", updated)
	return nil
}

// CloseExpiredTiers 关闭销售窗口已结束的档位
func (j *Jobs) CloseExpiredTiers(ctx context.Context) error {
	closed, err := j.engine.CloseExpiredTiers(ctx, j.now())
	if err != nil {
		return err
	}
	if len(closed) > 0 {
		logger.Infof("> 已关闭档位: %v", closed)
	}
	return nil
}

// Reconcile checks stored totals. Discrepancies are logged by the engine and
// returned as an error so the run is marked failed.
func (j *Jobs) Reconcile(ctx context.Context) error {
	report, err := j.engine.Reconcile(ctx, j.now())
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("reconciliation found %d discrepancies", len(report.Discrepancies))
	}
	return nil
}

// Register adds every job to c. Specs come from ACCRUAL_CRON, TIER_CLOSE_CRON
// and RECONCILE_CRON; "-" disables a job.
func (j *Jobs) Register(c *cron.Cron) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"accrue_rewards", config.Getenv("ACCRUAL_CRON", DefaultAccrualSpec), j.AccrueRewards},
		{"close_expired_tiers", config.Getenv("TIER_CLOSE_CRON", DefaultTierCloseSpec), j.CloseExpiredTiers},
		{"reconcile", config.Getenv("RECONCILE_CRON", DefaultReconcileSpec), j.Reconcile},
	}
	for _, job := range jobs {
		if job.spec == "-" {
			logger.Warnf("> 定时任务 %s 已禁用", job.name)
			continue
		}
		job := job
		if _, err := c.AddFunc(job.spec, func() { runJob(job.name, job.run) }); err != nil {
			return fmt.Errorf("failed to add job %s with spec %q: %w", job.name, job.spec, err)
		}
		logger.Infof("> 定时任务 %s 已添加: %s", job.name, job.spec)
	}
	return nil
}

func runJob(name string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	start := time.Now()
	if err := run(ctx); err != nil {
		logger.WithField("job", name).Errorf("> 定时任务执行失败: %v", err)
		return
	}
	logger.WithFields(logger.Fields{"job": name, "elapsed": time.Since(start).String()}).Info("> 定时任务执行完成")
}

// NewCron creates a seconds-precision cron that skips a run while the previous one is still going
func NewCron() *cron.Cron {
	return cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
}
