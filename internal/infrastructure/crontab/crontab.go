package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/position"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

const CronJobTimeout = 5 * time.Minute // Timeout for each cron job execution

// LedgerMaintainer is the part of the picture service the scheduler drives.
type LedgerMaintainer interface {
	AuditLedger(ctx context.Context) ([]position.Report, error)
	CompactLedger(ctx context.Context) ([]position.Report, error)
}

type Crontab struct {
	ctab        *crontab.Crontab
	ledger      LedgerMaintainer
	schedule    string
	autoCompact bool
	log         zerolog.Logger
}

func NewCrontab(cfg *config.Config, ledger LedgerMaintainer, log zerolog.Logger) *Crontab {
	return &Crontab{
		ctab:        crontab.New(),
		ledger:      ledger,
		schedule:    cfg.LedgerAuditSchedule,
		autoCompact: cfg.LedgerAutoCompact,
		log:         log.With().Str("component", "crontab").Logger(),
	}
}

// Run schedules the ledger audit and blocks until ctx is done. Without a schedule it only waits.
func (c *Crontab) Run(ctx context.Context) error {
	defer c.ctab.Shutdown()

	if c.schedule == "" {
		c.log.Info().Msg("ledger audit not scheduled")
		<-ctx.Done()
		return nil
	}

	if err := c.ctab.AddJob(c.schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CronJobTimeout)
		defer cancel()
		c.CheckLedger(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add ledger audit job")
	}
	c.log.Info().Str("schedule", c.schedule).Bool("auto_compact", c.autoCompact).Msg("ledger audit scheduled")

	<-ctx.Done()
	return nil
}

// CheckLedger audits both slots, publishes the drift, and compacts when allowed and needed.
func (c *Crontab) CheckLedger(ctx context.Context) {
	reports, err := c.ledger.AuditLedger(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("ledger audit failed")
		return
	}

	drifted := false
	for _, report := range reports {
		metrics.RecordLedgerAudit(report.Slot, len(report.Plan))
		if report.Healthy() {
			continue
		}
		drifted = true
		c.log.Warn().
			Str("slot", report.Slot).
			Int("ranked", report.Ranked).
			Ints("duplicates", report.Duplicates).
			Ints("gaps", report.Gaps).
			Int("misplaced", len(report.Plan)).
			Msg("ledger drift detected")
	}

	if !drifted || !c.autoCompact {
		return
	}
	if _, err := c.ledger.CompactLedger(ctx); err != nil {
		c.log.Error().Err(err).Msg("ledger compaction failed")
		return
	}
	for _, report := range reports {
		metrics.RecordLedgerAudit(report.Slot, 0)
	}
}
