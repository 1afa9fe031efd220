package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const pruneSchedule = "0 3 * * *"

type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ArchivePruner deletes archived messages past the retention window, nightly.
type ArchivePruner struct {
	repo      Pruner
	retention time.Duration
	cron      *cron.Cron
	logger    zerolog.Logger
}

func NewArchivePruner(repo Pruner, retention time.Duration, logger zerolog.Logger) *ArchivePruner {
	return &ArchivePruner{
		repo:      repo,
		retention: retention,
		logger:    logger.With().Str("component", "scheduler").Str("job", "prune").Logger(),
	}
}

func (p *ArchivePruner) Start() error {
	c := newCron(p.logger)

	_, err := c.AddFunc(pruneSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		p.Prune(ctx)
	})
	if err != nil {
		return err
	}

	c.Start()
	p.cron = c
	p.logger.Info().Str("schedule", pruneSchedule).Dur("retention", p.retention).Msg("archive pruner started")
	return nil
}

func (p *ArchivePruner) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

func (p *ArchivePruner) Prune(ctx context.Context) int64 {
	cutoff := time.Now().Add(-p.retention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error().Err(err).Msg("archive prune failed")
		return 0
	}
	p.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("archive pruned")
	return n
}
