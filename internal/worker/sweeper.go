package worker

import (
	"context"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/repository"
)

type RetentionConfig struct {
	TokenIdleDays int // deactivate tokens unused this long
	QueueDays     int // purge terminal queue items after this many days
	LogDays       int // purge delivery log entries after this many days
}

// Sweeper is the daily retention job: stale token deactivation, expired mute
// cleanup, and queue/log pruning. Every step is idempotent, so a skipped or
// repeated run is harmless. It may overlap a delivery cycle; the two touch
// disjoint rows except where row-level locking already protects them.
type Sweeper struct {
	cfg    RetentionConfig
	tokens repository.TokenRepository
	prefs  repository.PreferenceRepository
	queue  repository.QueueRepository
	logs   repository.DeliveryLogRepository
	logger zerolog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

func NewSweeper(cfg RetentionConfig, tokens repository.TokenRepository, prefs repository.PreferenceRepository, queue repository.QueueRepository, logs repository.DeliveryLogRepository, logger zerolog.Logger) *Sweeper {
	if cfg.TokenIdleDays <= 0 {
		cfg.TokenIdleDays = 90
	}
	if cfg.QueueDays <= 0 {
		cfg.QueueDays = 30
	}
	if cfg.LogDays <= 0 {
		cfg.LogDays = 90
	}
	return &Sweeper{
		cfg:    cfg,
		tokens: tokens,
		prefs:  prefs,
		queue:  queue,
		logs:   logs,
		logger: logger.With().Str("component", "retention_sweeper").Logger(),
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start schedules the daily run. The returned stop function halts the
// schedule; an in-flight run completes.
func (s *Sweeper) Start(ctx context.Context) func() {
	s.cron.AddFunc("@daily", func() { s.Run(ctx) })
	s.cron.Start()
	s.logger.Info().Msg("retention sweeper scheduled")
	return s.cron.Stop
}

// Run executes one retention pass.
func (s *Sweeper) Run(ctx context.Context) {
	now := s.now()

	if n, err := s.tokens.DeactivateIdle(ctx, now.AddDate(0, 0, -s.cfg.TokenIdleDays)); err != nil {
		s.logger.Error().Err(err).Msg("failed to deactivate idle tokens")
	} else if n > 0 {
		s.logger.Info().Int64("count", n).Msg("deactivated idle tokens")
	}

	if n, err := s.prefs.ClearExpiredMutes(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear expired mutes")
	} else if n > 0 {
		s.logger.Info().Int64("count", n).Msg("cleared expired mutes")
	}

	if n, err := s.queue.DeleteOlderThan(ctx, now.AddDate(0, 0, -s.cfg.QueueDays)); err != nil {
		s.logger.Error().Err(err).Msg("failed to purge queue items")
	} else if n > 0 {
		s.logger.Info().Int64("count", n).Msg("purged old queue items")
	}

	if n, err := s.logs.DeleteOlderThan(ctx, now.AddDate(0, 0, -s.cfg.LogDays)); err != nil {
		s.logger.Error().Err(err).Msg("failed to purge delivery log")
	} else if n > 0 {
		s.logger.Info().Int64("count", n).Msg("purged old delivery log entries")
	}
}
