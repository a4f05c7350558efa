package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/gateway"
	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/notification"
	"github.com/cappiels/chat-notify-api/internal/repository"
)

type Config struct {
	PollInterval      time.Duration
	BatchSize         int
	FanoutConcurrency int
}

// Worker drives delivery: it polls the queue on a fixed interval, claims a
// batch of due pending intents, fans each one out to the user's active
// devices, and records the aggregate outcome. A busy flag keeps a slow cycle
// from overlapping the next tick.
type Worker struct {
	cfg     Config
	queue   repository.QueueRepository
	tokens  repository.TokenRepository
	prefs   repository.PreferenceRepository
	logs    repository.DeliveryLogRepository
	gateway gateway.Gateway
	logger  zerolog.Logger
	busy    atomic.Bool
	now     func() time.Time
}

func New(cfg Config, queue repository.QueueRepository, tokens repository.TokenRepository, prefs repository.PreferenceRepository, logs repository.DeliveryLogRepository, gw gateway.Gateway, logger zerolog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.FanoutConcurrency <= 0 {
		cfg.FanoutConcurrency = 4
	}
	return &Worker{
		cfg:     cfg,
		queue:   queue,
		tokens:  tokens,
		prefs:   prefs,
		logs:    logs,
		gateway: gw,
		logger:  logger.With().Str("component", "delivery_worker").Logger(),
		now:     time.Now,
	}
}

// Start blocks, polling until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.cfg.PollInterval).Msg("delivery worker started")
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("delivery worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.RunCycle(ctx)
		}
	}
}

// RunCycle executes one poll cycle. A tick that arrives while the previous
// cycle is still running observes the busy flag and returns immediately.
func (w *Worker) RunCycle(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	defer w.busy.Store(false)

	intents, err := w.queue.ClaimBatch(ctx, w.cfg.BatchSize, w.now())
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to claim batch")
		return
	}

	for _, intent := range intents {
		if err := w.processIntent(ctx, intent); err != nil {
			// Log and keep going; one item never stalls the batch.
			w.logger.Error().Err(err).Str("intent_id", intent.ID).Msg("error processing intent")
		}
	}
}

func (w *Worker) processIntent(ctx context.Context, intent models.NotificationIntent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic processing intent: %v", r)
		}
	}()

	tokens, err := w.tokens.ActiveForUser(ctx, intent.UserID)
	if err != nil {
		return errors.Wrap(err, "fetch active tokens")
	}
	if len(tokens) == 0 {
		// Every device vanished between enqueue and delivery. Not a failure.
		ledger := []models.DeviceFailure{{Error: "no active device tokens at delivery time"}}
		if err := w.queue.Finish(ctx, intent.ID, models.StatusCancelled, 0, ledger); err != nil {
			return errors.Wrap(err, "mark intent cancelled")
		}
		w.logger.Info().Str("intent_id", intent.ID).Str("user_id", intent.UserID).Msg("intent cancelled, no devices")
		return nil
	}

	prefs := w.effectivePreferences(ctx, intent)
	results := w.fanOut(ctx, intent, prefs, tokens)

	var (
		ledger    []models.DeviceFailure
		succeeded int
	)
	for _, res := range results {
		w.recordAttempt(ctx, intent, res)
		if res.err == nil {
			succeeded++
			continue
		}
		ledger = append(ledger, models.DeviceFailure{
			Token: res.token.Token,
			Code:  errorCode(res.err),
			Error: res.err.Error(),
		})
		if gateway.IsPermanent(res.err) {
			// Dead token; future intents skip it. The user's other devices
			// are untouched.
			if derr := w.tokens.Deactivate(ctx, intent.UserID, res.token.Token); derr != nil {
				w.logger.Warn().Err(derr).Str("user_id", intent.UserID).Msg("failed to deactivate invalid token")
			} else {
				w.logger.Info().Str("user_id", intent.UserID).Str("platform", string(res.token.Platform)).Msg("deactivated invalid device token")
			}
		}
	}

	// One delivered device makes the item sent. Zero makes it failed, and
	// failed is terminal: re-delivery requires the producer to enqueue a new
	// intent.
	status := models.StatusSent
	retryDelta := 0
	if succeeded == 0 {
		status = models.StatusFailed
		retryDelta = 1
	}
	if err := w.queue.Finish(ctx, intent.ID, status, retryDelta, ledger); err != nil {
		return errors.Wrap(err, "record intent outcome")
	}

	w.logger.Info().
		Str("intent_id", intent.ID).
		Str("status", string(status)).
		Int("devices", len(tokens)).
		Int("delivered", succeeded).
		Msg("intent processed")
	return nil
}

// effectivePreferences resolves the payload-shaping flags (preview, sound,
// badge). A lookup failure falls back to defaults rather than blocking
// delivery of an already-eligible intent.
func (w *Worker) effectivePreferences(ctx context.Context, intent models.NotificationIntent) models.Preferences {
	tiers, err := w.prefs.Tiers(ctx, intent.UserID, intent.WorkspaceID, intent.ThreadID)
	if err != nil {
		w.logger.Warn().Err(err).Str("intent_id", intent.ID).Msg("preference lookup failed, using defaults")
		return models.DefaultPreferences()
	}
	return notification.Resolve(tiers.Global, tiers.Workspace, tiers.Thread, w.now())
}

type attemptResult struct {
	token   models.DeviceToken
	receipt gateway.Receipt
	err     error
}

// fanOut delivers to every device with bounded concurrency so a user with
// many devices cannot burst-load the gateway. One token's failure never
// blocks the others.
func (w *Worker) fanOut(ctx context.Context, intent models.NotificationIntent, prefs models.Preferences, tokens []models.DeviceToken) []attemptResult {
	sem := make(chan struct{}, w.cfg.FanoutConcurrency)
	results := make([]attemptResult, len(tokens))

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token models.DeviceToken) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			msg := notification.BuildMessage(intent, prefs, token)
			receipt, err := w.gateway.Send(ctx, msg)
			results[i] = attemptResult{token: token, receipt: receipt, err: err}
		}(i, token)
	}
	wg.Wait()

	return results
}

func (w *Worker) recordAttempt(ctx context.Context, intent models.NotificationIntent, res attemptResult) {
	entry := models.DeliveryLogEntry{
		IntentID: intent.ID,
		Token:    res.token.Token,
		Platform: res.token.Platform,
		Success:  res.err == nil,
	}
	if res.err != nil {
		entry.ErrorCode = errorCode(res.err)
		entry.ErrorMessage = res.err.Error()
	} else {
		entry.MessageID = res.receipt.MessageID
	}
	if _, err := w.logs.Insert(ctx, entry); err != nil {
		w.logger.Warn().Err(err).Str("intent_id", intent.ID).Msg("failed to record delivery attempt")
	}
}

func errorCode(err error) string {
	if gwErr, ok := err.(*gateway.Error); ok {
		return gwErr.Code
	}
	return ""
}
