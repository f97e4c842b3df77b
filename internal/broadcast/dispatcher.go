package broadcast

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"finbot/internal/database"
	"finbot/internal/domain"
	"finbot/internal/events"
	"finbot/internal/metrics"
	"finbot/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Dispatcher delivers announcements to every registered user, paced by a
// token bucket so the Telegram API flood limits are never hit. Jobs are
// queued through redis when available, with an in-memory channel fallback
// and a database poll as the net underneath both.
type Dispatcher struct {
	repo          domain.Repository
	telegram      domain.TelegramService
	eventBus      domain.EventPublisher
	redis         *redis.Client
	limiter       *rate.Limiter
	retryPolicy   RetryPolicy
	queue         chan int64
	cancelled     sync.Map
	redisQueueKey string
	pollInterval  time.Duration
	logger        *zerolog.Logger
}

func NewDispatcher(
	repo domain.Repository,
	telegram domain.TelegramService,
	eventBus domain.EventPublisher,
	redisClient *redis.Client,
	messagesPerSecond float64,
	burst int,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *Dispatcher {
	if messagesPerSecond <= 0 {
		messagesPerSecond = models.DefaultBroadcastRate
	}
	if burst <= 0 {
		burst = models.DefaultBroadcastBurst
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 30 * time.Second
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &Dispatcher{
		repo:          repo,
		telegram:      telegram,
		eventBus:      eventBus,
		redis:         redisClient,
		limiter:       rate.NewLimiter(rate.Limit(messagesPerSecond), burst),
		retryPolicy:   retry,
		queue:         make(chan int64, models.BroadcastQueueSize),
		redisQueueKey: "broadcast:queue",
		pollInterval:  2 * time.Second,
		logger:        logger,
	}
}

// Enqueue schedules a pending ad for dispatch. Redis first for durability,
// in-memory channel when redis is missing or down; the database poll in
// Start picks up anything both queues lost.
func (d *Dispatcher) Enqueue(ctx context.Context, adID int64) error {
	if adID == 0 {
		return errors.New("ad id is required")
	}

	if d.redis != nil {
		if err := d.redis.LPush(ctx, d.redisQueueKey, adID).Err(); err != nil {
			d.logger.Warn().Err(err).Int64("ad_id", adID).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case d.queue <- adID:
	default:
		d.logger.Warn().Int64("ad_id", adID).Msg("memory queue full, ad left for polling")
	}

	return nil
}

// Cancel flags an ad so the dispatch loop stops before the next send.
// Returns false when the ad was already flagged.
func (d *Dispatcher) Cancel(adID int64) bool {
	_, loaded := d.cancelled.LoadOrStore(adID, true)
	return !loaded
}

func (d *Dispatcher) isCancelled(adID int64) bool {
	_, ok := d.cancelled.Load(adID)
	return ok
}

// Start runs the dispatch loop until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Msg("broadcast dispatcher started")
	defer d.logger.Info().Msg("broadcast dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if adID, ok := d.tryLocalQueue(); ok {
			d.process(ctx, adID)
			continue
		}

		if adID, ok := d.tryRedis(ctx); ok {
			d.process(ctx, adID)
			continue
		}

		ads, err := d.repo.GetPendingAds(ctx, 10)
		if err != nil {
			d.logger.Error().Err(err).Msg("fetch pending ads")
			d.sleep(ctx)
			continue
		}
		if len(ads) == 0 {
			d.sleep(ctx)
			continue
		}

		for _, ad := range ads {
			d.process(ctx, ad.ID)
		}
	}
}

func (d *Dispatcher) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.pollInterval):
	}
}

func (d *Dispatcher) tryLocalQueue() (int64, bool) {
	select {
	case adID := <-d.queue:
		return adID, true
	default:
		return 0, false
	}
}

func (d *Dispatcher) tryRedis(ctx context.Context) (int64, bool) {
	if d.redis == nil {
		return 0, false
	}
	res, err := d.redis.BRPop(ctx, time.Second, d.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return 0, false
		}
		d.logger.Error().Err(err).Msg("redis BRPOP error")
		return 0, false
	}
	if len(res) != 2 {
		return 0, false
	}
	adID, err := strconv.ParseInt(res[1], 10, 64)
	if err != nil {
		d.logger.Error().Err(err).Str("value", res[1]).Msg("decode queued ad id")
		return 0, false
	}
	return adID, true
}

func (d *Dispatcher) process(ctx context.Context, adID int64) {
	if d.isCancelled(adID) {
		d.finalize(ctx, adID, models.AdCancelled, 0, 0)
		return
	}

	// Only one worker flips pending -> sending; a second copy of the job
	// lands here and leaves quietly.
	if err := d.repo.MarkAdSending(ctx, adID); err != nil {
		if errors.Is(err, database.ErrAlreadyResolved) || errors.Is(err, database.ErrNotFound) {
			return
		}
		d.logger.Error().Err(err).Int64("ad_id", adID).Msg("mark ad sending")
		return
	}

	ad, err := d.repo.GetAd(ctx, adID)
	if err != nil {
		d.logger.Error().Err(err).Int64("ad_id", adID).Msg("load ad")
		return
	}

	recipients, err := d.repo.GetBroadcastRecipients(ctx)
	if err != nil {
		d.logger.Error().Err(err).Int64("ad_id", adID).Msg("load recipients")
		d.finalize(ctx, adID, models.AdFailed, 0, 0)
		return
	}

	var sent, failed int64
	status := models.AdDone

	for _, user := range recipients {
		if ctx.Err() != nil || d.isCancelled(adID) {
			status = models.AdCancelled
			break
		}

		if err := d.limiter.Wait(ctx); err != nil {
			status = models.AdCancelled
			break
		}

		if err := d.sendWithRetry(ctx, user.TelegramID, ad.Text); err != nil {
			// Blocked bots and deleted accounts are counted, never retried
			// past the policy; the broadcast keeps going.
			failed++
			metrics.IncBroadcastSend("failed")
			d.logger.Debug().Err(err).Int64("telegram_id", user.TelegramID).Int64("ad_id", adID).Msg("broadcast send failed")
			continue
		}
		sent++
		metrics.IncBroadcastSend("ok")
	}

	d.finalize(ctx, adID, status, sent, failed)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, chatID int64, text string) error {
	var lastErr error
	for attempt := 1; attempt <= d.retryPolicy.MaxRetries; attempt++ {
		if _, err := d.telegram.SendMessage(chatID, text); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == d.retryPolicy.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.retryPolicy.NextDelay(attempt)):
		}
	}
	return lastErr
}

func (d *Dispatcher) finalize(ctx context.Context, adID int64, status string, sent, failed int64) {
	d.cancelled.Delete(adID)

	if err := d.repo.FinalizeAd(ctx, adID, status, sent, failed); err != nil {
		// The tally is lost but the initiating admin must still hear about
		// it, so the finish event goes out flagged as failed.
		d.logger.Error().Err(err).Int64("ad_id", adID).Msg("finalize ad")
		status = models.AdFailed
	}

	ad, err := d.repo.GetAd(ctx, adID)
	if err != nil {
		d.logger.Error().Err(err).Int64("ad_id", adID).Msg("load ad for finish event")
		return
	}

	if d.eventBus != nil {
		payload := events.AdEventPayload{
			AdID:      adID,
			CreatedBy: ad.CreatedBy,
			Status:    status,
			Sent:      sent,
			Failed:    failed,
		}
		if err := d.eventBus.PublishJSON(events.EventAdFinished, payload); err != nil {
			d.logger.Error().Err(err).Int64("ad_id", adID).Msg("publish ad finished event")
		}
	}

	d.logger.Info().
		Int64("ad_id", adID).
		Str("status", status).
		Int64("sent", sent).
		Int64("failed", failed).
		Msg("broadcast finished")
}
