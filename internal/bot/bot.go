package bot

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"finbot/internal/config"
	"finbot/internal/database"
	"finbot/internal/domain"
	"finbot/internal/events"
	"finbot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Bot struct {
	tgService      domain.TelegramService
	config         *config.Config
	stateService   domain.StateManager
	eventBus       domain.EventPublisher
	intakeService  domain.IntakeService
	userService    domain.UserService
	companyService domain.CompanyService
	dispatcher     domain.BroadcastWorker
	backup         *database.BackupService
	i18n           domain.Translator
	logger         *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	stateService domain.StateManager,
	eventBus domain.EventPublisher,
	intakeService domain.IntakeService,
	userService domain.UserService,
	companyService domain.CompanyService,
	dispatcher domain.BroadcastWorker,
	backup *database.BackupService,
	i18n domain.Translator,
	logger *zerolog.Logger,
) (*Bot, error) {
	if eventBus == nil {
		eventBus = events.NewEventBus()
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	b := &Bot{
		tgService:      tgService,
		config:         config,
		stateService:   stateService,
		eventBus:       eventBus,
		intakeService:  intakeService,
		userService:    userService,
		companyService: companyService,
		dispatcher:     dispatcher,
		backup:         backup,
		i18n:           i18n,
		logger:         logger,
	}

	if bus, ok := eventBus.(*events.EventBus); ok {
		bus.Subscribe(events.EventAdFinished, b.onAdFinished)
	}

	return b, nil
}

// onAdFinished reports the final dispatch tally back to the admin who
// started the broadcast.
func (b *Bot) onAdFinished(event *events.Event) error {
	var payload events.AdEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	if payload.CreatedBy == 0 {
		return nil
	}

	lang := b.config.I18n.DefaultLanguage
	text := b.i18n.Resolve(lang, "broadcast.finished", map[string]string{
		"id":     formatID(payload.AdID),
		"status": payload.Status,
		"sent":   formatID(payload.Sent),
		"failed": formatID(payload.Failed),
	})
	b.sendMessage(payload.CreatedBy, text)
	return nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		metrics.IncUpdates()
		metrics.ObserveUpdate(time.Since(start).Seconds())
	}()

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		var userID int64
		if update.Message != nil {
			userID = update.Message.From.ID
		} else if update.CallbackQuery != nil {
			userID = update.CallbackQuery.From.ID
		}

		if userID == 0 {
			return
		}

		if b.isBlocked(userID) {
			return
		}

		// Admins moderate in bursts; the flood limit only guards user traffic.
		if !b.isAdmin(userID) {
			allowed, err := b.stateService.CheckRateLimit(updateCtx, userID, b.config.Bot.RateLimitMessages, time.Duration(b.config.Bot.RateLimitWindow)*time.Second)
			if err != nil {
				b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
			} else if !allowed {
				b.logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
				if update.Message != nil {
					b.reply(updateCtx, update.Message.Chat.ID, userID, "error.rate_limited", nil)
				}
				return
			}
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update)
			return
		}

		if update.Message == nil {
			return
		}

		b.handleMessage(updateCtx, update)
	})
}
