package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"finbot/internal/api"
	"finbot/internal/bot"
	"finbot/internal/broadcast"
	"finbot/internal/config"
	"finbot/internal/database"
	"finbot/internal/events"
	"finbot/internal/i18n"
	"finbot/internal/logging"
	"finbot/internal/metrics"
	"finbot/internal/models"
	"finbot/internal/repository"
	"finbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("database init failed")
		return err
	}
	defer db.Close()

	translator, err := i18n.Load(cfg.I18n.Dir, cfg.I18n.DefaultLanguage, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("translations init failed")
		return err
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, stateService := initStateService(ctx, cfg, &logger)

	eventBus := events.NewEventBus()

	intakeService := service.NewIntakeService(db, eventBus, cfg.Bot.MaxAmount, &logger)
	userService := service.NewUserService(db, cfg, &logger)
	companyService := service.NewCompanyService(db, &logger)

	if err := seedCompanies(ctx, cfg, companyService, &logger); err != nil {
		return err
	}

	if cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Error().Msg("telegram bot token is not set")
		return os.ErrInvalid
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("BotAPI init failed")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	tgService := service.NewTelegramService(bot.NewBotWrapper(botAPI))

	retryPolicy := broadcast.RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2}
	dispatcher := broadcast.NewDispatcher(db, tgService, eventBus, redisClient, cfg.Broadcast.MessagesPerSecond, cfg.Broadcast.Burst, retryPolicy, &logger)
	go dispatcher.Start(ctx)

	var backupService *database.BackupService
	if cfg.Backup.Enabled {
		backupService = database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, intakeService, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	telegramBot, err := bot.NewBot(
		tgService, cfg, stateService, eventBus,
		intakeService, userService, companyService,
		dispatcher, backupService, translator, &logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("bot init failed")
		return err
	}

	logger.Info().Msg("Bot started...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("creating database directory failed")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("creating exports directory failed")
		return err
	}
	if cfg.Backup.Enabled && cfg.Backup.StoragePath != "" {
		if err := os.MkdirAll(cfg.Backup.StoragePath, 0o755); err != nil {
			logger.Error().Err(err).Msg("creating backup directory failed")
			return err
		}
	}
	return nil
}

// seedCompanies loads the company catalogue file once on start. A missing
// file is fine; companies can also be added through admin commands.
func seedCompanies(ctx context.Context, cfg *config.Config, companyService *service.CompanyService, logger *zerolog.Logger) error {
	companiesPath := os.Getenv("COMPANIES_PATH")
	if companiesPath == "" {
		companiesPath = "configs/companies.yaml"
	}

	data, err := os.ReadFile(companiesPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", companiesPath).Msg("no company seed file, skipping")
			return nil
		}
		logger.Error().Err(err).Msgf("reading %s failed", companiesPath)
		return err
	}

	var seed struct {
		Companies []*models.Company `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Msg("parsing companies.yaml failed")
		return err
	}

	if err := companyService.Seed(ctx, seed.Companies); err != nil {
		logger.Error().Err(err).Msg("seeding companies failed")
		return err
	}
	return nil
}

func initStateService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.StateService) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}

	ttl := time.Duration(models.DefaultStateTTL) * time.Second
	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	fallbackRepo := repository.NewMemoryStateRepository(ttl)
	stateRepo := repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
	return redisClient, service.NewStateService(stateRepo, logger)
}
