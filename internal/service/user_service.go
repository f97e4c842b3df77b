package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finbot/internal/config"
	"finbot/internal/database"
	"finbot/internal/domain"
	"finbot/internal/models"

	"github.com/rs/zerolog"
)

const customerCodeDigits = 6

type UserService struct {
	repo       domain.Repository
	config     *config.Config
	logger     *zerolog.Logger
	adminsMap  map[int64]bool
	blockedMap map[int64]bool
}

func NewUserService(repo domain.Repository, config *config.Config, logger *zerolog.Logger) *UserService {
	adminsMap := make(map[int64]bool)
	for _, id := range config.Admins {
		adminsMap[id] = true
	}

	blockedMap := make(map[int64]bool)
	for _, id := range config.Blocked {
		blockedMap[id] = true
	}

	return &UserService{
		repo:       repo,
		config:     config,
		logger:     logger,
		adminsMap:  adminsMap,
		blockedMap: blockedMap,
	}
}

func (s *UserService) IsAdmin(userID int64) bool {
	return s.adminsMap[userID]
}

func (s *UserService) IsBlocked(userID int64) bool {
	return s.blockedMap[userID]
}

// Register stores a new user with a freshly issued customer code. Calling
// it again for a known telegram id refreshes the profile fields instead.
func (s *UserService) Register(ctx context.Context, user *models.User) error {
	user.IsAdmin = s.IsAdmin(user.TelegramID)
	user.IsBlocked = s.IsBlocked(user.TelegramID)

	existing, err := s.repo.GetUserByTelegramID(ctx, user.TelegramID)
	if err == nil {
		user.ID = existing.ID
		user.CustomerCode = existing.CustomerCode
		if user.Currency == "" {
			user.Currency = existing.Currency
		}
		if user.LanguageCode == "" {
			user.LanguageCode = existing.LanguageCode
		}
		return s.repo.UpdateUser(ctx, user)
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	// Concurrent registrations can race for the same sequence number; the
	// unique index on customer_code arbitrates, so retry with a fresh code.
	for attempt := 0; attempt < 3; attempt++ {
		code, err := s.nextCustomerCode(ctx)
		if err != nil {
			return err
		}
		user.CustomerCode = code

		err = s.repo.CreateUser(ctx, user)
		if err == nil {
			s.logger.Info().
				Int64("telegram_id", user.TelegramID).
				Str("customer_code", code).
				Msg("user registered")
			return nil
		}
		if !errors.Is(err, database.ErrDuplicateCustomerCode) {
			return err
		}
	}

	return fmt.Errorf("failed to allocate customer code after retries")
}

// nextCustomerCode issues the next code in the PREFIX-YEAR-NNNNNN series,
// e.g. C-2025-000042. The sequence restarts every year.
func (s *UserService) nextCustomerCode(ctx context.Context) (string, error) {
	prefix := s.config.Customer.CodePrefix
	if prefix == "" {
		prefix = models.DefaultCustomerCodePrefix
	}
	year := time.Now().Year()

	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)
	last, err := s.repo.MaxCustomerCode(ctx, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to query last customer code: %w", err)
	}

	seq := 1
	if last != "" {
		parts := strings.Split(last, "-")
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return "", fmt.Errorf("malformed customer code %q: %w", last, err)
		}
		seq = n + 1
	}

	return fmt.Sprintf("%s-%d-%0*d", prefix, year, customerCodeDigits, seq), nil
}

func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetUserByTelegramID(ctx, telegramID)
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *UserService) GetByCustomerCode(ctx context.Context, code string) (*models.User, error) {
	return s.repo.GetUserByCustomerCode(ctx, code)
}

func (s *UserService) UpdateLanguage(ctx context.Context, telegramID int64, lang string) error {
	return s.repo.UpdateUserLanguage(ctx, telegramID, lang)
}

func (s *UserService) UpdatePhone(ctx context.Context, telegramID int64, phone string) error {
	return s.repo.UpdateUserPhone(ctx, telegramID, phone)
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetAllUsers(ctx)
}

func (s *UserService) GetBroadcastRecipients(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetBroadcastRecipients(ctx)
}
