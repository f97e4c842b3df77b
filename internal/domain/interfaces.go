package domain

import (
	"context"
	"time"

	"finbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateUserLanguage(ctx context.Context, telegramID int64, lang string) error
	UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByCustomerCode(ctx context.Context, code string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	GetBroadcastRecipients(ctx context.Context) ([]*models.User, error)
	MaxCustomerCode(ctx context.Context, pattern string) (string, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	GetActiveCompanies(ctx context.Context) ([]*models.Company, error)
	SetCompanyActive(ctx context.Context, id int64, active bool) error
	CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error
	GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error)
	GetPaymentMethodsByCompany(ctx context.Context, companyID int64) ([]*models.PaymentMethod, error)
	SetPaymentMethodActive(ctx context.Context, id int64, active bool) error

	CreateRequest(ctx context.Context, req *models.Request) error
	GetRequest(ctx context.Context, id int64) (*models.Request, error)
	ResolveRequest(ctx context.Context, id int64, status string, adminID int64, note string) error
	GetRequestsByStatus(ctx context.Context, status string, limit int) ([]*models.Request, error)
	GetUserRequests(ctx context.Context, userID int64, limit int) ([]*models.Request, error)
	GetRequestsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Request, error)
	CountRequestsByStatus(ctx context.Context, status string) (int64, error)

	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id int64) (*models.Complaint, error)
	CloseComplaint(ctx context.Context, id int64, adminID int64) error
	GetComplaintsByStatus(ctx context.Context, status string, limit int) ([]*models.Complaint, error)
	CountComplaintsByStatus(ctx context.Context, status string) (int64, error)

	CreateAd(ctx context.Context, ad *models.Ad) error
	GetAd(ctx context.Context, id int64) (*models.Ad, error)
	MarkAdSending(ctx context.Context, id int64) error
	FinalizeAd(ctx context.Context, id int64, status string, sent, failed int64) error
	GetPendingAds(ctx context.Context, limit int) ([]*models.Ad, error)
}

type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type StateManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error
	ClearUserState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
	SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// IntakeService owns the request and complaint lifecycles.
type IntakeService interface {
	CreateRequest(ctx context.Context, req *models.Request) error
	GetRequest(ctx context.Context, id int64) (*models.Request, error)
	ApproveRequest(ctx context.Context, requestID, adminID int64, note string) error
	RejectRequest(ctx context.Context, requestID, adminID int64, note string) error
	GetPendingRequests(ctx context.Context, limit int) ([]*models.Request, error)
	GetUserRequests(ctx context.Context, userID int64, limit int) ([]*models.Request, error)
	GetRequestsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Request, error)

	CreateComplaint(ctx context.Context, c *models.Complaint) error
	CloseComplaint(ctx context.Context, complaintID, adminID int64) error
	GetOpenComplaints(ctx context.Context, limit int) ([]*models.Complaint, error)

	CreateAd(ctx context.Context, ad *models.Ad) error

	Stats(ctx context.Context) (*models.Stats, error)
}

type UserService interface {
	IsAdmin(userID int64) bool
	IsBlocked(userID int64) bool
	Register(ctx context.Context, user *models.User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByCustomerCode(ctx context.Context, code string) (*models.User, error)
	UpdateLanguage(ctx context.Context, telegramID int64, lang string) error
	UpdatePhone(ctx context.Context, telegramID int64, phone string) error
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	GetBroadcastRecipients(ctx context.Context) ([]*models.User, error)
}

type CompanyService interface {
	GetActiveCompanies(ctx context.Context) ([]*models.Company, error)
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	GetPaymentMethods(ctx context.Context, companyID int64) ([]*models.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error)
	AddCompany(ctx context.Context, company *models.Company) error
	AddPaymentMethod(ctx context.Context, pm *models.PaymentMethod) error
	SetCompanyActive(ctx context.Context, id int64, active bool) error
	SetPaymentMethodActive(ctx context.Context, id int64, active bool) error
}

// BroadcastWorker queues announcements for paced delivery.
type BroadcastWorker interface {
	Enqueue(ctx context.Context, adID int64) error
	Cancel(adID int64) bool
}

// Translator resolves localized message text.
type Translator interface {
	Resolve(lang, key string, params map[string]string) string
	Has(lang string) bool
}
