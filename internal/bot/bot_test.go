package bot

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"finbot/internal/config"
	"finbot/internal/database"
	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTelegramService struct {
	domain.TelegramService
	updatesChan chan tgbotapi.Update
	sentTexts   []string
	edits       []string
	callbacks   []string
	documents   []tgbotapi.DocumentConfig
}

func (m *mockTelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updatesChan
}

func (m *mockTelegramService) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "test_bot"}
}

func (m *mockTelegramService) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		m.sentTexts = append(m.sentTexts, v.Text)
	case tgbotapi.DocumentConfig:
		m.documents = append(m.documents, v)
	}
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	m.sentTexts = append(m.sentTexts, text)
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramService) SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.sentTexts = append(m.sentTexts, text)
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramService) EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.edits = append(m.edits, text)
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramService) AnswerCallback(callbackID string, text string) error {
	m.callbacks = append(m.callbacks, text)
	return nil
}

func (m *mockTelegramService) StopReceivingUpdates() {}

func (m *mockTelegramService) sawText(substr string) bool {
	for _, text := range append(m.sentTexts, m.edits...) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

type mockStateManager struct {
	states map[int64]*models.UserState
}

func (m *mockStateManager) SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error {
	m.states[userID] = &models.UserState{UserID: userID, Step: step, Data: data}
	return nil
}

func (m *mockStateManager) GetUserState(ctx context.Context, userID int64) (*models.UserState, error) {
	return m.states[userID], nil
}

func (m *mockStateManager) ClearUserState(ctx context.Context, userID int64) error {
	delete(m.states, userID)
	return nil
}

func (m *mockStateManager) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	return true, nil
}

type mockUserService struct {
	domain.UserService
	byTelegramID map[int64]*models.User
	byID         map[int64]*models.User
	registered   []*models.User
	admins       map[int64]bool
}

func (m *mockUserService) IsAdmin(userID int64) bool   { return m.admins[userID] }
func (m *mockUserService) IsBlocked(userID int64) bool { return false }

func (m *mockUserService) Register(ctx context.Context, user *models.User) error {
	user.ID = int64(len(m.registered) + 1)
	user.CustomerCode = "C-2025-000001"
	m.registered = append(m.registered, user)
	m.byTelegramID[user.TelegramID] = user
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserService) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, ok := m.byTelegramID[telegramID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return user, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return user, nil
}

func (m *mockUserService) UpdateLanguage(ctx context.Context, telegramID int64, lang string) error {
	if user, ok := m.byTelegramID[telegramID]; ok {
		user.LanguageCode = lang
	}
	return nil
}

func (m *mockUserService) GetBroadcastRecipients(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(m.byID))
	for _, user := range m.byID {
		out = append(out, user)
	}
	return out, nil
}

type mockCompanyService struct {
	domain.CompanyService
	companies []*models.Company
	methods   map[int64][]*models.PaymentMethod
}

func (m *mockCompanyService) GetActiveCompanies(ctx context.Context) ([]*models.Company, error) {
	return m.companies, nil
}

func (m *mockCompanyService) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	for _, c := range m.companies {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockCompanyService) GetPaymentMethods(ctx context.Context, companyID int64) ([]*models.PaymentMethod, error) {
	return m.methods[companyID], nil
}

func (m *mockCompanyService) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	for _, methods := range m.methods {
		for _, pm := range methods {
			if pm.ID == id {
				return pm, nil
			}
		}
	}
	return nil, database.ErrNotFound
}

type mockIntakeService struct {
	domain.IntakeService
	requests   []*models.Request
	complaints []*models.Complaint
	ads        []*models.Ad
	resolveErr error
	resolved   []int64
}

func (m *mockIntakeService) CreateRequest(ctx context.Context, req *models.Request) error {
	req.ID = int64(len(m.requests) + 1)
	req.Status = models.StatusPending
	m.requests = append(m.requests, req)
	return nil
}

func (m *mockIntakeService) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	for _, req := range m.requests {
		if req.ID == id {
			return req, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockIntakeService) ApproveRequest(ctx context.Context, requestID, adminID int64, note string) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.resolved = append(m.resolved, requestID)
	for _, req := range m.requests {
		if req.ID == requestID {
			req.Status = models.StatusApproved
		}
	}
	return nil
}

func (m *mockIntakeService) RejectRequest(ctx context.Context, requestID, adminID int64, note string) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.resolved = append(m.resolved, requestID)
	return nil
}

func (m *mockIntakeService) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	c.ID = int64(len(m.complaints) + 1)
	c.Status = models.ComplaintOpen
	m.complaints = append(m.complaints, c)
	return nil
}

func (m *mockIntakeService) CreateAd(ctx context.Context, ad *models.Ad) error {
	ad.ID = int64(len(m.ads) + 1)
	ad.Status = models.AdPending
	m.ads = append(m.ads, ad)
	return nil
}

type mockDispatcher struct {
	enqueued  []int64
	cancelled []int64
}

func (m *mockDispatcher) Enqueue(ctx context.Context, adID int64) error {
	m.enqueued = append(m.enqueued, adID)
	return nil
}

func (m *mockDispatcher) Cancel(adID int64) bool {
	m.cancelled = append(m.cancelled, adID)
	return true
}

type testBot struct {
	bot        *Bot
	tg         *mockTelegramService
	states     *mockStateManager
	users      *mockUserService
	companies  *mockCompanyService
	intake     *mockIntakeService
	dispatcher *mockDispatcher
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	tg := &mockTelegramService{updatesChan: make(chan tgbotapi.Update, 1)}
	states := &mockStateManager{states: make(map[int64]*models.UserState)}
	users := &mockUserService{
		byTelegramID: make(map[int64]*models.User),
		byID:         make(map[int64]*models.User),
		admins:       map[int64]bool{900: true},
	}
	companies := &mockCompanyService{
		companies: []*models.Company{
			{ID: 1, Name: "Alpha Exchange", Currency: "SAR", IsActive: true},
		},
		methods: map[int64][]*models.PaymentMethod{
			1: {{ID: 10, CompanyID: 1, Label: "Bank transfer", Details: "IBAN SA00 0000", IsActive: true}},
		},
	}
	intake := &mockIntakeService{}
	dispatcher := &mockDispatcher{}

	logger := zerolog.New(io.Discard)
	translator := i18n.NewStatic(map[string]map[string]string{
		"en": {
			"request.submitted": "Request #{id} submitted",
			"request.approved":  "Request #{id} approved",
			"broadcast.queued":  "Broadcast #{id} queued",
			"register.done":     "Registered, your code is {code}",
			"error.admins_only": "Admins only",
			"language.changed":  "Language updated",
			"kind.deposit":      "Deposit",
			"kind.withdrawal":   "Withdrawal",
		},
	}, "en", &logger)

	cfg := &config.Config{
		Telegram: config.TelegramConfig{BotToken: "test"},
		Admins:   []int64{900},
		I18n:     config.I18nConfig{DefaultLanguage: "en", Languages: []string{"en", "ar"}},
		Bot:      config.BotConfig{RateLimitMessages: 20, RateLimitWindow: 60, MaxAmount: 100000},
	}

	b, err := NewBot(tg, cfg, states, nil, intake, users, companies, dispatcher, nil, translator, &logger)
	require.NoError(t, err)

	return &testBot{bot: b, tg: tg, states: states, users: users, companies: companies, intake: intake, dispatcher: dispatcher}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID, UserName: "testuser", LanguageCode: "en"},
			Chat: &tgbotapi.Chat{ID: userID},
			Text: text,
		},
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.TrimPrefix(strings.SplitN(text, " ", 2)[0], "/")
		update.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}}
	}
	return update
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb1",
			From: &tgbotapi.User{ID: userID, LanguageCode: "en"},
			Message: &tgbotapi.Message{
				Chat:      &tgbotapi.Chat{ID: userID},
				MessageID: 42,
			},
			Data: data,
		},
	}
}

func TestStartBeginsRegistration(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.bot.handleMessage(ctx, textUpdate(123, "/start"))

	require.NotNil(t, tb.states.states[123])
	assert.Equal(t, models.StepRegName, tb.states.states[123].Step)
}

func TestRegistrationFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.bot.handleMessage(ctx, textUpdate(123, "/start"))
	tb.bot.handleMessage(ctx, textUpdate(123, "Ali Hassan"))

	require.NotNil(t, tb.states.states[123])
	assert.Equal(t, models.StepRegPhone, tb.states.states[123].Step)

	update := textUpdate(123, "")
	update.Message.Contact = &tgbotapi.Contact{PhoneNumber: "+966501234567"}
	tb.bot.handleMessage(ctx, update)

	require.Len(t, tb.users.registered, 1)
	user := tb.users.registered[0]
	assert.Equal(t, "Ali Hassan", user.Name)
	assert.Equal(t, "+966501234567", user.Phone)
	assert.Nil(t, tb.states.states[123], "state cleared after registration")
	assert.True(t, tb.tg.sawText("C-2025-000001"))
}

func TestStartForKnownUserSkipsRegistration(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.users.byTelegramID[123] = &models.User{ID: 1, TelegramID: 123, Name: "Ali", CustomerCode: "C-2025-000007", LanguageCode: "en"}

	tb.bot.handleMessage(ctx, textUpdate(123, "/start"))

	assert.Nil(t, tb.states.states[123])
	assert.Empty(t, tb.users.registered)
}

func TestDepositFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.users.byTelegramID[123] = &models.User{ID: 1, TelegramID: 123, CustomerCode: "C-2025-000001", Currency: "SAR", LanguageCode: "en"}
	tb.users.byID[1] = tb.users.byTelegramID[123]

	tb.bot.handleMessage(ctx, textUpdate(123, "/deposit"))
	require.NotNil(t, tb.states.states[123])
	assert.Equal(t, models.StepCompany, tb.states.states[123].Step)

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "company:1"))
	assert.Equal(t, models.StepPaymentMethod, tb.states.states[123].Step)
	assert.Equal(t, "Alpha Exchange", tb.states.states[123].GetString("company_name"))

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "method:10"))
	assert.Equal(t, models.StepAmount, tb.states.states[123].Step)

	tb.bot.handleMessage(ctx, textUpdate(123, "150,50"))
	assert.Equal(t, models.StepReference, tb.states.states[123].Step)
	assert.Equal(t, 150.50, tb.states.states[123].GetFloat64("amount"))

	tb.bot.handleMessage(ctx, textUpdate(123, "TXN-998877"))
	assert.Equal(t, models.StepConfirm, tb.states.states[123].Step)

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "confirm_request"))

	require.Len(t, tb.intake.requests, 1)
	req := tb.intake.requests[0]
	assert.Equal(t, models.RequestKindDeposit, req.Kind)
	assert.Equal(t, int64(1), req.CompanyID)
	assert.Equal(t, int64(10), req.PaymentMethodID)
	assert.Equal(t, 150.50, req.Amount)
	assert.Equal(t, "TXN-998877", req.Reference)
	assert.Nil(t, tb.states.states[123], "state cleared after submission")
}

func TestWithdrawalAsksForAddress(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.users.byTelegramID[123] = &models.User{ID: 1, TelegramID: 123, Currency: "SAR", LanguageCode: "en"}

	tb.bot.handleMessage(ctx, textUpdate(123, "/withdraw"))
	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "company:1"))
	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "method:10"))
	tb.bot.handleMessage(ctx, textUpdate(123, "75"))

	assert.Equal(t, models.StepAddress, tb.states.states[123].Step)

	tb.bot.handleMessage(ctx, textUpdate(123, "SA44 2000 0001 2345 6789 1234"))
	assert.Equal(t, models.StepConfirm, tb.states.states[123].Step)
}

func TestInvalidAmountRepeatsPrompt(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.states.states[123] = &models.UserState{
		UserID: 123,
		Step:   models.StepAmount,
		Data:   map[string]interface{}{"kind": models.RequestKindDeposit},
	}

	tb.bot.handleMessage(ctx, textUpdate(123, "not a number"))
	assert.Equal(t, models.StepAmount, tb.states.states[123].Step)

	tb.bot.handleMessage(ctx, textUpdate(123, "-5"))
	assert.Equal(t, models.StepAmount, tb.states.states[123].Step)

	tb.bot.handleMessage(ctx, textUpdate(123, "999999999"))
	assert.Equal(t, models.StepAmount, tb.states.states[123].Step, "amount above ceiling rejected")

	// ParseFloat accepts these spellings; the flow must not.
	tb.bot.handleMessage(ctx, textUpdate(123, "NaN"))
	assert.Equal(t, models.StepAmount, tb.states.states[123].Step, "NaN rejected")

	tb.bot.handleMessage(ctx, textUpdate(123, "+Inf"))
	assert.Equal(t, models.StepAmount, tb.states.states[123].Step, "infinity rejected")
}

func TestModerationApprove(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	owner := &models.User{ID: 1, TelegramID: 123, LanguageCode: "en"}
	tb.users.byID[1] = owner
	tb.intake.requests = []*models.Request{
		{ID: 7, UserID: 1, Kind: models.RequestKindDeposit, Amount: 100, Currency: "SAR", Status: models.StatusPending},
	}

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(900, "approve:7"))

	assert.Equal(t, []int64{7}, tb.intake.resolved)
	assert.True(t, tb.tg.sawText("Request #7 approved"), "requester notified")
}

func TestModerationLoserGetsToast(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.intake.resolveErr = database.ErrAlreadyResolved

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(900, "approve:7"))

	assert.Empty(t, tb.intake.resolved)
	require.NotEmpty(t, tb.tg.callbacks)
	assert.NotEmpty(t, tb.tg.callbacks[len(tb.tg.callbacks)-1], "toast carries the already-resolved text")
	assert.Empty(t, tb.tg.edits, "losing admin's card is not rewritten")
}

func TestModerationRequiresAdmin(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "approve:7"))

	assert.Empty(t, tb.intake.resolved)
}

func TestComplaintFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.users.byTelegramID[123] = &models.User{ID: 1, TelegramID: 123, LanguageCode: "en"}

	tb.bot.handleMessage(ctx, textUpdate(123, "/complaint"))
	assert.Equal(t, models.StepComplaintText, tb.states.states[123].Step)

	tb.bot.handleMessage(ctx, textUpdate(123, "My withdrawal is stuck"))

	require.Len(t, tb.intake.complaints, 1)
	assert.Equal(t, "My withdrawal is stuck", tb.intake.complaints[0].Text)
	assert.Equal(t, int64(1), tb.intake.complaints[0].UserID)
	assert.Nil(t, tb.states.states[123])
}

func TestBroadcastFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.bot.handleMessage(ctx, textUpdate(900, "/broadcast"))
	assert.Equal(t, models.StepBroadcastText, tb.states.states[900].Step)

	tb.bot.handleMessage(ctx, textUpdate(900, "Maintenance tonight 22:00"))
	assert.Equal(t, models.StepBroadcastConfirm, tb.states.states[900].Step)

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(900, "broadcast_confirm"))

	require.Len(t, tb.intake.ads, 1)
	assert.Equal(t, "Maintenance tonight 22:00", tb.intake.ads[0].Text)
	assert.Equal(t, int64(900), tb.intake.ads[0].CreatedBy)
	assert.Equal(t, []int64{1}, tb.dispatcher.enqueued)
	assert.Nil(t, tb.states.states[900])
}

func TestBroadcastCancelCommand(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.bot.handleMessage(ctx, textUpdate(900, "/cancel_broadcast 3"))

	assert.Equal(t, []int64{3}, tb.dispatcher.cancelled)
}

func TestBroadcastCommandRequiresAdmin(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.bot.handleMessage(ctx, textUpdate(123, "/broadcast"))

	assert.Nil(t, tb.states.states[123])
	assert.Empty(t, tb.intake.ads)
	assert.True(t, tb.tg.sawText("Admins only"))
}

func TestAdminCommandsRefusedForUsers(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	for _, cmd := range []string{"/pending", "/stats", "/backup", "/report 7"} {
		tb.tg.sentTexts = nil
		tb.bot.handleMessage(ctx, textUpdate(123, cmd))
		assert.True(t, tb.tg.sawText("Admins only"), cmd)
	}

	// Genuinely unknown commands still get the unknown-command reply.
	tb.tg.sentTexts = nil
	tb.bot.handleMessage(ctx, textUpdate(123, "/bogus"))
	assert.True(t, tb.tg.sawText("error.unknown_command"))
	assert.False(t, tb.tg.sawText("Admins only"))
}

func TestLanguageCallback(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.users.byTelegramID[123] = &models.User{ID: 1, TelegramID: 123, LanguageCode: "en"}

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "lang:ar"))

	// "ar" has no table in the static store, so the pick is ignored.
	assert.Equal(t, "en", tb.users.byTelegramID[123].LanguageCode)

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "lang:en"))
	assert.Equal(t, "en", tb.users.byTelegramID[123].LanguageCode)
}

func TestCancelCommandClearsState(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.states.states[123] = &models.UserState{UserID: 123, Step: models.StepAmount, Data: map[string]interface{}{}}

	tb.bot.handleMessage(ctx, textUpdate(123, "/cancel"))

	assert.Nil(t, tb.states.states[123])
}

func TestCallbackWithoutSessionAnswersExpired(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.bot.handleCallbackQuery(ctx, callbackUpdate(123, "confirm_request"))

	assert.Empty(t, tb.intake.requests)
	require.NotEmpty(t, tb.tg.callbacks)
}
