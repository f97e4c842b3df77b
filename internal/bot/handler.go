package bot

import (
	"context"
	"errors"
	"strings"

	"finbot/internal/database"
	"finbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	lang := b.langOf(ctx, userID, msg.From.LanguageCode)

	if msg.IsCommand() {
		b.handleCommand(ctx, update, lang)
		return
	}

	state := b.getUserState(ctx, userID)
	if state == nil {
		// Contact shares arrive outside of commands too; only meaningful
		// mid-registration, ignore otherwise.
		b.sendMessage(chatID, b.tr(lang, "help.hint", nil))
		return
	}

	switch state.Step {
	case models.StepRegName:
		b.handleRegistrationName(ctx, update, state, lang)
	case models.StepRegPhone:
		b.handleRegistrationPhone(ctx, update, state, lang)
	case models.StepAmount:
		b.handleAmountInput(ctx, update, state, lang)
	case models.StepReference:
		b.handleReferenceInput(ctx, update, state, lang)
	case models.StepAddress:
		b.handleAddressInput(ctx, update, state, lang)
	case models.StepComplaintText:
		b.handleComplaintText(ctx, update, state, lang)
	case models.StepBroadcastText:
		b.handleBroadcastText(ctx, update, state, lang)
	case models.StepCompanyName:
		b.handleNewCompanyName(ctx, update, state, lang)
	case models.StepMethodLabel:
		b.handleNewMethodLabel(ctx, update, state, lang)
	case models.StepMethodDetails:
		b.handleNewMethodDetails(ctx, update, state, lang)
	default:
		b.logger.Debug().Str("step", state.Step).Int64("user_id", userID).Str("text", text).Msg("message in keyboard-driven step ignored")
		b.sendMessage(chatID, b.tr(lang, "help.use_buttons", nil))
	}
}

func (b *Bot) handleCommand(ctx context.Context, update tgbotapi.Update, lang string) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, update, lang)
	case "help":
		b.sendMessage(chatID, b.tr(lang, "help.text", nil))
	case "language":
		if _, err := b.tgService.SendWithInlineKeyboard(chatID, b.tr(lang, "language.choose", nil), b.languageKeyboard()); err != nil {
			b.logger.Error().Err(err).Msg("Failed to send language keyboard")
		}
	case "deposit":
		b.startIntakeFlow(ctx, update, models.RequestKindDeposit, lang)
	case "withdraw":
		b.startIntakeFlow(ctx, update, models.RequestKindWithdrawal, lang)
	case "complaint":
		b.startComplaintFlow(ctx, update, lang)
	case "myrequests":
		b.showUserRequests(ctx, update, lang)
	case "cancel":
		b.clearUserState(userID)
		b.sendMessage(chatID, b.tr(lang, "flow.cancelled", nil))
	default:
		if b.isAdmin(userID) {
			if b.handleAdminCommand(ctx, update, lang) {
				return
			}
		} else if adminCommands[msg.Command()] {
			b.sendMessage(chatID, b.tr(lang, "error.admins_only", nil))
			return
		}
		b.sendMessage(chatID, b.tr(lang, "error.unknown_command", nil))
	}
}

func (b *Bot) handleStart(ctx context.Context, update tgbotapi.Update, lang string) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	user, err := b.userService.GetByTelegramID(ctx, userID)
	if err == nil {
		b.sendMessage(chatID, b.tr(lang, "start.welcome_back", map[string]string{
			"name": user.Name,
			"code": user.CustomerCode,
		}))
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("lookup user on /start")
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}

	b.setUserState(userID, models.StepRegName, map[string]interface{}{"lang": lang})
	b.sendMessage(chatID, b.tr(lang, "register.ask_name", nil))
}

func (b *Bot) handleRegistrationName(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	name := strings.TrimSpace(msg.Text)
	if name == "" {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "register.ask_name", nil))
		return
	}

	state.Data["name"] = name
	b.setUserState(msg.From.ID, models.StepRegPhone, state.Data)

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.tr(lang, "register.ask_phone", nil))
	reply.ReplyMarkup = b.contactKeyboard(lang)
	if _, err := b.tgService.Send(reply); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send contact keyboard")
	}
}

func (b *Bot) handleRegistrationPhone(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	var phone string
	if msg.Contact != nil {
		phone = msg.Contact.PhoneNumber
	} else {
		phone = strings.TrimSpace(msg.Text)
	}
	if phone == "" {
		b.sendMessage(chatID, b.tr(lang, "register.ask_phone", nil))
		return
	}

	user := &models.User{
		TelegramID:   userID,
		Name:         state.GetString("name"),
		Phone:        normalizePhone(phone),
		Username:     msg.From.UserName,
		LanguageCode: state.GetString("lang"),
		Currency:     "SAR",
	}
	if user.LanguageCode == "" {
		user.LanguageCode = lang
	}

	if err := b.userService.Register(ctx, user); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("registration failed")
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}

	b.clearUserState(userID)

	reply := tgbotapi.NewMessage(chatID, b.tr(lang, "register.done", map[string]string{"code": user.CustomerCode}))
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.tgService.Send(reply); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send registration confirmation")
	}
}

// startIntakeFlow opens the company picker for a deposit or withdrawal.
func (b *Bot) startIntakeFlow(ctx context.Context, update tgbotapi.Update, kind, lang string) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	user, err := b.userService.GetByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.tr(lang, "error.not_registered", nil))
		return
	}

	companies, err := b.companyService.GetActiveCompanies(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("load companies")
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}
	if len(companies) == 0 {
		b.sendMessage(chatID, b.tr(lang, "error.no_companies", nil))
		return
	}

	b.setUserState(userID, models.StepCompany, map[string]interface{}{
		"kind":     kind,
		"user_id":  user.ID,
		"currency": user.Currency,
	})

	if _, err := b.tgService.SendWithInlineKeyboard(chatID, b.tr(lang, "request.choose_company", nil), b.companiesKeyboard(companies)); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send company keyboard")
	}
}

func (b *Bot) handleAmountInput(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	amount, err := parseAmount(msg.Text)
	if err != nil || amount <= 0 {
		b.sendMessage(chatID, b.tr(lang, "error.invalid_amount", nil))
		return
	}
	if max := b.config.Bot.MaxAmount; max > 0 && amount > max {
		b.sendMessage(chatID, b.tr(lang, "error.amount_too_large", nil))
		return
	}

	state.Data["amount"] = amount

	if state.GetString("kind") == models.RequestKindDeposit {
		b.setUserState(userID, models.StepReference, state.Data)
		b.sendMessage(chatID, b.tr(lang, "request.ask_reference", nil))
		return
	}

	b.setUserState(userID, models.StepAddress, state.Data)
	b.sendMessage(chatID, b.tr(lang, "request.ask_address", nil))
}

func (b *Bot) handleReferenceInput(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	reference := strings.TrimSpace(msg.Text)
	if reference == "" {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "request.ask_reference", nil))
		return
	}

	state.Data["reference"] = reference
	b.askConfirmation(ctx, msg.From.ID, msg.Chat.ID, state, lang)
}

func (b *Bot) handleAddressInput(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	address := strings.TrimSpace(msg.Text)
	if address == "" {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "request.ask_address", nil))
		return
	}

	state.Data["address"] = address
	b.askConfirmation(ctx, msg.From.ID, msg.Chat.ID, state, lang)
}

func (b *Bot) askConfirmation(ctx context.Context, userID, chatID int64, state *models.UserState, lang string) {
	b.setUserState(userID, models.StepConfirm, state.Data)

	state.Step = models.StepConfirm
	summary := b.requestSummary(lang, state)
	text := summary + "\n\n" + b.tr(lang, "request.confirm_prompt", nil)

	if _, err := b.tgService.SendWithInlineKeyboard(chatID, text, b.confirmKeyboard(lang)); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send confirmation keyboard")
	}
}

// submitRequest turns the collected state into a persisted pending request
// and fans the moderation card out to every admin.
func (b *Bot) submitRequest(ctx context.Context, userID, chatID int64, state *models.UserState, lang string) {
	req := &models.Request{
		UserID:          state.GetInt64("user_id"),
		CompanyID:       state.GetInt64("company_id"),
		PaymentMethodID: state.GetInt64("method_id"),
		Kind:            state.GetString("kind"),
		Amount:          state.GetFloat64("amount"),
		Currency:        state.GetString("currency"),
		Reference:       state.GetString("reference"),
		Address:         state.GetString("address"),
	}

	if err := b.intakeService.CreateRequest(ctx, req); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("create request failed")
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		b.clearUserState(userID)
		return
	}

	b.clearUserState(userID)
	b.sendMessage(chatID, b.tr(lang, "request.submitted", map[string]string{"id": formatID(req.ID)}))

	user, err := b.userService.GetByTelegramID(ctx, userID)
	code := ""
	if err == nil {
		code = user.CustomerCode
	}

	adminLang := b.config.I18n.DefaultLanguage
	card := b.tr(adminLang, "admin.new_request", map[string]string{
		"id":     formatID(req.ID),
		"kind":   req.Kind,
		"code":   code,
		"amount": formatAmount(req.Amount, req.Currency),
	}) + "\n" + b.requestSummary(adminLang, state)
	keyboard := b.moderationKeyboard(req.ID)
	b.notifyAdmins(card, &keyboard)
}

func (b *Bot) startComplaintFlow(ctx context.Context, update tgbotapi.Update, lang string) {
	msg := update.Message
	userID := msg.From.ID

	user, err := b.userService.GetByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "error.not_registered", nil))
		return
	}

	b.setUserState(userID, models.StepComplaintText, map[string]interface{}{"user_id": user.ID})
	b.sendMessage(msg.Chat.ID, b.tr(lang, "complaint.ask_text", nil))
}

func (b *Bot) handleComplaintText(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	c := &models.Complaint{
		UserID: state.GetInt64("user_id"),
		Text:   strings.TrimSpace(msg.Text),
	}

	if err := b.intakeService.CreateComplaint(ctx, c); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}

	b.clearUserState(userID)
	b.sendMessage(chatID, b.tr(lang, "complaint.submitted", map[string]string{"id": formatID(c.ID)}))

	adminLang := b.config.I18n.DefaultLanguage
	card := b.tr(adminLang, "admin.new_complaint", map[string]string{
		"id":   formatID(c.ID),
		"text": c.Text,
	})
	keyboard := b.closeComplaintKeyboard(c.ID)
	b.notifyAdmins(card, &keyboard)
}

func (b *Bot) showUserRequests(ctx context.Context, update tgbotapi.Update, lang string) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	user, err := b.userService.GetByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.tr(lang, "error.not_registered", nil))
		return
	}

	requests, err := b.intakeService.GetUserRequests(ctx, user.ID, 10)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}
	if len(requests) == 0 {
		b.sendMessage(chatID, b.tr(lang, "request.none", nil))
		return
	}

	var sb strings.Builder
	sb.WriteString(b.tr(lang, "request.list_title", nil))
	for _, req := range requests {
		sb.WriteString("\n")
		sb.WriteString(b.tr(lang, "request.list_row", map[string]string{
			"id":     formatID(req.ID),
			"kind":   b.tr(lang, "kind."+req.Kind, nil),
			"amount": formatAmount(req.Amount, req.Currency),
			"status": b.tr(lang, "status."+req.Status, nil),
		}))
	}
	b.sendMessage(chatID, sb.String())
}

// notifyRequester tells the request owner about the moderation outcome in
// their own language.
func (b *Bot) notifyRequester(ctx context.Context, requestID int64, statusKey string) {
	req, err := b.intakeService.GetRequest(ctx, requestID)
	if err != nil {
		b.logger.Error().Err(err).Int64("request_id", requestID).Msg("load request for requester notification")
		return
	}

	user, err := b.userService.GetByID(ctx, req.UserID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("load request owner")
		return
	}

	b.sendMessage(user.TelegramID, b.tr(user.LanguageCode, statusKey, map[string]string{
		"id":     formatID(req.ID),
		"amount": formatAmount(req.Amount, req.Currency),
		"note":   req.AdminNote,
	}))
}

func normalizePhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, phone)
	if cleaned != "" && !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}
