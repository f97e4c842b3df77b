package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"finbot/internal/database"
	"finbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, update tgbotapi.Update) {
	cb := update.CallbackQuery
	userID := cb.From.ID
	lang := b.langOf(ctx, userID, cb.From.LanguageCode)
	data := cb.Data

	action, arg := data, ""
	if idx := strings.Index(data, ":"); idx >= 0 {
		action, arg = data[:idx], data[idx+1:]
	}

	switch action {
	case "company":
		b.handleCompanyPicked(ctx, cb, arg, lang)
	case "method":
		b.handleMethodPicked(ctx, cb, arg, lang)
	case "confirm_request":
		b.handleConfirmRequest(ctx, cb, lang)
	case "cancel_flow":
		b.clearUserState(userID)
		b.answerCallback(cb.ID, "")
		b.editOrSend(cb, b.tr(lang, "flow.cancelled", nil), nil)
	case "approve":
		b.handleModeration(ctx, cb, arg, models.StatusApproved, lang)
	case "reject":
		b.handleModeration(ctx, cb, arg, models.StatusRejected, lang)
	case "close":
		b.handleCloseComplaint(ctx, cb, arg, lang)
	case "lang":
		b.handleLanguagePicked(ctx, cb, arg)
	case "broadcast_confirm":
		b.handleBroadcastConfirm(ctx, cb, lang)
	case "broadcast_cancel":
		b.clearUserState(userID)
		b.answerCallback(cb.ID, "")
		b.editOrSend(cb, b.tr(lang, "broadcast.discarded", nil), nil)
	default:
		b.logger.Debug().Str("data", data).Msg("unknown callback")
		b.answerCallback(cb.ID, "")
	}
}

func (b *Bot) handleCompanyPicked(ctx context.Context, cb *tgbotapi.CallbackQuery, arg, lang string) {
	userID := cb.From.ID

	companyID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "")
		return
	}

	state := b.getUserState(ctx, userID)
	if state == nil {
		b.answerCallback(cb.ID, b.tr(lang, "error.session_expired", nil))
		return
	}

	company, err := b.companyService.GetCompany(ctx, companyID)
	if err != nil {
		b.answerCallback(cb.ID, b.getErrorMessage(lang, err))
		return
	}

	state.Data["company_id"] = company.ID
	state.Data["company_name"] = company.Name
	if company.Currency != "" {
		state.Data["currency"] = company.Currency
	}

	// The same picker serves the admin add-method flow.
	if state.Step == models.StepMethodLabel {
		b.setUserState(userID, models.StepMethodLabel, state.Data)
		b.answerCallback(cb.ID, "")
		b.editOrSend(cb, b.tr(lang, "admin.ask_method_label", nil), nil)
		return
	}

	methods, err := b.companyService.GetPaymentMethods(ctx, company.ID)
	if err != nil {
		b.answerCallback(cb.ID, b.getErrorMessage(lang, err))
		return
	}
	if len(methods) == 0 {
		b.answerCallback(cb.ID, "")
		b.editOrSend(cb, b.tr(lang, "error.no_methods", nil), nil)
		b.clearUserState(userID)
		return
	}

	b.setUserState(userID, models.StepPaymentMethod, state.Data)
	b.answerCallback(cb.ID, "")

	keyboard := b.methodsKeyboard(methods)
	b.editOrSend(cb, b.tr(lang, "request.choose_method", map[string]string{"company": company.Name}), &keyboard)
}

func (b *Bot) handleMethodPicked(ctx context.Context, cb *tgbotapi.CallbackQuery, arg, lang string) {
	userID := cb.From.ID

	methodID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "")
		return
	}

	state := b.getUserState(ctx, userID)
	if state == nil || state.Step != models.StepPaymentMethod {
		b.answerCallback(cb.ID, b.tr(lang, "error.session_expired", nil))
		return
	}

	pm, err := b.companyService.GetPaymentMethod(ctx, methodID)
	if err != nil {
		b.answerCallback(cb.ID, b.getErrorMessage(lang, err))
		return
	}

	state.Data["method_id"] = pm.ID
	state.Data["method_label"] = pm.Label
	b.setUserState(userID, models.StepAmount, state.Data)
	b.answerCallback(cb.ID, "")

	text := b.tr(lang, "request.method_details", map[string]string{
		"method":  pm.Label,
		"details": pm.Details,
	}) + "\n\n" + b.tr(lang, "request.ask_amount", nil)
	b.editOrSend(cb, text, nil)
}

func (b *Bot) handleConfirmRequest(ctx context.Context, cb *tgbotapi.CallbackQuery, lang string) {
	userID := cb.From.ID

	state := b.getUserState(ctx, userID)
	if state == nil || state.Step != models.StepConfirm {
		b.answerCallback(cb.ID, b.tr(lang, "error.session_expired", nil))
		return
	}

	b.answerCallback(cb.ID, "")
	b.editOrSend(cb, b.tr(lang, "request.submitting", nil), nil)
	b.submitRequest(ctx, userID, cb.Message.Chat.ID, state, lang)
}

// handleModeration resolves a pending request. Losing the first-writer
// race is reported on the callback toast, not as an error.
func (b *Bot) handleModeration(ctx context.Context, cb *tgbotapi.CallbackQuery, arg, status, lang string) {
	adminID := cb.From.ID

	if !b.isAdmin(adminID) {
		b.answerCallback(cb.ID, b.tr(lang, "error.admins_only", nil))
		return
	}

	requestID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "")
		return
	}

	if status == models.StatusApproved {
		err = b.intakeService.ApproveRequest(ctx, requestID, adminID, "")
	} else {
		err = b.intakeService.RejectRequest(ctx, requestID, adminID, "")
	}

	switch {
	case errors.Is(err, database.ErrAlreadyResolved):
		b.answerCallback(cb.ID, b.tr(lang, "error.already_resolved", nil))
		return
	case err != nil:
		b.logger.Error().Err(err).Int64("request_id", requestID).Msg("moderation failed")
		b.answerCallback(cb.ID, b.getErrorMessage(lang, err))
		return
	}

	b.answerCallback(cb.ID, "")

	outcome := b.tr(lang, "admin.resolved_"+status, map[string]string{"id": formatID(requestID)})
	b.editOrSend(cb, cb.Message.Text+"\n\n"+outcome, nil)

	statusKey := "request.approved"
	if status == models.StatusRejected {
		statusKey = "request.rejected"
	}
	b.notifyRequester(ctx, requestID, statusKey)
}

func (b *Bot) handleCloseComplaint(ctx context.Context, cb *tgbotapi.CallbackQuery, arg, lang string) {
	adminID := cb.From.ID

	if !b.isAdmin(adminID) {
		b.answerCallback(cb.ID, b.tr(lang, "error.admins_only", nil))
		return
	}

	complaintID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "")
		return
	}

	err = b.intakeService.CloseComplaint(ctx, complaintID, adminID)
	switch {
	case errors.Is(err, database.ErrAlreadyResolved):
		b.answerCallback(cb.ID, b.tr(lang, "error.already_resolved", nil))
		return
	case err != nil:
		b.answerCallback(cb.ID, b.getErrorMessage(lang, err))
		return
	}

	b.answerCallback(cb.ID, "")
	b.editOrSend(cb, cb.Message.Text+"\n\n"+b.tr(lang, "admin.complaint_closed", map[string]string{"id": formatID(complaintID)}), nil)
}

func (b *Bot) handleLanguagePicked(ctx context.Context, cb *tgbotapi.CallbackQuery, code string) {
	userID := cb.From.ID

	if !b.i18n.Has(code) {
		b.answerCallback(cb.ID, "")
		return
	}

	if err := b.userService.UpdateLanguage(ctx, userID, code); err != nil && !errors.Is(err, database.ErrNotFound) {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("update language")
	}

	b.answerCallback(cb.ID, "")
	b.editOrSend(cb, b.tr(code, "language.changed", nil), nil)
}

func (b *Bot) handleBroadcastConfirm(ctx context.Context, cb *tgbotapi.CallbackQuery, lang string) {
	adminID := cb.From.ID

	if !b.isAdmin(adminID) {
		b.answerCallback(cb.ID, b.tr(lang, "error.admins_only", nil))
		return
	}

	state := b.getUserState(ctx, adminID)
	if state == nil || state.Step != models.StepBroadcastConfirm {
		b.answerCallback(cb.ID, b.tr(lang, "error.session_expired", nil))
		return
	}

	ad := &models.Ad{
		Text:      state.GetString("text"),
		CreatedBy: adminID,
	}
	if err := b.intakeService.CreateAd(ctx, ad); err != nil {
		b.answerCallback(cb.ID, b.getErrorMessage(lang, err))
		return
	}

	b.clearUserState(adminID)

	if err := b.dispatcher.Enqueue(ctx, ad.ID); err != nil {
		b.logger.Error().Err(err).Int64("ad_id", ad.ID).Msg("enqueue broadcast")
	}

	b.answerCallback(cb.ID, "")
	b.editOrSend(cb, b.tr(lang, "broadcast.queued", map[string]string{"id": formatID(ad.ID)}), nil)
}

func (b *Bot) answerCallback(callbackID, text string) {
	if err := b.tgService.AnswerCallback(callbackID, text); err != nil {
		b.logger.Error().Err(err).Msg("Failed to answer callback")
	}
}

// editOrSend replaces the message the callback button lives on, falling
// back to a fresh message when editing is no longer possible.
func (b *Bot) editOrSend(cb *tgbotapi.CallbackQuery, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	if _, err := b.tgService.EditMessage(chatID, cb.Message.MessageID, text, keyboard); err != nil {
		b.logger.Debug().Err(err).Msg("edit failed, sending new message")
		b.sendMessage(chatID, text)
	}
}
