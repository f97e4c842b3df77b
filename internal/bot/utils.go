package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"finbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) setUserState(userID int64, step string, data map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.stateService.SetUserState(ctx, userID, step, data); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Str("step", step).Msg("Failed to set user state")
	}
}

func (b *Bot) getUserState(ctx context.Context, userID int64) *models.UserState {
	state, _ := b.stateService.GetUserState(ctx, userID)
	return state
}

func (b *Bot) clearUserState(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.stateService.ClearUserState(ctx, userID); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to clear user state")
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.userService.IsAdmin(userID)
}

func (b *Bot) isBlocked(userID int64) bool {
	return b.userService.IsBlocked(userID)
}

// langOf prefers the stored profile language, falls back to the Telegram
// client language when it is one we ship, then to the configured default.
func (b *Bot) langOf(ctx context.Context, userID int64, tgLang string) string {
	if user, err := b.userService.GetByTelegramID(ctx, userID); err == nil && user.LanguageCode != "" {
		return user.LanguageCode
	}
	if tgLang != "" && b.i18n.Has(tgLang) {
		return tgLang
	}
	return b.config.I18n.DefaultLanguage
}

func (b *Bot) tr(lang, key string, params map[string]string) string {
	return b.i18n.Resolve(lang, key, params)
}

// reply resolves the user's language and sends a localized message.
func (b *Bot) reply(ctx context.Context, chatID, userID int64, key string, params map[string]string) {
	lang := b.langOf(ctx, userID, "")
	b.sendMessage(chatID, b.tr(lang, key, params))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) notifyAdmins(text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	for _, adminID := range b.config.Admins {
		if keyboard != nil {
			if _, err := b.tgService.SendWithInlineKeyboard(adminID, text, *keyboard); err != nil {
				b.logger.Error().Err(err).Int64("admin_id", adminID).Msg("Failed to notify admin")
			}
			continue
		}
		b.sendMessage(adminID, text)
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatAmount(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func parseAmount(text string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	// ParseFloat accepts "NaN" and "Inf"; neither is a spendable amount.
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, errors.New("amount is not finite")
	}
	return amount, nil
}

func (b *Bot) companiesKeyboard(companies []*models.Company) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(companies))
	for _, company := range companies {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(company.Name, "company:"+formatID(company.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) methodsKeyboard(methods []*models.PaymentMethod) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(methods))
	for _, pm := range methods {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(pm.Label, "method:"+formatID(pm.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) confirmKeyboard(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr(lang, "button.confirm", nil), "confirm_request"),
			tgbotapi.NewInlineKeyboardButtonData(b.tr(lang, "button.cancel", nil), "cancel_flow"),
		),
	)
}

func (b *Bot) moderationKeyboard(requestID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve:"+formatID(requestID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject:"+formatID(requestID)),
		),
	)
}

func (b *Bot) closeComplaintKeyboard(complaintID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Close", "close:"+formatID(complaintID)),
		),
	)
}

func (b *Bot) languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(b.config.I18n.Languages))
	for _, lang := range b.config.I18n.Languages {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(strings.ToUpper(lang), "lang:"+lang),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) broadcastConfirmKeyboard(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr(lang, "button.send", nil), "broadcast_confirm"),
			tgbotapi.NewInlineKeyboardButtonData(b.tr(lang, "button.cancel", nil), "broadcast_cancel"),
		),
	)
}

func (b *Bot) contactKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(b.tr(lang, "button.share_phone", nil)),
		),
	)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true
	return keyboard
}

// requestSummary renders the confirmation card shown before submission
// and in admin notifications.
func (b *Bot) requestSummary(lang string, state *models.UserState) string {
	kind := state.GetString("kind")
	companyName := state.GetString("company_name")
	methodLabel := state.GetString("method_label")
	amount := state.GetFloat64("amount")
	currency := state.GetString("currency")

	var sb strings.Builder
	sb.WriteString(b.tr(lang, "request.summary_title", map[string]string{"kind": b.tr(lang, "kind."+kind, nil)}))
	sb.WriteString("\n")
	sb.WriteString(b.tr(lang, "request.summary_company", map[string]string{"company": companyName}))
	sb.WriteString("\n")
	sb.WriteString(b.tr(lang, "request.summary_method", map[string]string{"method": methodLabel}))
	sb.WriteString("\n")
	sb.WriteString(b.tr(lang, "request.summary_amount", map[string]string{"amount": formatAmount(amount, currency)}))

	if ref := state.GetString("reference"); ref != "" {
		sb.WriteString("\n")
		sb.WriteString(b.tr(lang, "request.summary_reference", map[string]string{"reference": ref}))
	}
	if addr := state.GetString("address"); addr != "" {
		sb.WriteString("\n")
		sb.WriteString(b.tr(lang, "request.summary_address", map[string]string{"address": addr}))
	}

	return sb.String()
}
