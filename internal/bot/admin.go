package bot

import (
	"context"
	"strconv"
	"strings"

	"finbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// adminCommands names every command gated behind the admin check, so
// non-admins invoking one get an explicit refusal instead of the
// unknown-command reply.
var adminCommands = map[string]bool{
	"pending":          true,
	"complaints":       true,
	"stats":            true,
	"broadcast":        true,
	"cancel_broadcast": true,
	"report":           true,
	"users":            true,
	"backup":           true,
	"addcompany":       true,
	"addmethod":        true,
}

// handleAdminCommand routes commands reserved for admins. Returns false
// when the command is not an admin one so the caller can fall through.
func (b *Bot) handleAdminCommand(ctx context.Context, update tgbotapi.Update, lang string) bool {
	msg := update.Message
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "pending":
		b.showPendingRequests(ctx, chatID, lang)
	case "complaints":
		b.showOpenComplaints(ctx, chatID, lang)
	case "stats":
		b.showStats(ctx, chatID, lang)
	case "broadcast":
		b.setUserState(msg.From.ID, models.StepBroadcastText, map[string]interface{}{})
		b.sendMessage(chatID, b.tr(lang, "broadcast.ask_text", nil))
	case "cancel_broadcast":
		b.cancelBroadcast(ctx, chatID, msg.CommandArguments(), lang)
	case "report":
		b.sendRequestsReport(ctx, chatID, msg.CommandArguments(), lang)
	case "users":
		b.sendUsersExport(ctx, chatID, lang)
	case "backup":
		b.runBackup(ctx, chatID, lang)
	case "addcompany":
		b.setUserState(msg.From.ID, models.StepCompanyName, map[string]interface{}{})
		b.sendMessage(chatID, b.tr(lang, "admin.ask_company_name", nil))
	case "addmethod":
		b.startAddMethodFlow(ctx, update, lang)
	default:
		return false
	}
	return true
}

func (b *Bot) showPendingRequests(ctx context.Context, chatID int64, lang string) {
	requests, err := b.intakeService.GetPendingRequests(ctx, 20)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}
	if len(requests) == 0 {
		b.sendMessage(chatID, b.tr(lang, "admin.no_pending", nil))
		return
	}

	for _, req := range requests {
		user, err := b.userService.GetByID(ctx, req.UserID)
		code := "?"
		if err == nil {
			code = user.CustomerCode
		}
		card := b.tr(lang, "admin.pending_row", map[string]string{
			"id":     formatID(req.ID),
			"kind":   b.tr(lang, "kind."+req.Kind, nil),
			"code":   code,
			"amount": formatAmount(req.Amount, req.Currency),
		})
		if _, err := b.tgService.SendWithInlineKeyboard(chatID, card, b.moderationKeyboard(req.ID)); err != nil {
			b.logger.Error().Err(err).Int64("request_id", req.ID).Msg("Failed to send pending request card")
		}
	}
}

func (b *Bot) showOpenComplaints(ctx context.Context, chatID int64, lang string) {
	complaints, err := b.intakeService.GetOpenComplaints(ctx, 20)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}
	if len(complaints) == 0 {
		b.sendMessage(chatID, b.tr(lang, "admin.no_complaints", nil))
		return
	}

	for _, c := range complaints {
		card := b.tr(lang, "admin.complaint_row", map[string]string{
			"id":   formatID(c.ID),
			"text": c.Text,
		})
		if _, err := b.tgService.SendWithInlineKeyboard(chatID, card, b.closeComplaintKeyboard(c.ID)); err != nil {
			b.logger.Error().Err(err).Int64("complaint_id", c.ID).Msg("Failed to send complaint card")
		}
	}
}

func (b *Bot) showStats(ctx context.Context, chatID int64, lang string) {
	stats, err := b.intakeService.Stats(ctx)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}

	b.sendMessage(chatID, b.tr(lang, "admin.stats", map[string]string{
		"users":             formatID(stats.Users),
		"pending":           formatID(stats.PendingRequests),
		"approved":          formatID(stats.ApprovedRequests),
		"rejected":          formatID(stats.RejectedRequests),
		"open_complaints":   formatID(stats.OpenComplaints),
		"closed_complaints": formatID(stats.ClosedComplaints),
	}))
}

func (b *Bot) cancelBroadcast(ctx context.Context, chatID int64, args, lang string) {
	adID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || adID <= 0 {
		b.sendMessage(chatID, b.tr(lang, "broadcast.cancel_usage", nil))
		return
	}

	if b.dispatcher.Cancel(adID) {
		b.sendMessage(chatID, b.tr(lang, "broadcast.cancel_requested", map[string]string{"id": formatID(adID)}))
		return
	}
	b.sendMessage(chatID, b.tr(lang, "broadcast.cancel_duplicate", map[string]string{"id": formatID(adID)}))
}

func (b *Bot) runBackup(ctx context.Context, chatID int64, lang string) {
	if b.backup == nil {
		b.sendMessage(chatID, b.tr(lang, "backup.disabled", nil))
		return
	}

	path, err := b.backup.PerformBackup(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("manual backup failed")
		b.sendMessage(chatID, b.tr(lang, "backup.failed", nil))
		return
	}
	b.sendMessage(chatID, b.tr(lang, "backup.done", map[string]string{"path": path}))
}

func (b *Bot) handleBroadcastText(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "broadcast.ask_text", nil))
		return
	}

	recipients, err := b.userService.GetBroadcastRecipients(ctx)
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(lang, err))
		return
	}

	state.Data["text"] = text
	b.setUserState(msg.From.ID, models.StepBroadcastConfirm, state.Data)

	preview := b.tr(lang, "broadcast.preview", map[string]string{
		"text":  text,
		"count": strconv.Itoa(len(recipients)),
	})
	if _, err := b.tgService.SendWithInlineKeyboard(msg.Chat.ID, preview, b.broadcastConfirmKeyboard(lang)); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send broadcast preview")
	}
}

// startAddMethodFlow asks which company the new payment method belongs to.
// The picker reuses the company keyboard; the step disambiguates the intent.
func (b *Bot) startAddMethodFlow(ctx context.Context, update tgbotapi.Update, lang string) {
	msg := update.Message

	companies, err := b.companyService.GetActiveCompanies(ctx)
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(lang, err))
		return
	}
	if len(companies) == 0 {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "error.no_companies", nil))
		return
	}

	b.setUserState(msg.From.ID, models.StepMethodLabel, map[string]interface{}{})
	if _, err := b.tgService.SendWithInlineKeyboard(msg.Chat.ID, b.tr(lang, "admin.ask_method_company", nil), b.companiesKeyboard(companies)); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send company keyboard")
	}
}

func (b *Bot) handleNewCompanyName(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	name := strings.TrimSpace(msg.Text)
	if name == "" {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "admin.ask_company_name", nil))
		return
	}

	company := &models.Company{Name: name, IsActive: true}
	if err := b.companyService.AddCompany(ctx, company); err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(lang, err))
		return
	}

	b.clearUserState(msg.From.ID)
	b.sendMessage(msg.Chat.ID, b.tr(lang, "admin.company_added", map[string]string{
		"id":   formatID(company.ID),
		"name": company.Name,
	}))
}

func (b *Bot) handleNewMethodLabel(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message

	if state.GetInt64("company_id") == 0 {
		// Company not picked yet; the callback handler fills it in.
		b.sendMessage(msg.Chat.ID, b.tr(lang, "admin.ask_method_company", nil))
		return
	}

	label := strings.TrimSpace(msg.Text)
	if label == "" {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "admin.ask_method_label", nil))
		return
	}

	state.Data["label"] = label
	b.setUserState(msg.From.ID, models.StepMethodDetails, state.Data)
	b.sendMessage(msg.Chat.ID, b.tr(lang, "admin.ask_method_details", nil))
}

func (b *Bot) handleNewMethodDetails(ctx context.Context, update tgbotapi.Update, state *models.UserState, lang string) {
	msg := update.Message
	details := strings.TrimSpace(msg.Text)
	if details == "" {
		b.sendMessage(msg.Chat.ID, b.tr(lang, "admin.ask_method_details", nil))
		return
	}

	pm := &models.PaymentMethod{
		CompanyID: state.GetInt64("company_id"),
		Label:     state.GetString("label"),
		Details:   details,
		IsActive:  true,
	}
	if err := b.companyService.AddPaymentMethod(ctx, pm); err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(lang, err))
		return
	}

	b.clearUserState(msg.From.ID)
	b.sendMessage(msg.Chat.ID, b.tr(lang, "admin.method_added", map[string]string{
		"id":    formatID(pm.ID),
		"label": pm.Label,
	}))
}
