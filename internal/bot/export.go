package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xuri/excelize/v2"
)

const defaultReportDays = 30

var reportHeader = []string{"ID", "Customer Code", "Kind", "Company", "Amount", "Currency", "Status", "Created", "Resolved", "Note"}

// sendRequestsReport builds an XLSX of requests over the last N days (the
// command argument, default 30) and uploads it to the chat.
func (b *Bot) sendRequestsReport(ctx context.Context, chatID int64, args, lang string) {
	days := defaultReportDays
	if trimmed := strings.TrimSpace(args); trimmed != "" {
		n, err := strconv.Atoi(trimmed)
		if err != nil || n <= 0 {
			b.sendMessage(chatID, b.tr(lang, "report.usage", nil))
			return
		}
		days = n
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	requests, err := b.intakeService.GetRequestsByDateRange(ctx, start, end)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}
	if len(requests) == 0 {
		b.sendMessage(chatID, b.tr(lang, "report.empty", nil))
		return
	}

	data, err := b.buildRequestsWorkbook(ctx, requests)
	if err != nil {
		b.logger.Error().Err(err).Msg("build requests report")
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}

	name := fmt.Sprintf("requests_%s_%s.xlsx", start.Format("2006-01-02"), end.Format("2006-01-02"))
	b.sendDocument(chatID, name, data)
}

func (b *Bot) buildRequestsWorkbook(ctx context.Context, requests []*models.Request) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Requests"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}

	// Names are resolved per row; the report is small and admin-triggered.
	userCodes := make(map[int64]string)
	companyNames := make(map[int64]string)

	for i, req := range requests {
		code, ok := userCodes[req.UserID]
		if !ok {
			if user, err := b.userService.GetByID(ctx, req.UserID); err == nil {
				code = user.CustomerCode
			}
			userCodes[req.UserID] = code
		}

		companyName, ok := companyNames[req.CompanyID]
		if !ok {
			if company, err := b.companyService.GetCompany(ctx, req.CompanyID); err == nil {
				companyName = company.Name
			}
			companyNames[req.CompanyID] = companyName
		}

		resolved := ""
		if req.ResolvedAt != nil {
			resolved = req.ResolvedAt.Format(time.RFC3339)
		}

		row := []interface{}{
			req.ID,
			code,
			req.Kind,
			companyName,
			req.Amount,
			req.Currency,
			req.Status,
			req.CreatedAt.Format(time.RFC3339),
			resolved,
			req.AdminNote,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sendUsersExport uploads the registered user list as CSV.
func (b *Bot) sendUsersExport(ctx context.Context, chatID int64, lang string) {
	users, err := b.userService.GetAllUsers(ctx)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}
	if len(users) == 0 {
		b.sendMessage(chatID, b.tr(lang, "report.empty", nil))
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "telegram_id", "customer_code", "name", "phone", "username", "language", "currency", "blocked", "registered_at"})
	for _, user := range users {
		_ = w.Write([]string{
			formatID(user.ID),
			formatID(user.TelegramID),
			user.CustomerCode,
			user.Name,
			user.Phone,
			user.Username,
			user.LanguageCode,
			user.Currency,
			strconv.FormatBool(user.IsBlocked),
			user.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		b.logger.Error().Err(err).Msg("build users export")
		b.sendMessage(chatID, b.getErrorMessage(lang, err))
		return
	}

	name := fmt.Sprintf("users_%s.csv", time.Now().Format("2006-01-02"))
	b.sendDocument(chatID, name, buf.Bytes())
}

func (b *Bot) sendDocument(chatID int64, name string, data []byte) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := b.tgService.Send(doc); err != nil {
		b.logger.Error().Err(err).Str("file", name).Msg("Failed to send document")
	}
}
