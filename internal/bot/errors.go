package bot

import (
	"errors"

	"finbot/internal/database"
)

// errorKey maps a lifecycle error to its translation key.
func errorKey(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, database.ErrAlreadyResolved):
		return "error.already_resolved"
	case errors.Is(err, database.ErrNotFound):
		return "error.not_found"
	case errors.Is(err, database.ErrInactiveCompany):
		return "error.company_inactive"
	case errors.Is(err, database.ErrInvalidAmount):
		return "error.invalid_amount"
	case errors.Is(err, database.ErrAmountTooLarge):
		return "error.amount_too_large"
	case errors.Is(err, database.ErrEmptyComplaint):
		return "error.empty_complaint"
	case errors.Is(err, database.ErrEmptyBroadcast):
		return "error.empty_broadcast"
	default:
		return "error.generic"
	}
}

func (b *Bot) getErrorMessage(lang string, err error) string {
	return b.tr(lang, errorKey(err), nil)
}
