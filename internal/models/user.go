package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	CustomerCode string    `json:"customer_code"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Username     string    `json:"username"`
	LanguageCode string    `json:"language_code"`
	Currency     string    `json:"currency"`
	IsAdmin      bool      `json:"is_admin"`
	IsBlocked    bool      `json:"is_blocked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
