package models

import "time"

type Request struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	CompanyID       int64      `json:"company_id"`
	PaymentMethodID int64      `json:"payment_method_id"`
	Kind            string     `json:"kind"` // deposit, withdrawal
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	Reference       string     `json:"reference"`
	Address         string     `json:"address"` // withdrawal destination
	Status          string     `json:"status"`  // pending, approved, rejected
	AdminNote       string     `json:"admin_note"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      int64      `json:"resolved_by"`
}
