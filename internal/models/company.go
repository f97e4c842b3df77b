package models

import "time"

type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" yaml:"name"`
	Currency  string    `json:"currency" yaml:"currency"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at"`

	// PaymentMethods is populated from the seed file only; database reads
	// fetch methods separately.
	PaymentMethods []*PaymentMethod `json:"-" yaml:"payment_methods"`
}

type PaymentMethod struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id" yaml:"company_id"`
	Label     string    `json:"label" yaml:"label"`
	Details   string    `json:"details" yaml:"details"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
