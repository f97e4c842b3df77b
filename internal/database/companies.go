package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finbot/internal/models"
)

func (db *DB) CreateCompany(ctx context.Context, company *models.Company) error {
	query := `INSERT INTO companies (name, currency, is_active, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query, company.Name, company.Currency, company.IsActive, now)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	company.ID = id
	company.CreatedAt = now
	return nil
}

func (db *DB) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	query := `SELECT id, name, currency, is_active, created_at FROM companies WHERE id = ?`
	var c models.Company
	err := db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Currency, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	query := `SELECT id, name, currency, is_active, created_at FROM companies WHERE name = ?`
	var c models.Company
	err := db.QueryRowContext(ctx, query, name).Scan(&c.ID, &c.Name, &c.Currency, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) GetActiveCompanies(ctx context.Context) ([]*models.Company, error) {
	query := `SELECT id, name, currency, is_active, created_at FROM companies WHERE is_active = 1 ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		c := &models.Company{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Currency, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (db *DB) SetCompanyActive(ctx context.Context, id int64, active bool) error {
	res, err := db.ExecContext(ctx, `UPDATE companies SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePaymentMethod rejects dangling company references at creation time.
// The company may be inactive; requests check activity separately.
func (db *DB) CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	if _, err := db.GetCompany(ctx, pm.CompanyID); err != nil {
		return err
	}

	query := `INSERT INTO payment_methods (company_id, label, details, is_active, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query, pm.CompanyID, pm.Label, pm.Details, pm.IsActive, now)
	if err != nil {
		return fmt.Errorf("failed to create payment method: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	pm.ID = id
	pm.CreatedAt = now
	return nil
}

func (db *DB) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	query := `SELECT id, company_id, label, details, is_active, created_at
              FROM payment_methods WHERE id = ?`
	var pm models.PaymentMethod
	err := db.QueryRowContext(ctx, query, id).Scan(&pm.ID, &pm.CompanyID, &pm.Label, &pm.Details, &pm.IsActive, &pm.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

func (db *DB) GetPaymentMethodsByCompany(ctx context.Context, companyID int64) ([]*models.PaymentMethod, error) {
	query := `SELECT id, company_id, label, details, is_active, created_at
              FROM payment_methods WHERE company_id = ? AND is_active = 1 ORDER BY label`
	rows, err := db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*models.PaymentMethod
	for rows.Next() {
		pm := &models.PaymentMethod{}
		if err := rows.Scan(&pm.ID, &pm.CompanyID, &pm.Label, &pm.Details, &pm.IsActive, &pm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, pm)
	}
	return methods, rows.Err()
}

func (db *DB) SetPaymentMethodActive(ctx context.Context, id int64, active bool) error {
	res, err := db.ExecContext(ctx, `UPDATE payment_methods SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
