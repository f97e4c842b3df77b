package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finbot/internal/models"
)

const requestSelect = `SELECT id, user_id, company_id, payment_method_id, kind, amount,
	currency, reference, address, status, admin_note, created_at, resolved_at, resolved_by
	FROM requests`

// CreateRequest persists a new pending request. The user, company and
// payment method are verified to exist first so dangling references are
// rejected at creation, not discovered at read time.
func (db *DB) CreateRequest(ctx context.Context, req *models.Request) error {
	if _, err := db.GetUserByID(ctx, req.UserID); err != nil {
		return err
	}
	company, err := db.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return err
	}
	if !company.IsActive {
		return ErrInactiveCompany
	}
	pm, err := db.GetPaymentMethod(ctx, req.PaymentMethodID)
	if err != nil {
		return err
	}
	if pm.CompanyID != req.CompanyID {
		return ErrNotFound
	}

	query := `INSERT INTO requests (
				user_id, company_id, payment_method_id, kind, amount, currency,
				reference, address, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query,
		req.UserID, req.CompanyID, req.PaymentMethodID, req.Kind, req.Amount, req.Currency,
		req.Reference, req.Address, models.StatusPending, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = id
	req.Status = models.StatusPending
	req.CreatedAt = now
	return nil
}

func (db *DB) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	var r models.Request
	err := db.QueryRowContext(ctx, requestSelect+` WHERE id = ?`, id).Scan(
		&r.ID, &r.UserID, &r.CompanyID, &r.PaymentMethodID, &r.Kind, &r.Amount,
		&r.Currency, &r.Reference, &r.Address, &r.Status, &r.AdminNote,
		&r.CreatedAt, &r.ResolvedAt, &r.ResolvedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResolveRequest moves a pending request to a terminal status. The
// conditional update makes concurrent moderation safe: only the first
// writer flips the row, the second receives ErrAlreadyResolved.
func (db *DB) ResolveRequest(ctx context.Context, id int64, status string, adminID int64, note string) error {
	if status != models.StatusApproved && status != models.StatusRejected {
		return fmt.Errorf("invalid terminal status: %s", status)
	}

	query := `UPDATE requests
              SET status = ?, admin_note = ?, resolved_at = ?, resolved_by = ?
              WHERE id = ? AND status = ?`
	res, err := db.ExecContext(ctx, query, status, note, time.Now(), adminID, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to resolve request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := db.GetRequest(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

func (db *DB) GetRequestsByStatus(ctx context.Context, status string, limit int) ([]*models.Request, error) {
	query := requestSelect + ` WHERE status = ? ORDER BY created_at DESC`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.queryRequests(ctx, query, args...)
}

func (db *DB) GetUserRequests(ctx context.Context, userID int64, limit int) ([]*models.Request, error) {
	query := requestSelect + ` WHERE user_id = ? ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.queryRequests(ctx, query, args...)
}

func (db *DB) GetRequestsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Request, error) {
	query := requestSelect + ` WHERE created_at BETWEEN ? AND ? ORDER BY created_at`
	return db.queryRequests(ctx, query, start, end)
}

func (db *DB) queryRequests(ctx context.Context, query string, args ...interface{}) ([]*models.Request, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		r := &models.Request{}
		err := rows.Scan(
			&r.ID, &r.UserID, &r.CompanyID, &r.PaymentMethodID, &r.Kind, &r.Amount,
			&r.Currency, &r.Reference, &r.Address, &r.Status, &r.AdminNote,
			&r.CreatedAt, &r.ResolvedAt, &r.ResolvedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (db *DB) CountRequestsByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests WHERE status = ?`, status).Scan(&n)
	return n, err
}
