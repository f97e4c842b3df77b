package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finbot/internal/models"
)

const complaintSelect = `SELECT id, user_id, text, status, created_at, resolved_at, resolved_by
	FROM complaints`

func (db *DB) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if _, err := db.GetUserByID(ctx, c.UserID); err != nil {
		return err
	}

	query := `INSERT INTO complaints (user_id, text, status, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query, c.UserID, c.Text, models.ComplaintOpen, now)
	if err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.Status = models.ComplaintOpen
	c.CreatedAt = now
	return nil
}

func (db *DB) GetComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	var c models.Complaint
	err := db.QueryRowContext(ctx, complaintSelect+` WHERE id = ?`, id).Scan(
		&c.ID, &c.UserID, &c.Text, &c.Status, &c.CreatedAt, &c.ResolvedAt, &c.ResolvedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CloseComplaint is one-way: open -> closed, first writer wins.
func (db *DB) CloseComplaint(ctx context.Context, id int64, adminID int64) error {
	query := `UPDATE complaints SET status = ?, resolved_at = ?, resolved_by = ?
              WHERE id = ? AND status = ?`
	res, err := db.ExecContext(ctx, query, models.ComplaintClosed, time.Now(), adminID, id, models.ComplaintOpen)
	if err != nil {
		return fmt.Errorf("failed to close complaint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := db.GetComplaint(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

func (db *DB) GetComplaintsByStatus(ctx context.Context, status string, limit int) ([]*models.Complaint, error) {
	query := complaintSelect + ` WHERE status = ? ORDER BY created_at DESC`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	var complaints []*models.Complaint
	for rows.Next() {
		c := &models.Complaint{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Text, &c.Status, &c.CreatedAt, &c.ResolvedAt, &c.ResolvedBy); err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}

func (db *DB) CountComplaintsByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints WHERE status = ?`, status).Scan(&n)
	return n, err
}
