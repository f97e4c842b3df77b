package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finbot/internal/models"

	"github.com/mattn/go-sqlite3"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (
				telegram_id, customer_code, name, phone, username,
				language_code, currency, is_admin, is_blocked,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query,
		user.TelegramID,
		user.CustomerCode,
		user.Name,
		user.Phone,
		user.Username,
		user.LanguageCode,
		user.Currency,
		user.IsAdmin,
		user.IsBlocked,
		now,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateCustomerCode
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) UpdateUser(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET name = ?, phone = ?, username = ?,
				language_code = ?, currency = ?, is_admin = ?, is_blocked = ?,
				updated_at = ?
              WHERE telegram_id = ?`
	_, err := db.ExecContext(ctx, query,
		user.Name, user.Phone, user.Username,
		user.LanguageCode, user.Currency, user.IsAdmin, user.IsBlocked,
		time.Now(), user.TelegramID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (db *DB) UpdateUserLanguage(ctx context.Context, telegramID int64, lang string) error {
	query := `UPDATE users SET language_code = ?, updated_at = ? WHERE telegram_id = ?`
	_, err := db.ExecContext(ctx, query, lang, time.Now(), telegramID)
	return err
}

func (db *DB) UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error {
	query := `UPDATE users SET phone = ?, updated_at = ? WHERE telegram_id = ?`
	_, err := db.ExecContext(ctx, query, phone, time.Now(), telegramID)
	return err
}

func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := userSelect + ` WHERE telegram_id = ?`
	return db.queryUser(ctx, query, telegramID)
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := userSelect + ` WHERE id = ?`
	return db.queryUser(ctx, query, id)
}

func (db *DB) GetUserByCustomerCode(ctx context.Context, code string) (*models.User, error) {
	query := userSelect + ` WHERE customer_code = ?`
	return db.queryUser(ctx, query, code)
}

const userSelect = `SELECT id, telegram_id, customer_code, name, phone, username,
	language_code, currency, is_admin, is_blocked, created_at, updated_at
	FROM users`

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.TelegramID, &user.CustomerCode, &user.Name, &user.Phone, &user.Username,
		&user.LanguageCode, &user.Currency, &user.IsAdmin, &user.IsBlocked, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *DB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := userSelect + ` ORDER BY created_at DESC`
	return db.queryUsers(ctx, query)
}

// GetBroadcastRecipients returns registered, non-blocked users in creation
// order. The dispatcher walks this set sequentially.
func (db *DB) GetBroadcastRecipients(ctx context.Context) ([]*models.User, error) {
	query := userSelect + ` WHERE is_blocked = 0 ORDER BY id`
	return db.queryUsers(ctx, query)
}

func (db *DB) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		err := rows.Scan(
			&u.ID, &u.TelegramID, &u.CustomerCode, &u.Name, &u.Phone, &u.Username,
			&u.LanguageCode, &u.Currency, &u.IsAdmin, &u.IsBlocked, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// MaxCustomerCode returns the lexically greatest customer code matching the
// prefix pattern, e.g. "C-2025-%". Empty string when none exist.
func (db *DB) MaxCustomerCode(ctx context.Context, pattern string) (string, error) {
	var code sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT MAX(customer_code) FROM users WHERE customer_code LIKE ?`, pattern,
	).Scan(&code)
	if err != nil {
		return "", err
	}
	if !code.Valid {
		return "", nil
	}
	return strings.TrimSpace(code.String), nil
}

func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
