package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finbot/internal/models"
)

const adSelect = `SELECT id, text, created_by, status, sent_count, failed_count, created_at, finished_at
	FROM ads`

func (db *DB) CreateAd(ctx context.Context, ad *models.Ad) error {
	query := `INSERT INTO ads (text, created_by, status, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query, ad.Text, ad.CreatedBy, models.AdPending, now)
	if err != nil {
		return fmt.Errorf("failed to create ad: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ad.ID = id
	ad.Status = models.AdPending
	ad.CreatedAt = now
	return nil
}

func (db *DB) GetAd(ctx context.Context, id int64) (*models.Ad, error) {
	var ad models.Ad
	err := db.QueryRowContext(ctx, adSelect+` WHERE id = ?`, id).Scan(
		&ad.ID, &ad.Text, &ad.CreatedBy, &ad.Status, &ad.SentCount, &ad.FailedCount,
		&ad.CreatedAt, &ad.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func (db *DB) MarkAdSending(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE ads SET status = ? WHERE id = ? AND status = ?`,
		models.AdSending, id, models.AdPending,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := db.GetAd(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

// FinalizeAd freezes the dispatch tally. Status must be a terminal one.
func (db *DB) FinalizeAd(ctx context.Context, id int64, status string, sent, failed int64) error {
	if status != models.AdDone && status != models.AdCancelled {
		return fmt.Errorf("invalid terminal ad status: %s", status)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE ads SET status = ?, sent_count = ?, failed_count = ?, finished_at = ? WHERE id = ?`,
		status, sent, failed, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize ad: %w", err)
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

func (db *DB) GetPendingAds(ctx context.Context, limit int) ([]*models.Ad, error) {
	query := adSelect + ` WHERE status = ? ORDER BY created_at`
	args := []interface{}{models.AdPending}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ads: %w", err)
	}
	defer rows.Close()

	var ads []*models.Ad
	for rows.Next() {
		ad := &models.Ad{}
		err := rows.Scan(
			&ad.ID, &ad.Text, &ad.CreatedBy, &ad.Status, &ad.SentCount, &ad.FailedCount,
			&ad.CreatedAt, &ad.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, ad)
	}
	return ads, rows.Err()
}
