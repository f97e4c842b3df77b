package models

import "time"

// Ad is an admin-authored announcement broadcast to registered users.
// Counts are mutated by the dispatcher while the batch runs and frozen
// once the record reaches a terminal status.
type Ad struct {
	ID          int64      `json:"id"`
	Text        string     `json:"text"`
	CreatedBy   int64      `json:"created_by"`
	Status      string     `json:"status"` // pending, sending, done, cancelled
	SentCount   int64      `json:"sent_count"`
	FailedCount int64      `json:"failed_count"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}
