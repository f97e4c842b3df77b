package models

import "time"

type Complaint struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Text       string     `json:"text"`
	Status     string     `json:"status"` // open, closed
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
	ResolvedBy int64      `json:"resolved_by"`
}
