// internal/model/post.go
package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusReady     Status = "Ready"
	StatusScheduled Status = "Scheduled"
)

// ParseStatus accepts any casing of the three vault statuses.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return StatusDraft, nil
	case "ready":
		return StatusReady, nil
	case "scheduled":
		return StatusScheduled, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Post is one campaign record in the vault. Records are created once and never
// updated by the studio.
type Post struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Caption     string    `db:"caption" json:"caption"`
	Status      Status    `db:"status" json:"status"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ScheduledEvent is published once per post placed in the queue.
type ScheduledEvent struct {
	PostID      string    `json:"post_id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
