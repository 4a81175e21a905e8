package repository

import (
	"context"
	"strings"
	"time"

	"github.com/unclebandit/campaign-studio/internal/model"
)

// Placeholders shown when a stored field cannot be read back.
const (
	UntitledPlaceholder  = "Untitled"
	NoCaptionPlaceholder = "No caption..."
)

// VaultRepository is the record store for campaign posts.
type VaultRepository interface {
	Create(ctx context.Context, p *model.Post) error
	// ListByStatus returns posts ordered by scheduled time, oldest first.
	// A non-zero from drops posts scheduled before it.
	ListByStatus(ctx context.Context, status model.Status, from time.Time, limit int) ([]*model.Post, error)
	// MostRecent returns the post with the latest scheduled time, or nil when
	// none match. A nil status disables filtering.
	MostRecent(ctx context.Context, status *model.Status) (*model.Post, error)
	Ping(ctx context.Context) error
}

func withPlaceholders(p *model.Post) *model.Post {
	if strings.TrimSpace(p.Title) == "" {
		p.Title = UntitledPlaceholder
	}
	if strings.TrimSpace(p.Caption) == "" {
		p.Caption = NoCaptionPlaceholder
	}
	return p
}
