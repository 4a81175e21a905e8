package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/unclebandit/campaign-studio/internal/model"
)

// Notion database property names.
const (
	PropName    = "Name"
	PropCaption = "Caption"
	PropStatus  = "Status"
	PropDate    = "Date"
)

type notionPages interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

type notionDatabases interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	Get(ctx context.Context, id notionapi.DatabaseID) (*notionapi.Database, error)
}

// NotionRepository keeps posts as pages of a Notion database.
type NotionRepository struct {
	pages      notionPages
	databases  notionDatabases
	databaseID notionapi.DatabaseID
	location   *time.Location
}

func NewNotionRepository(client *notionapi.Client, databaseID string, loc *time.Location) *NotionRepository {
	return newNotionRepository(client.Page, client.Database, databaseID, loc)
}

func newNotionRepository(pages notionPages, databases notionDatabases, databaseID string, loc *time.Location) *NotionRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &NotionRepository{
		pages:      pages,
		databases:  databases,
		databaseID: notionapi.DatabaseID(databaseID),
		location:   loc,
	}
}

func (r *NotionRepository) Create(ctx context.Context, p *model.Post) error {
	if p.Status == "" {
		p.Status = model.StatusDraft
	}
	start := notionapi.Date(p.ScheduledAt.Truncate(time.Second))

	page, err := r.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: r.databaseID,
		},
		Properties: notionapi.Properties{
			PropName: notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: p.Title}}},
			},
			PropCaption: notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: p.Caption}}},
			},
			PropStatus: notionapi.SelectProperty{
				Select: notionapi.Option{Name: string(p.Status)},
			},
			PropDate: notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &start},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notion create page: %w", err)
	}

	p.ID = string(page.ID)
	p.CreatedAt = page.CreatedTime
	return nil
}

func (r *NotionRepository) ListByStatus(ctx context.Context, status model.Status, from time.Time, limit int) ([]*model.Post, error) {
	var filter notionapi.Filter = &notionapi.PropertyFilter{
		Property: PropStatus,
		Select:   &notionapi.SelectFilterCondition{Equals: string(status)},
	}
	if !from.IsZero() {
		start := notionapi.Date(from.Truncate(time.Second))
		filter = notionapi.AndCompoundFilter{
			filter,
			&notionapi.PropertyFilter{
				Property: PropDate,
				Date:     &notionapi.DateFilterCondition{OnOrAfter: &start},
			},
		}
	}

	resp, err := r.databases.Query(ctx, r.databaseID, &notionapi.DatabaseQueryRequest{
		Filter:   filter,
		Sorts:    []notionapi.SortObject{{Property: PropDate, Direction: notionapi.SortOrderASC}},
		PageSize: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("notion query: %w", err)
	}

	posts := make([]*model.Post, 0, len(resp.Results))
	for i := range resp.Results {
		posts = append(posts, r.toPost(&resp.Results[i]))
	}
	return posts, nil
}

func (r *NotionRepository) MostRecent(ctx context.Context, status *model.Status) (*model.Post, error) {
	req := &notionapi.DatabaseQueryRequest{
		Sorts:    []notionapi.SortObject{{Property: PropDate, Direction: notionapi.SortOrderDESC}},
		PageSize: 1,
	}
	if status != nil {
		req.Filter = &notionapi.PropertyFilter{
			Property: PropStatus,
			Select:   &notionapi.SelectFilterCondition{Equals: string(*status)},
		}
	}

	resp, err := r.databases.Query(ctx, r.databaseID, req)
	if err != nil {
		return nil, fmt.Errorf("notion query: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return r.toPost(&resp.Results[0]), nil
}

func (r *NotionRepository) Ping(ctx context.Context) error {
	if _, err := r.databases.Get(ctx, r.databaseID); err != nil {
		return fmt.Errorf("notion get database: %w", err)
	}
	return nil
}

// toPost never fails: unreadable properties fall back to placeholders.
func (r *NotionRepository) toPost(page *notionapi.Page) *model.Post {
	p := &model.Post{
		ID:        string(page.ID),
		CreatedAt: page.CreatedTime.In(r.location),
	}
	props := page.Properties

	switch v := props[PropName].(type) {
	case *notionapi.TitleProperty:
		p.Title = firstPlainText(v.Title)
	case notionapi.TitleProperty:
		p.Title = firstPlainText(v.Title)
	}

	switch v := props[PropCaption].(type) {
	case *notionapi.RichTextProperty:
		p.Caption = firstPlainText(v.RichText)
	case notionapi.RichTextProperty:
		p.Caption = firstPlainText(v.RichText)
	}

	switch v := props[PropStatus].(type) {
	case *notionapi.SelectProperty:
		p.Status = model.Status(v.Select.Name)
	case notionapi.SelectProperty:
		p.Status = model.Status(v.Select.Name)
	}

	var date *notionapi.DateObject
	switch v := props[PropDate].(type) {
	case *notionapi.DateProperty:
		date = v.Date
	case notionapi.DateProperty:
		date = v.Date
	}
	if date != nil && date.Start != nil {
		p.ScheduledAt = time.Time(*date.Start).In(r.location)
	}

	return withPlaceholders(p)
}

func firstPlainText(rt []notionapi.RichText) string {
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}

var _ VaultRepository = (*NotionRepository)(nil)
