package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/campaign-studio/internal/db"
	"github.com/unclebandit/campaign-studio/internal/model"
)

// Dialect covers the differences between the postgres and sqlite vaults.
type Dialect struct {
	Name   string
	schema []string
	// numbered reports whether placeholders are $1, $2, ... rather than ?.
	numbered bool
	// unixTimes stores timestamps as integer seconds.
	unixTimes bool
}

var (
	Postgres = Dialect{
		Name:     db.DriverPostgres,
		numbered: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id           TEXT PRIMARY KEY,
				title        TEXT NOT NULL,
				caption      TEXT NOT NULL,
				status       TEXT NOT NULL,
				scheduled_at TIMESTAMPTZ NOT NULL,
				created_at   TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS posts_status_scheduled_at_idx ON posts (status, scheduled_at)`,
		},
	}
	SQLite = Dialect{
		Name:      db.DriverSQLite,
		unixTimes: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id           TEXT PRIMARY KEY,
				title        TEXT NOT NULL,
				caption      TEXT NOT NULL,
				status       TEXT NOT NULL,
				scheduled_at INTEGER NOT NULL,
				created_at   INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS posts_status_scheduled_at_idx ON posts (status, scheduled_at)`,
		},
	}
)

func (d Dialect) arg(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) timeArg(t time.Time) any {
	if d.unixTimes {
		return t.Unix()
	}
	return t.UTC()
}

// scanTime accepts both native timestamps and unix seconds.
type scanTime struct{ t *time.Time }

func (s scanTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.t = v
	case int64:
		*s.t = time.Unix(v, 0).UTC()
	case nil:
		*s.t = time.Time{}
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
	return nil
}

// PostRepository keeps posts in a SQL database.
type PostRepository struct {
	DB      *sql.DB
	Dialect Dialect
	// Location is applied to timestamps read back; nil means UTC.
	Location *time.Location
}

// Migrate creates the posts table if needed.
func (r *PostRepository) Migrate(ctx context.Context) error {
	for _, stmt := range r.Dialect.schema {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", r.Dialect.Name, err)
		}
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = model.StatusDraft
	}

	d := r.Dialect
	query := fmt.Sprintf(
		`INSERT INTO posts (id, title, caption, status, scheduled_at, created_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		d.arg(1), d.arg(2), d.arg(3), d.arg(4), d.arg(5), d.arg(6),
	)
	_, err := r.DB.ExecContext(ctx, query,
		p.ID, p.Title, p.Caption, string(p.Status),
		d.timeArg(p.ScheduledAt.Truncate(time.Second)), d.timeArg(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) ListByStatus(ctx context.Context, status model.Status, from time.Time, limit int) ([]*model.Post, error) {
	d := r.Dialect
	where := "status = " + d.arg(1)
	args := []any{string(status)}
	if !from.IsZero() {
		args = append(args, d.timeArg(from.Truncate(time.Second)))
		where += " AND scheduled_at >= " + d.arg(len(args))
	}
	args = append(args, limit)
	query := fmt.Sprintf(
		`SELECT id, title, caption, status, scheduled_at, created_at FROM posts WHERE %s ORDER BY scheduled_at ASC, created_at ASC LIMIT %s`,
		where, d.arg(len(args)),
	)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepository) MostRecent(ctx context.Context, status *model.Status) (*model.Post, error) {
	var (
		where strings.Builder
		args  []any
	)
	if status != nil {
		where.WriteString(" WHERE status = " + r.Dialect.arg(1))
		args = append(args, string(*status))
	}

	query := `SELECT id, title, caption, status, scheduled_at, created_at FROM posts` +
		where.String() + ` ORDER BY scheduled_at DESC LIMIT 1`

	p, err := r.scan(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostRepository) scan(row rowScanner) (*model.Post, error) {
	var (
		p      model.Post
		status string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Caption, &status, scanTime{&p.ScheduledAt}, scanTime{&p.CreatedAt})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	p.Status = model.Status(status)

	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	p.ScheduledAt = p.ScheduledAt.In(loc)
	p.CreatedAt = p.CreatedAt.In(loc)
	return withPlaceholders(&p), nil
}

var _ VaultRepository = (*PostRepository)(nil)
