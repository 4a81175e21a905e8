package handler

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/unclebandit/campaign-studio/internal/generation"
	"github.com/unclebandit/campaign-studio/internal/model"
	"github.com/unclebandit/campaign-studio/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// captionExcerpt is the dashboard card length in runes.
const captionExcerpt = 100

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"excerpt": func(caption string) string { return service.Excerpt(caption, captionExcerpt) },
}).ParseFS(templateFS, "templates/*.html"))

type itemView struct {
	Index    int
	Number   int
	HasImage bool
	Result   generation.Result
}

type indexView struct {
	GateOpen          bool
	GenerationEnabled bool
	VaultEnabled      bool
	Warnings          []string
	Flash             string
	Topic             string
	Brand             model.BrandVoice
	Items             []itemView
	Dashboard         []*model.Post
	DashboardErr      string
}

type loginView struct {
	Error string
}

type queueRow struct {
	Title    string
	When     string
	Relative string
	Excerpt  string
}

type queueView struct {
	GateOpen bool
	Rows     []queueRow
	Err      string
}

func itemViews(results []generation.Result) []itemView {
	out := make([]itemView, len(results))
	for i, r := range results {
		out[i] = itemView{Index: i, Number: i + 1, HasImage: r.Image != nil, Result: r}
	}
	return out
}

func queueRows(posts []*model.Post, now time.Time, loc *time.Location) []queueRow {
	rows := make([]queueRow, 0, len(posts))
	for _, p := range posts {
		at := p.ScheduledAt
		if loc != nil {
			at = at.In(loc)
		}
		rows = append(rows, queueRow{
			Title:    p.Title,
			When:     at.Format("Mon Jan 2, 15:04"),
			Relative: humanize.RelTime(p.ScheduledAt, now, "ago", "from now"),
			Excerpt:  service.Excerpt(p.Caption, captionExcerpt),
		})
	}
	return rows
}

func render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		// Headers are already out; the truncated page is all we can do.
		_, _ = w.Write([]byte("\n<!-- render error -->"))
	}
}
