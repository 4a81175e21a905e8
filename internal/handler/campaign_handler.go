// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-studio/internal/generation"
	"github.com/unclebandit/campaign-studio/internal/model"
	"github.com/unclebandit/campaign-studio/internal/service"
	"github.com/unclebandit/campaign-studio/internal/session"
)

// maxUploadSize caps one multipart generate request (32MB).
const maxUploadSize = 32 << 20

// CampaignHandler serves the operator pages.
type CampaignHandler struct {
	Service       *service.CampaignService
	Sessions      session.Store
	Gate          *session.Gate
	Brand         model.BrandVoice
	Warnings      []string
	DashboardSize int
	QueueLimit    int
	Location      *time.Location
	Logger        zerolog.Logger
	Clock         func() time.Time
}

// Public registers the routes reachable without passing the gate.
func (h *CampaignHandler) Public(r chi.Router) {
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

// Pages registers the gated operator pages.
func (h *CampaignHandler) Pages(r chi.Router) {
	r.Get("/", h.Index)
	r.Post("/generate", h.Generate)
	r.Get("/images/{index}", h.Image)
	r.Post("/save", h.Save)
	r.Post("/clear", h.Clear)
	r.Get("/queue", h.Queue)
}

// Router wires sessions and the gate around the operator pages. Extra route
// groups, such as the JSON API, are mounted behind the same gate.
func (h *CampaignHandler) Router(gated ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Use(h.LoadSession)
	h.Public(r)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireGate)
		h.Pages(r)
		for _, g := range gated {
			g(r)
		}
	})
	return r
}

func (h *CampaignHandler) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock()
}

func (h *CampaignHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.Gate.Open() || sessionFrom(r).Verified {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	render(w, http.StatusOK, "login", loginView{})
}

func (h *CampaignHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := h.Gate.Verify(r.PostFormValue("passphrase")); err != nil {
		h.Logger.Info().Str("session_id", sess.ID).Msg("handler: passphrase rejected")
		render(w, http.StatusUnauthorized, "login", loginView{Error: "Incorrect passphrase."})
		return
	}

	// A verified session never keeps the id it was issued under.
	fresh := sess.Renew()
	fresh.Verified = true
	if err := h.Sessions.Save(r.Context(), fresh); err != nil {
		h.Logger.Error().Err(err).Msg("handler: failed to rotate session")
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := h.Sessions.Delete(r.Context(), sess.ID); err != nil {
		h.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("handler: failed to drop pre-login session")
	}
	h.setCookie(w, fresh.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *CampaignHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := h.Sessions.Delete(r.Context(), sess.ID); err != nil {
		h.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("handler: failed to delete session")
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Index renders the studio: form, last results, and the draft dashboard.
func (h *CampaignHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	flash := sess.TakeFlash()
	if flash != "" {
		h.save(r, sess)
	}

	view := indexView{
		GateOpen:          h.Gate.Open(),
		GenerationEnabled: h.Service.GenerationEnabled(),
		VaultEnabled:      h.Service.VaultEnabled(),
		Warnings:          h.Warnings,
		Flash:             flash,
		Topic:             sess.Topic,
		Brand:             h.Brand,
		Items:             itemViews(sess.Items),
	}

	if view.VaultEnabled {
		res := h.Service.RecentDrafts(r.Context(), h.DashboardSize)
		if res.OK() {
			view.Dashboard = res.Value
		} else {
			view.DashboardErr = "Could not load recent campaigns: " + res.Err.Error()
		}
	}

	render(w, http.StatusOK, "index", view)
}

// Generate runs one generation per uploaded photo, or a single text-only
// item, and keeps the results in the session.
func (h *CampaignHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil && err != http.ErrNotMultipart {
		http.Error(w, "invalid upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	topic := strings.TrimSpace(r.FormValue("topic"))
	if topic == "" {
		sess.Flash = "Enter a campaign topic first."
		h.save(r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	refs, err := referenceImages(r)
	if err != nil {
		http.Error(w, "invalid upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.Service.Generate(r.Context(), service.GenerateRequest{
		Topic:      topic,
		References: refs,
		Voice:      brandFromForm(r, h.Brand),
	})
	if err != nil {
		sess.Flash = err.Error()
		h.save(r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	sess.Topic = topic
	sess.Items = results
	h.save(r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func referenceImages(r *http.Request) ([]*generation.ReferenceImage, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var refs []*generation.ReferenceImage
	for _, fh := range r.MultipartForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		if len(data) == 0 {
			continue
		}
		refs = append(refs, generation.NewReferenceImage(fh.Filename, fh.Header.Get("Content-Type"), data))
	}
	return refs, nil
}

func brandFromForm(r *http.Request, defaults model.BrandVoice) model.BrandVoice {
	pick := func(key, fallback string) string {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			return v
		}
		return fallback
	}
	return model.BrandVoice{
		Mission:      pick("brand_mission", defaults.Mission),
		FounderName:  pick("brand_founder", defaults.FounderName),
		Vibe:         pick("brand_vibe", defaults.Vibe),
		FormatLayout: pick("brand_format", defaults.FormatLayout),
		Palette: model.Palette{
			Background1: pick("color_bg1", defaults.Palette.Background1),
			Background2: pick("color_bg2", defaults.Palette.Background2),
			Accent1:     pick("color_accent1", defaults.Palette.Accent1),
			Accent2:     pick("color_accent2", defaults.Palette.Accent2),
			Text:        pick("color_text", defaults.Palette.Text),
		},
	}
}

// Image serves the generated image of session item {index}.
func (h *CampaignHandler) Image(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(sess.Items) {
		http.NotFound(w, r)
		return
	}

	img := sess.Items[idx].Image
	switch {
	case img == nil:
		http.NotFound(w, r)
	case len(img.Data) > 0:
		w.Header().Set("Content-Type", img.MIMEType)
		w.Header().Set("Cache-Control", "private, no-store")
		w.Write(img.Data)
	case img.URI != "":
		http.Redirect(w, r, img.URI, http.StatusFound)
	default:
		http.NotFound(w, r)
	}
}

// Save persists every successful item in the session as draft, ready or
// scheduled posts.
func (h *CampaignHandler) Save(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	defer func() {
		h.save(r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}()

	if !h.Service.VaultEnabled() {
		sess.Flash = "Vault is not configured; nothing was saved."
		return
	}

	titles := service.BatchTitles(sess.Topic, len(sess.Items))
	var drafts []service.Draft
	for i, item := range sess.Items {
		if item.Failed() {
			continue
		}
		drafts = append(drafts, service.Draft{Title: titles[i], Caption: item.Caption})
	}
	if len(drafts) == 0 {
		sess.Flash = "No successful results to save."
		return
	}

	switch r.PostFormValue("action") {
	case "ready":
		sess.Flash = h.saveEach(r, drafts, h.Service.MarkReady, "marked ready")
	case "schedule":
		sess.Flash = h.schedule(r, drafts)
	default:
		sess.Flash = h.saveEach(r, drafts, h.Service.SaveDraft, "saved as draft")
	}
}

func (h *CampaignHandler) saveEach(r *http.Request, drafts []service.Draft, save func(context.Context, service.Draft) service.Result[*model.Post], verb string) string {
	saved := 0
	var failures []string
	for _, d := range drafts {
		res := save(r.Context(), d)
		if !res.OK() {
			failures = append(failures, fmt.Sprintf("%s: %v", d.Title, res.Err))
			continue
		}
		saved++
	}
	msg := fmt.Sprintf("%d of %d posts %s.", saved, len(drafts), verb)
	if len(failures) > 0 {
		msg += " Failed: " + strings.Join(failures, "; ")
	}
	return msg
}

func (h *CampaignHandler) schedule(r *http.Request, drafts []service.Draft) string {
	out, err := h.Service.ScheduleBatch(r.Context(), drafts)
	if err != nil {
		return "Scheduling failed: " + err.Error()
	}

	msg := fmt.Sprintf("%d of %d posts scheduled.", len(out.Posts), len(drafts))
	if len(out.Posts) > 0 {
		first := out.Posts[0].ScheduledAt
		if h.Location != nil {
			first = first.In(h.Location)
		}
		msg += " First slot: " + first.Format("Mon Jan 2, 15:04") + "."
	}
	if out.Plan.Degraded {
		msg += " Vault lookup failed, so slots start from today."
	}
	for i, err := range out.Errs {
		msg += fmt.Sprintf(" %s: %v.", drafts[i].Title, err)
	}
	return msg
}

func (h *CampaignHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Clear()
	h.save(r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Queue lists upcoming Scheduled posts with relative times.
func (h *CampaignHandler) Queue(w http.ResponseWriter, r *http.Request) {
	view := queueView{GateOpen: h.Gate.Open()}
	if !h.Service.VaultEnabled() {
		view.Err = "Vault is not configured."
		render(w, http.StatusOK, "queue", view)
		return
	}

	res := h.Service.ListQueue(r.Context(), h.QueueLimit)
	if res.OK() {
		view.Rows = queueRows(res.Value, h.now(), h.Location)
	} else {
		view.Err = "Could not load the queue: " + res.Err.Error()
	}
	render(w, http.StatusOK, "queue", view)
}
