// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/model"
	"github.com/unclebandit/campaign-studio/internal/service"
)

// maxRequestBodySize is the maximum allowed JSON body size (1MB).
const maxRequestBodySize = 1 << 20

type CampaignController struct {
	CampaignService *service.CampaignService
	QueueLimit      int
}

type SlotResponse struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Weekday     string    `json:"weekday"`
	Bucket      string    `json:"bucket"`
	Offset      int       `json:"offset"`
	Degraded    bool      `json:"degraded"`
	Warning     string    `json:"warning,omitempty"`
}

// NextSlot previews the next optimal slot for a batch offset.
func (c *CampaignController) NextSlot(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	plan := c.CampaignService.NextSlot(r.Context(), offset)
	slot := plan.Slots[0]
	resp := SlotResponse{
		ScheduledAt: slot.At,
		Weekday:     slot.At.Weekday().String(),
		Bucket:      string(slot.Window.Bucket),
		Offset:      slot.Offset,
		Degraded:    plan.Degraded,
	}
	if plan.Err != nil {
		resp.Warning = plan.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListQueue returns upcoming Scheduled posts in chronological order.
func (c *CampaignController) ListQueue(w http.ResponseWriter, r *http.Request) {
	limit := c.QueueLimit
	if limit <= 0 {
		limit = 10
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	res := c.CampaignService.ListQueue(r.Context(), limit)
	if !res.OK() {
		writeError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  res.Value,
		"count": len(res.Value),
	})
}

type CreatePostRequest struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	Action  string `json:"action"` // draft, ready or schedule
}

// CreatePost persists one post the same way the form actions do.
func (c *CampaignController) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var body CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	draft := service.Draft{Title: body.Title, Caption: body.Caption}
	switch strings.ToLower(body.Action) {
	case "", "draft":
		c.writePost(w, c.CampaignService.SaveDraft(r.Context(), draft))
	case "ready":
		c.writePost(w, c.CampaignService.MarkReady(r.Context(), draft))
	case "schedule":
		out, err := c.CampaignService.ScheduleBatch(r.Context(), []service.Draft{draft})
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if len(out.Posts) == 0 {
			writeError(w, http.StatusBadGateway, out.Errs[0].Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"post":            out.Posts[0],
			"anchor_fallback": out.Plan.Degraded,
		})
	default:
		writeError(w, http.StatusBadRequest, "action must be draft, ready or schedule")
	}
}

func (c *CampaignController) writePost(w http.ResponseWriter, res service.Result[*model.Post]) {
	if !res.OK() {
		writeError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"post": res.Value})
}

// HealthResponse represents the /healthz response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (c *CampaignController) Health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("verbose") != "true" {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{Status: "ok", Components: map[string]string{}}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	switch err := c.CampaignService.Ping(ctx); {
	case errors.Is(err, appErrors.ErrVaultDisabled):
		resp.Components["vault"] = "disabled"
	case err != nil:
		resp.Status = "degraded"
		resp.Components["vault"] = "unhealthy: " + err.Error()
	default:
		resp.Components["vault"] = "healthy"
	}

	if c.CampaignService.GenerationEnabled() {
		resp.Components["generation"] = "enabled"
	} else {
		resp.Components["generation"] = "disabled"
	}

	code := http.StatusOK
	if resp.Status == "degraded" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, appErrors.ErrVaultDisabled), errors.Is(err, appErrors.ErrGenerationDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
