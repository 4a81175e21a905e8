package handler_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-studio/internal/generation"
	"github.com/unclebandit/campaign-studio/internal/handler"
	"github.com/unclebandit/campaign-studio/internal/model"
	"github.com/unclebandit/campaign-studio/internal/scheduler"
	"github.com/unclebandit/campaign-studio/internal/service"
	"github.com/unclebandit/campaign-studio/internal/session"
)

// --- Mocks ---

type MockVault struct {
	mu      sync.Mutex
	posts   []*model.Post
	listErr error
}

func (m *MockVault) Create(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = fmt.Sprintf("post-%d", len(m.posts)+1)
	cp := *p
	m.posts = append(m.posts, &cp)
	return nil
}

func (m *MockVault) ListByStatus(_ context.Context, status model.Status, from time.Time, limit int) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*model.Post
	for _, p := range m.posts {
		if p.Status == status && !p.ScheduledAt.Before(from) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockVault) MostRecent(context.Context, *model.Status) (*model.Post, error) { return nil, nil }

func (m *MockVault) Ping(context.Context) error { return nil }

func (m *MockVault) byStatus(s model.Status) []*model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for _, p := range m.posts {
		if p.Status == s {
			out = append(out, p)
		}
	}
	return out
}

type fakeGenerator struct {
	refs []string
	fail bool
}

func (f *fakeGenerator) Batch(_ context.Context, topic string, refs []*generation.ReferenceImage, _ model.BrandVoice, progress func(done, total int, r generation.Result)) []generation.Result {
	n := len(refs)
	if n == 0 {
		n = 1
	}
	out := make([]generation.Result, n)
	for i := range out {
		r := generation.Result{Topic: topic, Caption: fmt.Sprintf("caption %d", i+1)}
		if i < len(refs) {
			f.refs = append(f.refs, refs[i].Filename)
			r.Reference = refs[i].Filename
		}
		if f.fail {
			r.Caption = "Gen Error: boom"
			r.ImageError = "Gen Error: boom"
			r.Error = "boom"
		} else {
			r.Image = &generation.ImageArtifact{MIMEType: "image/png", Data: []byte(fmt.Sprintf("png-%d", i))}
		}
		out[i] = r
		progress(i+1, n, r)
	}
	return out
}

// --- Harness ---

var thursday = time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	vault  *MockVault
	gen    *fakeGenerator
}

func newHarness(t *testing.T, passphrase string, vault *MockVault, gen *fakeGenerator) *harness {
	t.Helper()
	clock := func() time.Time { return thursday }

	svc := &service.CampaignService{
		Logger: zerolog.Nop(),
		Clock:  clock,
	}
	var lookup scheduler.LatestLookup
	if vault != nil {
		svc.Vault = vault
		lookup = vault
	}
	if gen != nil {
		svc.Generator = gen
	}
	svc.Planner = scheduler.NewPlanner(scheduler.Config{Location: time.UTC}, lookup, zerolog.Nop()).WithClock(clock)

	h := &handler.CampaignHandler{
		Service:       svc,
		Sessions:      session.NewMemoryStore(time.Hour),
		Gate:          session.NewGate(passphrase),
		Brand:         model.BrandVoice{Mission: "Pets as art", Palette: model.DefaultPalette()},
		Warnings:      []string{"generation disabled: GEMINI_KEY is not set"},
		DashboardSize: 3,
		QueueLimit:    10,
		Location:      time.UTC,
		Logger:        zerolog.Nop(),
		Clock:         clock,
	}

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{t: t, srv: srv, client: client, vault: vault, gen: gen}
}

func (h *harness) get(path string) (*http.Response, string) {
	h.t.Helper()
	resp, err := h.client.Get(h.srv.URL + path)
	require.NoError(h.t, err)
	return resp, readBody(h.t, resp)
}

func (h *harness) postForm(path string, form url.Values) *http.Response {
	h.t.Helper()
	resp, err := h.client.PostForm(h.srv.URL+path, form)
	require.NoError(h.t, err)
	readBody(h.t, resp)
	return resp
}

func (h *harness) generate(topic string, files map[string][]byte) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(h.t, mw.WriteField("topic", topic))
	for name, data := range files {
		fw, err := mw.CreateFormFile("images", name)
		require.NoError(h.t, err)
		_, err = fw.Write(data)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())

	resp, err := h.client.Post(h.srv.URL+"/generate", mw.FormDataContentType(), &buf)
	require.NoError(h.t, err)
	readBody(h.t, resp)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// --- Tests ---

func TestGate_RedirectsUntilVerified(t *testing.T) {
	h := newHarness(t, "open sesame", &MockVault{}, nil)

	resp, _ := h.get("/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = h.postForm("/login", url.Values{"passphrase": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.postForm("/login", url.Values{"passphrase": {"open sesame"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body := h.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Campaign Studio")

	resp = h.postForm("/logout", nil)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = h.get("/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func (h *harness) sessionID() string {
	h.t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(h.t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == "studio_session" {
			return c.Value
		}
	}
	return ""
}

func TestLogin_IssuesFreshSessionID(t *testing.T) {
	h := newHarness(t, "open sesame", &MockVault{}, nil)

	h.get("/login")
	before := h.sessionID()
	require.NotEmpty(t, before)

	resp := h.postForm("/login", url.Values{"passphrase": {"open sesame"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	after := h.sessionID()
	assert.NotEmpty(t, after)
	assert.NotEqual(t, before, after)

	// The id handed out before login no longer opens the studio.
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "studio_session", Value: before})
	stale, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	readBody(t, stale)
	assert.Equal(t, http.StatusSeeOther, stale.StatusCode)
	assert.Equal(t, "/login", stale.Header.Get("Location"))

	resp, _ = h.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGate_OpenWithoutPassphrase(t *testing.T) {
	h := newHarness(t, "", nil, nil)

	resp, _ := h.get("/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body := h.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "GEMINI_KEY is not set")
	assert.Contains(t, body, "Vault offline")
}

func TestGenerate_StoresResultsAndServesImages(t *testing.T) {
	gen := &fakeGenerator{}
	h := newHarness(t, "", &MockVault{}, gen)

	resp := h.generate("Spring portraits", map[string][]byte{"dog.png": []byte("\x89PNG\r\n\x1a\nfake")})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, []string{"dog.png"}, gen.refs)

	_, body := h.get("/")
	assert.Contains(t, body, "caption 1")
	assert.Contains(t, body, `/images/0`)

	resp, img := h.get("/images/0")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "png-0", img)

	resp, _ = h.get("/images/5")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerate_EmptyTopicFlashes(t *testing.T) {
	h := newHarness(t, "", &MockVault{}, &fakeGenerator{})

	h.generate("   ", nil)
	_, body := h.get("/")
	assert.Contains(t, body, "Enter a campaign topic first.")

	_, body = h.get("/")
	assert.NotContains(t, body, "Enter a campaign topic first.")
}

func TestGenerate_DisabledProviderFlashes(t *testing.T) {
	h := newHarness(t, "", &MockVault{}, nil)

	h.generate("Spring", nil)
	_, body := h.get("/")
	assert.Contains(t, body, "generation is not configured")
}

func TestSave_Draft(t *testing.T) {
	vault := &MockVault{}
	h := newHarness(t, "", vault, &fakeGenerator{})

	h.generate("Spring", nil)
	resp := h.postForm("/save", url.Values{"action": {"draft"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	drafts := vault.byStatus(model.StatusDraft)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Spring", drafts[0].Title)
	assert.Equal(t, "caption 1", drafts[0].Caption)
	assert.Equal(t, thursday, drafts[0].ScheduledAt)

	_, body := h.get("/")
	assert.Contains(t, body, "1 of 1 posts saved as draft.")
	assert.Contains(t, body, "caption 1...")
}

func TestSave_ScheduleBatchUsesSpacedSlots(t *testing.T) {
	vault := &MockVault{}
	h := newHarness(t, "", vault, &fakeGenerator{})

	h.generate("Spring", map[string][]byte{
		"a.png": []byte("\x89PNG\r\n\x1a\na"),
		"b.png": []byte("\x89PNG\r\n\x1a\nb"),
	})
	h.postForm("/save", url.Values{"action": {"schedule"}})

	scheduled := vault.byStatus(model.StatusScheduled)
	require.Len(t, scheduled, 2)
	assert.Equal(t, "Spring (1/2)", scheduled[0].Title)
	assert.Equal(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), scheduled[0].ScheduledAt)
	assert.Equal(t, "Spring (2/2)", scheduled[1].Title)
	assert.Equal(t, time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC), scheduled[1].ScheduledAt)

	_, body := h.get("/")
	assert.Contains(t, body, "2 of 2 posts scheduled.")
}

func TestSave_ReadyAndFailedItems(t *testing.T) {
	vault := &MockVault{}
	h := newHarness(t, "", vault, &fakeGenerator{fail: true})

	h.generate("Spring", nil)
	h.postForm("/save", url.Values{"action": {"ready"}})
	assert.Empty(t, vault.byStatus(model.StatusReady))

	_, body := h.get("/")
	assert.Contains(t, body, "No successful results to save.")
}

func TestSave_WithoutVault(t *testing.T) {
	h := newHarness(t, "", nil, &fakeGenerator{})

	h.generate("Spring", nil)
	h.postForm("/save", url.Values{"action": {"draft"}})

	_, body := h.get("/")
	assert.Contains(t, body, "Vault is not configured")
}

func TestClear(t *testing.T) {
	h := newHarness(t, "", &MockVault{}, &fakeGenerator{})

	h.generate("Spring", nil)
	h.postForm("/clear", nil)

	_, body := h.get("/")
	assert.NotContains(t, body, "caption 1")
	resp, _ := h.get("/images/0")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboard_InlineError(t *testing.T) {
	vault := &MockVault{listErr: fmt.Errorf("notion: 401 unauthorized")}
	h := newHarness(t, "", vault, nil)

	resp, body := h.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Could not load recent campaigns")
	assert.Contains(t, body, "401 unauthorized")
}

func TestQueuePage(t *testing.T) {
	vault := &MockVault{posts: []*model.Post{
		{ID: "2", Title: "Later", Status: model.StatusScheduled, ScheduledAt: time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)},
		{ID: "1", Title: "Sooner", Status: model.StatusScheduled, ScheduledAt: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)},
		{ID: "3", Title: "Just a draft", Status: model.StatusDraft, ScheduledAt: thursday},
		{ID: "4", Title: "Already posted", Status: model.StatusScheduled, ScheduledAt: time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)},
	}}
	h := newHarness(t, "", vault, nil)

	resp, body := h.get("/queue")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "Just a draft")
	assert.NotContains(t, body, "Already posted")
	assert.Contains(t, body, "Fri Jan 5, 12:00")
	assert.Contains(t, body, "from now")
	assert.Less(t, strings.Index(body, "Sooner"), strings.Index(body, "Later"))
}
