package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/model"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

type fakeProvider struct {
	mu          sync.Mutex
	parts       []Part
	caption     string
	imageErr    error
	textErr     error
	imagePrompt string
	textPrompt  string
	refs        []*ReferenceImage
}

func (f *fakeProvider) GenerateImage(_ context.Context, prompt string, ref *ReferenceImage) ([]Part, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imagePrompt = prompt
	f.refs = append(f.refs, ref)
	return f.parts, f.imageErr
}

func (f *fakeProvider) GenerateText(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textPrompt = prompt
	return f.caption, f.textErr
}

func voice() model.BrandVoice {
	return model.BrandVoice{
		Mission:     "Premium pet portraits",
		FounderName: "Taylor",
		Vibe:        "Playful",
		Palette:     model.DefaultPalette(),
	}
}

func newTestOrchestrator(p Provider) *Orchestrator {
	return NewOrchestrator(Config{}, p, zerolog.Nop())
}

func TestGenerate_Success(t *testing.T) {
	p := &fakeProvider{parts: []Part{{Text: "here you go"}, {InlineData: pngHeader, MIMEType: "image/png"}}, caption: "Love them! 🐾"}
	o := newTestOrchestrator(p)

	res := o.Generate(context.Background(), "Valentine's Day Portrait Sale", nil, voice())

	assert.False(t, res.Failed())
	require.NotNil(t, res.Image)
	assert.Equal(t, "image/png", res.Image.MIMEType)
	assert.Equal(t, pngHeader, res.Image.Data)
	assert.Empty(t, res.ImageError)
	assert.Equal(t, "Love them! 🐾", res.Caption)
	assert.Contains(t, p.imagePrompt, "Valentine's Day Portrait Sale")
	assert.Contains(t, p.imagePrompt, "conceptual illustration")
	assert.Contains(t, p.textPrompt, "Sign off as Taylor")
}

func TestGenerate_WithReferenceImage(t *testing.T) {
	p := &fakeProvider{parts: []Part{{InlineData: pngHeader}}, caption: "ok"}
	o := newTestOrchestrator(p)
	ref := NewReferenceImage("rex.png", "", pngHeader)

	res := o.Generate(context.Background(), "Spring", ref, voice())

	assert.Equal(t, "rex.png", res.Reference)
	assert.Equal(t, "image/png", ref.MIMEType)
	require.Len(t, p.refs, 1)
	assert.Same(t, ref, p.refs[0])
	assert.Contains(t, p.imagePrompt, "Premium Art Portrait")
	assert.Equal(t, "image/png", res.Image.MIMEType)
}

func TestGenerate_NoImageIsNonFatal(t *testing.T) {
	p := &fakeProvider{parts: []Part{{Text: "I cannot draw that"}}, caption: "caption"}
	o := newTestOrchestrator(p)

	res := o.Generate(context.Background(), "Spring", nil, voice())

	assert.False(t, res.Failed())
	assert.Nil(t, res.Image)
	assert.Equal(t, NoImageMarker, res.ImageError)
	assert.Equal(t, "caption", res.Caption)
}

func TestGenerate_ImageFailureCollapsesBothSlots(t *testing.T) {
	p := &fakeProvider{imageErr: errors.New("quota exceeded"), caption: "unused"}
	o := newTestOrchestrator(p)

	res := o.Generate(context.Background(), "Spring", nil, voice())

	assert.True(t, res.Failed())
	assert.Nil(t, res.Image)
	assert.True(t, strings.HasPrefix(res.ImageError, ErrorPrefix))
	assert.True(t, strings.HasPrefix(res.Caption, ErrorPrefix))
	assert.Contains(t, res.Caption, "quota exceeded")

	var pe *appErrors.ProviderError
	require.True(t, errors.As(res.Err, &pe))
	assert.Equal(t, "image", pe.Op)
}

func TestGenerate_TextFailureCollapsesBothSlots(t *testing.T) {
	p := &fakeProvider{parts: []Part{{InlineData: pngHeader}}, textErr: errors.New("deadline exceeded")}
	o := newTestOrchestrator(p)

	res := o.Generate(context.Background(), "Spring", nil, voice())

	assert.True(t, res.Failed())
	assert.Nil(t, res.Image, "partial results are not returned")
	assert.Contains(t, res.Caption, "text generation failed: deadline exceeded")
	assert.Contains(t, res.ImageError, "deadline exceeded")
}

func TestGenerate_NoProvider(t *testing.T) {
	o := newTestOrchestrator(nil)

	res := o.Generate(context.Background(), "Spring", nil, voice())

	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, appErrors.ErrGenerationDisabled)
}

func TestBatch_SequentialWithProgress(t *testing.T) {
	p := &fakeProvider{parts: []Part{{InlineData: pngHeader}}, caption: "c"}
	o := newTestOrchestrator(p)
	refs := []*ReferenceImage{
		NewReferenceImage("a.png", "image/png", pngHeader),
		NewReferenceImage("b.png", "image/png", pngHeader),
		NewReferenceImage("c.png", "image/png", pngHeader),
	}

	var seen []int
	results := o.Batch(context.Background(), "Spring", refs, voice(), func(done, total int, r Result) {
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	})

	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, "b.png", results[1].Reference)
	assert.Len(t, p.refs, 3)
}

func TestBatch_NoReferencesProducesOneItem(t *testing.T) {
	p := &fakeProvider{parts: []Part{{InlineData: pngHeader}}, caption: "c"}
	o := newTestOrchestrator(p)

	results := o.Batch(context.Background(), "Spring", nil, voice(), nil)

	require.Len(t, results, 1)
	assert.Nil(t, p.refs[0])
}
