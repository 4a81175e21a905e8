package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/model"
)

// ErrorPrefix starts every user-visible generation failure.
const ErrorPrefix = "Gen Error: "

type Config struct {
	// Timeout bounds each provider call; zero means no extra bound.
	Timeout time.Duration
}

// Orchestrator requests one image and one caption per item.
type Orchestrator struct {
	config   Config
	provider Provider
	logger   zerolog.Logger
}

func NewOrchestrator(config Config, provider Provider, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		config:   config,
		provider: provider,
		logger:   logger.With().Str("component", "generation").Logger(),
	}
}

// Generate issues the image and text requests independently and waits for
// both. A failure of either call turns both slots into error strings; a
// response without an image only blanks the image slot.
func (o *Orchestrator) Generate(ctx context.Context, topic string, ref *ReferenceImage, voice model.BrandVoice) Result {
	res := Result{Topic: topic}
	if ref != nil {
		res.Reference = ref.Filename
	}

	if o.provider == nil {
		return failed(res, appErrors.ErrGenerationDisabled)
	}

	imgPrompt, err := ImagePrompt(topic, ref != nil, voice)
	if err != nil {
		return failed(res, fmt.Errorf("render image prompt: %w", err))
	}
	txtPrompt, err := CaptionPrompt(topic, voice)
	if err != nil {
		return failed(res, fmt.Errorf("render caption prompt: %w", err))
	}

	var (
		wg              sync.WaitGroup
		parts           []Part
		caption         string
		imgErr, textErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		if parts, imgErr = o.provider.GenerateImage(callCtx, imgPrompt, ref); imgErr != nil {
			imgErr = appErrors.NewProviderError("image", imgErr)
		}
	}()
	go func() {
		defer wg.Done()
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		if caption, textErr = o.provider.GenerateText(callCtx, txtPrompt); textErr != nil {
			textErr = appErrors.NewProviderError("text", textErr)
		}
	}()
	wg.Wait()

	if imgErr != nil || textErr != nil {
		err := errors.Join(imgErr, textErr)
		o.logger.Warn().Err(err).Str("topic", topic).Msg("generation: provider call failed")
		return failed(res, err)
	}

	res.Caption = caption
	img, err := ExtractImage(parts)
	if err != nil {
		o.logger.Warn().Str("topic", topic).Int("parts", len(parts)).Msg("generation: response carried no image")
		res.ImageError = NoImageMarker
		return res
	}
	res.Image = img
	o.logger.Info().Str("topic", topic).Str("mime", img.MIMEType).Msg("generation: assets ready")
	return res
}

// Batch runs Generate sequentially, one reference image at a time, and calls
// progress after each item. With no references a single item is produced.
func (o *Orchestrator) Batch(ctx context.Context, topic string, refs []*ReferenceImage, voice model.BrandVoice, progress func(done, total int, r Result)) []Result {
	if len(refs) == 0 {
		refs = []*ReferenceImage{nil}
	}

	results := make([]Result, 0, len(refs))
	for i, ref := range refs {
		r := o.Generate(ctx, topic, ref, voice)
		results = append(results, r)
		if progress != nil {
			progress(i+1, len(refs), r)
		}
	}
	return results
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.Timeout > 0 {
		return context.WithTimeout(ctx, o.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func failed(res Result, err error) Result {
	res.Err = err
	res.Error = err.Error()
	res.Image = nil
	res.ImageError = ErrorPrefix + err.Error()
	res.Caption = ErrorPrefix + err.Error()
	return res
}
