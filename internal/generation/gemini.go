package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider calls the Gemini API with one fixed model per endpoint.
type GeminiProvider struct {
	models     contentGenerator
	imageModel string
	textModel  string
}

func NewGeminiProvider(ctx context.Context, apiKey, imageModel, textModel string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProvider{models: client.Models, imageModel: imageModel, textModel: textModel}, nil
}

func (g *GeminiProvider) GenerateImage(ctx context.Context, prompt string, ref *ReferenceImage) ([]Part, error) {
	parts := []*genai.Part{{Text: prompt}}
	if ref != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: ref.Data, MIMEType: ref.MIMEType}})
	}

	resp, err := g.models.GenerateContent(ctx, g.imageModel, []*genai.Content{{Role: "user", Parts: parts}}, nil)
	if err != nil {
		return nil, err
	}

	content, err := firstContent(resp)
	if err != nil {
		return nil, err
	}

	out := make([]Part, 0, len(content.Parts))
	for _, p := range content.Parts {
		if p == nil {
			continue
		}
		part := Part{Text: p.Text}
		if p.InlineData != nil {
			part.InlineData = p.InlineData.Data
			part.MIMEType = p.InlineData.MIMEType
		}
		if p.FileData != nil {
			part.FileURI = p.FileData.FileURI
			if part.MIMEType == "" {
				part.MIMEType = p.FileData.MIMEType
			}
		}
		out = append(out, part)
	}
	return out, nil
}

func (g *GeminiProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.textModel, []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}, nil)
	if err != nil {
		return "", err
	}

	content, err := firstContent(resp)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("response carried no text")
	}
	return b.String(), nil
}

func firstContent(resp *genai.GenerateContentResponse) (*genai.Content, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, errors.New("empty response from provider")
	}
	return resp.Candidates[0].Content, nil
}

var _ Provider = (*GeminiProvider)(nil)
