package generation

import (
	"strings"
	"text/template"

	"github.com/unclebandit/campaign-studio/internal/model"
)

var imagePrompt = template.Must(template.New("image").Parse(`
Create a high-fidelity marketing image for the campaign: '{{.Topic}}'.

DESIGN SYSTEM:
- Primary Colors: {{.Voice.Palette.Background1}}, {{.Voice.Palette.Background2}}
- Accent Colors: {{.Voice.Palette.Accent1}}, {{.Voice.Palette.Accent2}}
- Key Text Color: {{.Voice.Palette.Text}}

COMPOSITION:
- Professional Studio Lighting.
{{- if .HasReference}}
- A pet photo is attached: style it as a Premium Art Portrait.
{{- else}}
- No photo was provided: create a conceptual illustration.
{{- end}}
{{- if .Voice.FormatLayout}}
- Layout: {{.Voice.FormatLayout}}.
{{- end}}
- Overlay the campaign title '{{.Topic}}' using a clean, modern font.
`))

var captionPrompt = template.Must(template.New("caption").Parse(`
Write a high-converting {{with .Voice.FormatLayout}}{{.}}{{else}}Instagram caption{{end}} for the campaign '{{.Topic}}'.
{{- with .Voice.Mission}}

BRAND MISSION: {{.}}
{{- end}}

TONE:
- {{with .Voice.Vibe}}{{.}}{{else}}Empathetic but excited{{end}}.
- Use 1-2 emojis.
- Include a Call to Action (CTA).
- Add 3 relevant hashtags.
{{- with .Voice.FounderName}}
- Sign off as {{.}}.
{{- end}}
`))

type promptData struct {
	Topic        string
	HasReference bool
	Voice        model.BrandVoice
}

func render(t *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// ImagePrompt renders the design prompt for a topic.
func ImagePrompt(topic string, hasReference bool, voice model.BrandVoice) (string, error) {
	return render(imagePrompt, promptData{Topic: topic, HasReference: hasReference, Voice: voice})
}

// CaptionPrompt renders the copywriting prompt for a topic.
func CaptionPrompt(topic string, voice model.BrandVoice) (string, error) {
	return render(captionPrompt, promptData{Topic: topic, Voice: voice})
}
