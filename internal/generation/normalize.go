package generation

import (
	"net/http"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
)

// NoImageMarker is shown in place of an image when the response had none.
const NoImageMarker = "Error: No image found in response."

// ExtractImage checks for inline bytes first, then for a file reference,
// and returns ErrNoImage when neither shape is present.
func ExtractImage(parts []Part) (*ImageArtifact, error) {
	for _, p := range parts {
		if len(p.InlineData) == 0 {
			continue
		}
		mime := p.MIMEType
		if mime == "" {
			mime = http.DetectContentType(p.InlineData)
		}
		return &ImageArtifact{MIMEType: mime, Data: p.InlineData}, nil
	}

	for _, p := range parts {
		if p.FileURI != "" {
			return &ImageArtifact{MIMEType: p.MIMEType, URI: p.FileURI}, nil
		}
	}

	return nil, appErrors.ErrNoImage
}
