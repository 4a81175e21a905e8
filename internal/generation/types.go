package generation

import (
	"context"
	"net/http"
)

// ReferenceImage is an operator-supplied photo attached to the image request.
type ReferenceImage struct {
	Filename string
	MIMEType string
	Data     []byte
}

// NewReferenceImage sniffs the MIME type when the upload did not carry one.
func NewReferenceImage(filename, mimeType string, data []byte) *ReferenceImage {
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &ReferenceImage{Filename: filename, MIMEType: mimeType, Data: data}
}

// Part is one piece of a provider response. Image payloads arrive either as
// inline bytes or as a reference to an already stored file.
type Part struct {
	Text       string
	InlineData []byte
	MIMEType   string
	FileURI    string
}

// Provider is a generative model backend with one fixed model per endpoint.
type Provider interface {
	GenerateImage(ctx context.Context, prompt string, ref *ReferenceImage) ([]Part, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageArtifact is the normalized image. Exactly one of Data or URI is set.
type ImageArtifact struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// Result is the outcome of one generation. Image is nil when ImageError
// holds a user-visible marker. Err is set only when a provider call failed.
type Result struct {
	Topic      string         `json:"topic"`
	Reference  string         `json:"reference,omitempty"`
	Image      *ImageArtifact `json:"image,omitempty"`
	ImageError string         `json:"image_error,omitempty"`
	Caption    string         `json:"caption"`
	// Error survives serialization; Err keeps the typed error in process.
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Failed reports whether a provider call failed outright.
func (r Result) Failed() bool { return r.Err != nil || r.Error != "" }
