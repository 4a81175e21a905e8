package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
)

func TestExtractImage_PrefersInlineData(t *testing.T) {
	img, err := ExtractImage([]Part{
		{FileURI: "https://files.example/abc", MIMEType: "image/jpeg"},
		{InlineData: pngHeader, MIMEType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, pngHeader, img.Data)
	assert.Empty(t, img.URI)
}

func TestExtractImage_FallsBackToFileReference(t *testing.T) {
	img, err := ExtractImage([]Part{
		{Text: "caption-ish"},
		{InlineData: []byte{}},
		{FileURI: "https://files.example/abc", MIMEType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/abc", img.URI)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Nil(t, img.Data)
}

func TestExtractImage_SniffsMissingMIME(t *testing.T) {
	img, err := ExtractImage([]Part{{InlineData: pngHeader}})
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestExtractImage_NoImage(t *testing.T) {
	_, err := ExtractImage(nil)
	assert.ErrorIs(t, err, appErrors.ErrNoImage)

	_, err = ExtractImage([]Part{{Text: "sorry"}})
	assert.ErrorIs(t, err, appErrors.ErrNoImage)
}
