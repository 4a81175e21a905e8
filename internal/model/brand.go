package model

// Palette is the brand colour set fed into the image prompt.
type Palette struct {
	Background1 string `json:"background_1"`
	Background2 string `json:"background_2"`
	Accent1     string `json:"accent_1"`
	Accent2     string `json:"accent_2"`
	Text        string `json:"text"`
}

func DefaultPalette() Palette {
	return Palette{
		Background1: "#E4F3FF",
		Background2: "#E0D6FF",
		Accent1:     "#7DC6FF",
		Accent2:     "#FF9AC4",
		Text:        "#1F2A3C",
	}
}

// BrandVoice shapes the caption's tone and sign-off.
type BrandVoice struct {
	Mission      string  `json:"mission"`
	FounderName  string  `json:"founder_name"`
	Vibe         string  `json:"vibe"`
	FormatLayout string  `json:"format_layout"`
	Palette      Palette `json:"palette"`
}
