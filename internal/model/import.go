package model

// ImportRecord is one entry of a bulk import document. It accepts both the
// current export shape and the legacy book-only shape, which carried the
// resource locator as pdfUrl and had no media type at all. The mapping to
// the current model happens here, in one place, rather than as scattered
// conditionals.
type ImportRecord struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Subject   string `json:"subject,omitempty"`
	Year      int    `json:"year,omitempty"`
	Code      string `json:"code,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`

	// Legacy field names.
	LegacyPDFURL string `json:"pdfUrl,omitempty"`
}

// ToItem resolves the record into a typed Item with defaults applied:
// a missing media type means book, and a legacy pdfUrl becomes the media URL
// when none is present. The returned item carries no availability state;
// imports never touch holders.
func (r ImportRecord) ToItem() Item {
	mediaURL := r.MediaURL
	if mediaURL == "" {
		mediaURL = r.LegacyPDFURL
	}
	mediaType := r.MediaType
	if mediaType == "" {
		mediaType = MediaBook
	}
	return Item{
		ID:        r.ID,
		Title:     r.Title,
		Author:    r.Author,
		Subject:   r.Subject,
		Year:      r.Year,
		Code:      r.Code,
		MediaType: mediaType,
		MediaURL:  mediaURL,
		Available: true,
	}
}
