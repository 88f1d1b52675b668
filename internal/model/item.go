package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Item represents a catalog entry: a lendable or streamable media resource.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Subject   string    `json:"subject,omitempty"`
	Year      int       `json:"year,omitempty"`
	Code      string    `json:"code,omitempty"`
	MediaType string    `json:"media_type"`
	MediaURL  string    `json:"media_url,omitempty"`
	Available bool      `json:"available"`
	Holder    *Holder   `json:"holder,omitempty"`
	CoverMime string    `json:"cover_mime,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Holder identifies the user currently holding a borrowed item.
// Present exactly when Available is false.
type Holder struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Media types.
const (
	MediaBook  = "book"
	MediaAudio = "audio"
	MediaVideo = "video"
)

// ValidMediaType reports whether t is a known media type.
func ValidMediaType(t string) bool {
	return t == MediaBook || t == MediaAudio || t == MediaVideo
}

var (
	codeRX        = regexp.MustCompile(`^[A-Z0-9-]{3,20}$`)
	codeSpacesRX  = regexp.MustCompile(`\s+`)
	codeInvalidRX = regexp.MustCompile(`[^A-Z0-9-]`)
)

// NormalizeCode canonicalizes a classification code: uppercase, runs of
// whitespace become hyphens, remaining invalid characters are stripped. The
// result must match ^[A-Z0-9-]{3,20}$. An empty input is valid and stays
// empty; ok is false when the normalized code fails the pattern.
func NormalizeCode(raw string) (code string, ok bool) {
	code = strings.TrimSpace(raw)
	if code == "" {
		return "", true
	}
	code = strings.ToUpper(code)
	code = codeSpacesRX.ReplaceAllString(code, "-")
	code = codeInvalidRX.ReplaceAllString(code, "")
	if !codeRX.MatchString(code) {
		return "", false
	}
	return code, true
}

// Validate checks the item's required fields and returns a map of field names
// to error messages. An empty map means the item is valid. Code validation is
// separate (see NormalizeCode) because it rewrites the value.
func (i Item) Validate() map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(i.Title) == "" {
		errs["title"] = "must be provided"
	}
	if strings.TrimSpace(i.Author) == "" {
		errs["author"] = "must be provided"
	}
	if !ValidMediaType(i.MediaType) {
		errs["media_type"] = "must be one of: book, audio, video"
	}
	if i.Year < 0 {
		errs["year"] = "must not be negative"
	}
	return errs
}

// Filter holds the catalog browse filters. The zero value matches everything.
type Filter struct {
	Text      string
	Subject   string
	Year      int
	MediaType string
	Available *bool
}

// Matches reports whether the item passes the filter. Text matches
// case-insensitively against title, author, subject and code.
func (f Filter) Matches(i Item) bool {
	if f.Text != "" {
		haystack := strings.ToLower(i.Title + " " + i.Author + " " + i.Subject + " " + i.Code)
		if !strings.Contains(haystack, strings.ToLower(f.Text)) {
			return false
		}
	}
	if f.Subject != "" && !strings.EqualFold(f.Subject, i.Subject) {
		return false
	}
	if f.Year != 0 && f.Year != i.Year {
		return false
	}
	if f.MediaType != "" && f.MediaType != i.MediaType {
		return false
	}
	if f.Available != nil && *f.Available != i.Available {
		return false
	}
	return true
}

// FilterItems applies the filter to a previously loaded snapshot. It is a
// pure function: filters never trigger a re-query.
func FilterItems(items []Item, f Filter) []Item {
	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		if f.Matches(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// ParseYear converts a year query parameter, tolerating empty input.
func ParseYear(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
