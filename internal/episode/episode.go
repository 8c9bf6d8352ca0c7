package episode

import (
	"regexp"
	"strings"
	"time"
)

// Episode is a normalized feed entry served to clients.
type Episode struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Published string `json:"published"`
	Thumbnail string `json:"thumbnail"`

	// PublishedAt is Published parsed; it drives ordering and bucketing.
	PublishedAt time.Time `json:"-"`
}

var (
	// "|| 23-02-26", "| 2024/03/01 (re-upload)"
	numericDateSuffix = regexp.MustCompile(`\s*\|{1,2}\s*(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}).*$`)
	// "| 3 March 2024"
	longDateSuffix = regexp.MustCompile(`(?i)\s*\|\s*\d{1,2}\s+(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+\d{4}.*$`)
)

// IsEpisodeTitle reports whether a feed title names an episode and is not a promo.
func IsEpisodeTitle(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "episode") && !strings.Contains(lower, "promo")
}

// CleanTitle strips a trailing upload date annotation from a title.
func CleanTitle(title string) string {
	cleaned := numericDateSuffix.ReplaceAllString(title, "")
	cleaned = longDateSuffix.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
