package tier

import (
	"strings"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/utils"
)

const (
	maxSummaryRunes = 117
	dateLayout      = "2006-01-02"
	bucketLayout    = "2006-01"
	undatedBucket   = "undated"
)

// Summarize returns the first sentence of text, cut to fit a WARM line.
func Summarize(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i+1]
		}
	}
	s = strings.ReplaceAll(s, "|", "/")
	return utils.Truncate(strings.TrimSpace(s), maxSummaryRunes)
}

// WarmLine is the one-line WARM index entry for a session.
func WarmLine(s Session) string {
	date := undatedBucket
	if !s.Date.IsZero() {
		date = s.Date.Format(dateLayout)
	}
	summary := s.Title
	if summary == "" {
		summary = Summarize(s.Narrative)
	}
	return date + " | " + summary
}

// Bucket names the COLD archive file for a session.
func Bucket(date time.Time) string {
	if date.IsZero() {
		return undatedBucket
	}
	return date.Format(bucketLayout)
}
