package services

import (
	"regexp"
	"strings"

	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

// Sanitizer strips encoded payloads from raw email content before analysis.
// Inline images and long base64/hex runs carry no classification signal and
// would blow up both the intel layer and the AI prompt.
type Sanitizer struct {
	maxContentBytes int
	logger          *logger.Logger
}

var (
	// data:image/png;base64,iVBORw0... style inline attachments
	dataURIPattern = regexp.MustCompile(`data:[a-zA-Z0-9.+/-]+;base64,[A-Za-z0-9+/=]+`)

	// standalone base64 runs long enough to be payloads rather than words
	base64BlobPattern = regexp.MustCompile(`[A-Za-z0-9+/]{200,}={0,2}`)

	// long hex runs (tracking blobs, encoded attachments)
	hexBlobPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{120,}\b`)

	// collapse runs of blank lines left behind by the strips
	blankRunPattern = regexp.MustCompile(`\n{3,}`)

	spaceRunPattern = regexp.MustCompile(`[ \t]{2,}`)
)

// NewSanitizer creates a new content sanitizer
func NewSanitizer(maxContentBytes int, log *logger.Logger) *Sanitizer {
	if maxContentBytes <= 0 {
		maxContentBytes = 64 * 1024
	}
	return &Sanitizer{
		maxContentBytes: maxContentBytes,
		logger:          log.WithComponent("sanitizer"),
	}
}

// Sanitize returns a cleaned copy of the content and the number of bytes of
// encoded payload stripped. Whitespace collapse and truncation do not count
// toward the removed total.
func (s *Sanitizer) Sanitize(content string) (string, int) {
	original := len(content)

	cleaned := dataURIPattern.ReplaceAllString(content, "[inline-image removed]")
	cleaned = base64BlobPattern.ReplaceAllString(cleaned, "[encoded-blob removed]")
	cleaned = hexBlobPattern.ReplaceAllString(cleaned, "[encoded-blob removed]")

	removed := original - len(cleaned)
	if removed < 0 {
		removed = 0
	}

	cleaned = blankRunPattern.ReplaceAllString(cleaned, "\n\n")
	cleaned = spaceRunPattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > s.maxContentBytes {
		cleaned = truncateUTF8(cleaned, s.maxContentBytes)
	}

	if removed > 0 {
		s.logger.Debug().
			Int("original_bytes", original).
			Int("removed_bytes", removed).
			Msg("content sanitized")
	}

	return cleaned, removed
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
