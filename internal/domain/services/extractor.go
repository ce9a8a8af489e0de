package services

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/Git-Robbed/smells-phishy/internal/domain/models"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

// Extractor finds URLs in email text and derives per-URL structural signals
type Extractor struct {
	maxURLs int
	logger  *logger.Logger
}

// Patterns cover explicit schemes, www-prefixed hosts, and bare domains on
// the TLDs that actually show up in mail
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[^\s<>"'}\]]+`),
	regexp.MustCompile(`www\.[^\s<>"'}\]]+`),
	regexp.MustCompile(`[a-zA-Z0-9][-a-zA-Z0-9]*\.(?:com|net|org|io|co|info|biz|xyz|online|site|app|dev|top|click|link)[^\s<>"'}\]]*`),
}

// URL shorteners hide the real destination
var knownShorteners = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "t.co": true, "goo.gl": true,
	"ow.ly": true, "is.gd": true, "buff.ly": true, "rebrand.ly": true,
	"cutt.ly": true, "shorturl.at": true, "rb.gy": true, "t.ly": true,
}

// TLDs with outsized abuse rates in phishing feeds
var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true,
	"top": true, "xyz": true, "click": true, "link": true, "zip": true,
	"work": true, "rest": true, "country": true,
}

// NewExtractor creates a new URL extractor
func NewExtractor(maxURLs int, log *logger.Logger) *Extractor {
	if maxURLs <= 0 {
		maxURLs = 10
	}
	return &Extractor{
		maxURLs: maxURLs,
		logger:  log.WithComponent("extractor"),
	}
}

// Extract scans content for URLs, normalizes and deduplicates them, and
// returns at most maxURLs entries in order of first appearance
func (e *Extractor) Extract(content string) []models.URLInfo {
	var out []models.URLInfo
	seen := make(map[string]bool)

	for _, pattern := range urlPatterns {
		for _, match := range pattern.FindAllString(content, -1) {
			match = strings.TrimRight(match, ".,;:!?)\"'")

			// the bare-domain pattern re-matches the tail of URLs the
			// earlier patterns already captured
			if containsMatch(out, match) {
				continue
			}

			info := e.analyze(match)
			if info.Host == "" {
				continue
			}
			if seen[info.Normalized] {
				continue
			}
			seen[info.Normalized] = true

			out = append(out, info)
			if len(out) >= e.maxURLs {
				e.logger.Debug().Int("max", e.maxURLs).Msg("URL cap reached")
				return out
			}
		}
	}

	return out
}

func containsMatch(urls []models.URLInfo, match string) bool {
	for _, u := range urls {
		if strings.Contains(u.Normalized, match) {
			return true
		}
	}
	return false
}

// analyze normalizes a raw match and derives structural red flags
func (e *Extractor) analyze(raw string) models.URLInfo {
	info := models.URLInfo{Raw: raw}

	normalized := raw
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		normalized = "https://" + raw
	}

	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Hostname() == "" {
		return info
	}

	info.Normalized = normalized
	info.Host = strings.ToLower(parsed.Hostname())

	parts := strings.Split(info.Host, ".")
	if len(parts) > 1 {
		info.TLD = parts[len(parts)-1]
	}
	info.SubdomainDepth = len(parts) - 2
	if info.SubdomainDepth < 0 {
		info.SubdomainDepth = 0
	}

	if net.ParseIP(info.Host) != nil {
		info.IsIP = true
		info.Flags = append(info.Flags, "ip_address_host")
	}
	if parsed.User != nil {
		info.HasUserInfo = true
		info.Flags = append(info.Flags, "userinfo_in_url")
	}
	if knownShorteners[info.Host] {
		info.IsShortened = true
		info.Flags = append(info.Flags, "url_shortener")
	}
	if strings.Contains(info.Host, "xn--") {
		info.IsPunycode = true
		info.Flags = append(info.Flags, "punycode_host")
	}
	if suspiciousTLDs[info.TLD] {
		info.SuspiciousTLD = true
		info.Flags = append(info.Flags, "suspicious_tld")
	}
	if info.SubdomainDepth >= 3 {
		info.Flags = append(info.Flags, "deep_subdomain")
	}

	return info
}

// StructuralScore converts a URL's red flags into a 0-100 risk contribution
func StructuralScore(info models.URLInfo) int {
	score := 0
	if info.IsIP {
		score += 35
	}
	if info.HasUserInfo {
		score += 35
	}
	if info.IsPunycode {
		score += 25
	}
	if info.SuspiciousTLD {
		score += 20
	}
	if info.IsShortened {
		score += 15
	}
	if info.SubdomainDepth >= 3 {
		score += 15
	}
	if score > 100 {
		score = 100
	}
	return score
}
