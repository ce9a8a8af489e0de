package intel

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"

	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

const domainAgeSlug = "domainage"

// DomainAgeChecker flags URLs whose registrable domain was created recently.
// Freshly registered domains dominate phishing campaigns; an old domain is
// no guarantee of safety, so this checker raises suspicion but never confirms
// a listing on its own.
type DomainAgeChecker struct {
	*BaseChecker
	minAgeDays int
	logger     *logger.Logger

	// whoisFn is swappable for tests
	whoisFn func(domain string) (string, error)
}

// NewDomainAgeChecker creates a new WHOIS domain age checker
func NewDomainAgeChecker(cfg CheckerConfig, minAgeDays int, log *logger.Logger) *DomainAgeChecker {
	if minAgeDays == 0 {
		minAgeDays = 30
	}
	return &DomainAgeChecker{
		BaseChecker: NewBaseChecker(domainAgeSlug, "Domain Age (WHOIS)", cfg),
		minAgeDays:  minAgeDays,
		logger:      log.WithChecker(domainAgeSlug),
		whoisFn: func(domain string) (string, error) {
			return whois.Whois(domain)
		},
	}
}

// Check looks up the WHOIS creation date of the URL's domain
func (c *DomainAgeChecker) Check(ctx context.Context, rawURL string) (*Finding, error) {
	finding := &Finding{
		Checker: c.Slug(),
		URL:     rawURL,
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	host := parsed.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		// IP-literal hosts have no registration date; the extractor already
		// flags them
		return finding, nil
	}

	created, err := c.lookupCreated(host)
	if err != nil {
		return nil, err
	}
	if created.IsZero() {
		return finding, nil
	}

	ageDays := int(time.Since(created).Hours() / 24)
	if ageDays < c.minAgeDays {
		finding.Listed = true
		finding.Confidence = 0.6
		finding.Score = 45
		finding.Categories = append(finding.Categories, "young_domain")
		finding.Detail = fmt.Sprintf("domain %s registered %d days ago", host, ageDays)
	}

	c.logger.Debug().
		Str("domain", host).
		Int("age_days", ageDays).
		Bool("young", finding.Listed).
		Msg("domain age check completed")

	return finding, nil
}

// lookupCreated resolves the WHOIS creation date, retrying the parent domain
// for subdomains whose own WHOIS record is empty
func (c *DomainAgeChecker) lookupCreated(domain string) (time.Time, error) {
	raw, err := c.whoisFn(domain)
	if err != nil {
		return time.Time{}, fmt.Errorf("whois lookup failed: %w", err)
	}

	p, err := parser.Parse(raw)
	if err != nil || p.Domain == nil {
		parts := strings.Split(domain, ".")
		if len(parts) > 2 {
			return c.lookupCreated(strings.Join(parts[1:], "."))
		}
		return time.Time{}, nil
	}

	return parseWhoisDate(strings.TrimSpace(p.Domain.CreatedDate)), nil
}

// parseWhoisDate tries the date layouts registrars commonly emit
func parseWhoisDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-Jan-2006",
		"2006.01.02",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
