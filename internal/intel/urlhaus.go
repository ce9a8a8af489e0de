package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

const (
	urlhausAPIURL = "https://urlhaus-api.abuse.ch/v1/url/"
	urlhausSlug   = "urlhaus"
)

// URLhausChecker queries the Abuse.ch URLhaus lookup API (public, no auth required)
type URLhausChecker struct {
	*BaseChecker
	client *http.Client
	logger *logger.Logger
	apiURL string
}

// NewURLhausChecker creates a new URLhaus checker
func NewURLhausChecker(cfg CheckerConfig, log *logger.Logger) *URLhausChecker {
	base := NewBaseChecker(urlhausSlug, "URLhaus", cfg)
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = urlhausAPIURL
	}
	return &URLhausChecker{
		BaseChecker: base,
		client: &http.Client{
			Timeout: base.Config().Timeout,
		},
		logger: log.WithChecker(urlhausSlug),
		apiURL: apiURL,
	}
}

type urlhausResponse struct {
	QueryStatus string   `json:"query_status"`
	URLStatus   string   `json:"url_status"`
	Threat      string   `json:"threat"`
	Tags        []string `json:"tags"`
	Blacklists  struct {
		SpamhausDBL string `json:"spamhaus_dbl"`
		SURBL       string `json:"surbl"`
	} `json:"blacklists"`
}

// Check queries URLhaus for a single URL
func (c *URLhausChecker) Check(ctx context.Context, rawURL string) (*Finding, error) {
	finding := &Finding{
		Checker: c.Slug(),
		URL:     rawURL,
	}

	form := url.Values{}
	form.Set("url", rawURL)

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var apiResp urlhausResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// query_status "no_results" means URLhaus has never seen the URL
	if apiResp.QueryStatus == "ok" {
		finding.Listed = true
		finding.Malicious = true
		finding.Confidence = 0.9
		finding.Score = 100
		if apiResp.URLStatus == "offline" {
			// Taken down; still a strong signal the mail is hostile
			finding.Confidence = 0.8
		}
		if apiResp.Threat != "" {
			finding.Categories = append(finding.Categories, apiResp.Threat)
		}
		finding.Categories = append(finding.Categories, apiResp.Tags...)
		finding.Detail = fmt.Sprintf("URLhaus listing (%s)", apiResp.URLStatus)
	}

	c.logger.Debug().
		Str("url", rawURL).
		Str("query_status", apiResp.QueryStatus).
		Bool("listed", finding.Listed).
		Dur("duration", time.Since(start)).
		Msg("URLhaus check completed")

	return finding, nil
}
