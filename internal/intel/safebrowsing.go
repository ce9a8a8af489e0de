package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

const (
	safeBrowsingAPIURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	safeBrowsingSlug   = "safebrowsing"
)

// SafeBrowsingChecker queries the Google Safe Browsing v4 lookup API
type SafeBrowsingChecker struct {
	*BaseChecker
	client *http.Client
	logger *logger.Logger
	apiURL string
	apiKey string
}

// NewSafeBrowsingChecker creates a new Google Safe Browsing checker
func NewSafeBrowsingChecker(cfg CheckerConfig, log *logger.Logger) *SafeBrowsingChecker {
	base := NewBaseChecker(safeBrowsingSlug, "Google Safe Browsing", cfg)
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = safeBrowsingAPIURL
	}
	return &SafeBrowsingChecker{
		BaseChecker: base,
		client: &http.Client{
			Timeout: base.Config().Timeout,
		},
		logger: log.WithChecker(safeBrowsingSlug),
		apiURL: apiURL,
		apiKey: cfg.APIKey,
	}
}

// Enabled reports whether the checker can run; an API key is required
func (c *SafeBrowsingChecker) Enabled() bool {
	return c.BaseChecker.Enabled() && c.apiKey != ""
}

type sbRequest struct {
	Client     sbClientInfo `json:"client"`
	ThreatInfo sbThreatInfo `json:"threatInfo"`
}

type sbClientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type sbThreatInfo struct {
	ThreatTypes      []string        `json:"threatTypes"`
	PlatformTypes    []string        `json:"platformTypes"`
	ThreatEntryTypes []string        `json:"threatEntryTypes"`
	ThreatEntries    []sbThreatEntry `json:"threatEntries"`
}

type sbThreatEntry struct {
	URL string `json:"url"`
}

type sbResponse struct {
	Matches []sbMatch `json:"matches"`
}

type sbMatch struct {
	ThreatType   string        `json:"threatType"`
	PlatformType string        `json:"platformType"`
	Threat       sbThreatEntry `json:"threat"`
}

// Check queries Safe Browsing for a single URL
func (c *SafeBrowsingChecker) Check(ctx context.Context, rawURL string) (*Finding, error) {
	finding := &Finding{
		Checker: c.Slug(),
		URL:     rawURL,
	}

	reqBody := sbRequest{
		Client: sbClientInfo{
			ClientID:      "smells-phishy",
			ClientVersion: "1.0.0",
		},
		ThreatInfo: sbThreatInfo{
			ThreatTypes:      []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"},
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []sbThreatEntry{{URL: rawURL}},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s?key=%s", c.apiURL, c.apiKey),
		bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var apiResp sbResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, match := range apiResp.Matches {
		if match.Threat.URL != rawURL {
			continue
		}
		finding.Listed = true
		finding.Malicious = true
		finding.Confidence = 0.95
		finding.Score = 100
		finding.Categories = append(finding.Categories, match.ThreatType)
	}
	if finding.Listed {
		finding.Detail = fmt.Sprintf("Safe Browsing match: %v", finding.Categories)
	}

	c.logger.Debug().
		Str("url", rawURL).
		Bool("listed", finding.Listed).
		Dur("duration", time.Since(start)).
		Msg("Safe Browsing check completed")

	return finding, nil
}
