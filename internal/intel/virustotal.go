package intel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

const (
	virusTotalAPIURL = "https://www.virustotal.com/api/v3"
	virusTotalSlug   = "virustotal"
)

// VirusTotalChecker looks up URL reputations via the VirusTotal v3 API
type VirusTotalChecker struct {
	*BaseChecker
	client *http.Client
	logger *logger.Logger
	apiURL string
	apiKey string
}

// NewVirusTotalChecker creates a new VirusTotal checker
func NewVirusTotalChecker(cfg CheckerConfig, log *logger.Logger) *VirusTotalChecker {
	base := NewBaseChecker(virusTotalSlug, "VirusTotal", cfg)
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = virusTotalAPIURL
	}
	return &VirusTotalChecker{
		BaseChecker: base,
		client: &http.Client{
			Timeout: base.Config().Timeout,
		},
		logger: log.WithChecker(virusTotalSlug),
		apiURL: apiURL,
		apiKey: cfg.APIKey,
	}
}

// Enabled reports whether the checker can run; an API key is required
func (c *VirusTotalChecker) Enabled() bool {
	return c.BaseChecker.Enabled() && c.apiKey != ""
}

type vtAnalysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
	Harmless   int `json:"harmless"`
}

type vtURLResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats vtAnalysisStats   `json:"last_analysis_stats"`
			Categories        map[string]string `json:"categories"`
			Title             string            `json:"title"`
		} `json:"attributes"`
	} `json:"data"`
}

// Check looks up a single URL against VirusTotal
func (c *VirusTotalChecker) Check(ctx context.Context, rawURL string) (*Finding, error) {
	finding := &Finding{
		Checker: c.Slug(),
		URL:     rawURL,
	}

	// VT identifies URLs by the unpadded base64url of the URL itself
	urlID := strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(rawURL)), "=")

	req, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/urls/%s", c.apiURL, urlID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Never analyzed by VT; not a signal either way
	if resp.StatusCode == http.StatusNotFound {
		return finding, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VirusTotal returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp vtURLResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats := apiResp.Data.Attributes.LastAnalysisStats
	totalEngines := stats.Malicious + stats.Suspicious + stats.Undetected + stats.Harmless
	if totalEngines == 0 {
		return finding, nil
	}

	detectionRatio := float64(stats.Malicious) / float64(totalEngines)

	switch {
	case stats.Malicious >= 5 || detectionRatio > 0.1:
		finding.Listed = true
		finding.Malicious = true
		finding.Confidence = 0.5 + detectionRatio/2
		if finding.Confidence > 0.95 {
			finding.Confidence = 0.95
		}
		finding.Score = 100
	case stats.Malicious > 0 || stats.Suspicious > 1:
		finding.Listed = true
		finding.Confidence = 0.5
		finding.Score = 50
	}

	if finding.Listed {
		finding.Detail = fmt.Sprintf("VirusTotal: %d/%d engines flagged", stats.Malicious, totalEngines)
		for _, cat := range apiResp.Data.Attributes.Categories {
			finding.Categories = append(finding.Categories, cat)
		}
	}

	c.logger.Debug().
		Str("url", rawURL).
		Int("malicious", stats.Malicious).
		Int("engines", totalEngines).
		Dur("duration", time.Since(start)).
		Msg("VirusTotal check completed")

	return finding, nil
}
