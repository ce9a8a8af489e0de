package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Git-Robbed/smells-phishy/internal/intel"
)

// Verdict is the final classification of an email
type Verdict string

const (
	VerdictSafe       Verdict = "SAFE"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictDanger     Verdict = "DANGER"
)

// VerdictFromScore maps a 0-100 risk score to a verdict.
// Below 30 is SAFE, 30 through 70 inclusive is SUSPICIOUS, above 70 is DANGER.
func VerdictFromScore(score int) Verdict {
	switch {
	case score < 30:
		return VerdictSafe
	case score <= 70:
		return VerdictSuspicious
	default:
		return VerdictDanger
	}
}

// ScanRequest is a request to scan one email
type ScanRequest struct {
	ID      uuid.UUID `json:"id,omitempty"`
	Content string    `json:"content"`
	Subject string    `json:"subject,omitempty"`
	Sender  string    `json:"sender,omitempty"`
	SkipAI  bool      `json:"skip_ai,omitempty"`
}

// ScanBatchRequest is a request to scan multiple emails
type ScanBatchRequest struct {
	Emails []ScanRequest `json:"emails"`
}

// URLInfo describes one URL extracted from the email body
type URLInfo struct {
	Raw            string   `json:"raw"`
	Normalized     string   `json:"normalized"`
	Host           string   `json:"host"`
	TLD            string   `json:"tld,omitempty"`
	IsIP           bool     `json:"is_ip"`
	IsShortened    bool     `json:"is_shortened"`
	HasUserInfo    bool     `json:"has_userinfo"`
	IsPunycode     bool     `json:"is_punycode"`
	SuspiciousTLD  bool     `json:"suspicious_tld"`
	SubdomainDepth int      `json:"subdomain_depth"`
	Flags          []string `json:"flags,omitempty"`
}

// AIAnalysis is the parsed verdict returned by the LLM classifier
type AIAnalysis struct {
	Score       int      `json:"score"`
	Verdict     Verdict  `json:"verdict"`
	Confidence  float64  `json:"confidence"`
	Signals     []string `json:"signals,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Model       string   `json:"model,omitempty"`
	TokensUsed  int      `json:"tokens_used,omitempty"`
	RawResponse string   `json:"raw_response,omitempty"`
}

// ScanResult is the outcome of scanning one email
type ScanResult struct {
	ID            uuid.UUID       `json:"id"`
	Verdict       Verdict         `json:"verdict"`
	Score         int             `json:"score"`
	Confidence    float64         `json:"confidence"`
	URLs          []URLInfo       `json:"urls,omitempty"`
	IntelFindings []intel.Finding `json:"intel_findings,omitempty"`
	AI            *AIAnalysis     `json:"ai,omitempty"`
	AISkipped     bool            `json:"ai_skipped"`
	AISkipReason  string          `json:"ai_skip_reason,omitempty"`
	ShortCircuit  bool            `json:"short_circuit"`
	Signals       []string        `json:"signals,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	Duration      time.Duration   `json:"duration_ns"`
	ScannedAt     time.Time       `json:"scanned_at"`
	Error         string          `json:"error,omitempty"`
}

// ScanBatchResult is the outcome of a batch scan
type ScanBatchResult struct {
	Results    []*ScanResult `json:"results"`
	TotalCount int           `json:"total_count"`
	ScannedAt  time.Time     `json:"scanned_at"`
}

// URLCheckRequest asks for the intel layer only, for one URL
type URLCheckRequest struct {
	URL string `json:"url"`
}

// URLCheckResult is the intel verdict for one URL
type URLCheckResult struct {
	URL          string          `json:"url"`
	Info         URLInfo         `json:"info"`
	Findings     []intel.Finding `json:"findings,omitempty"`
	Score        int             `json:"score"`
	Verdict      Verdict         `json:"verdict"`
	ShortCircuit bool            `json:"short_circuit"`
	CheckedAt    time.Time       `json:"checked_at"`
}

// QuotaStatus reports remaining AI classifier quota for the current day
type QuotaStatus struct {
	DailyQuota int64  `json:"daily_quota"`
	Used       int64  `json:"used"`
	Remaining  int64  `json:"remaining"`
	ResetsAt   string `json:"resets_at"`
}
