package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Git-Robbed/smells-phishy/internal/config"
	"github.com/Git-Robbed/smells-phishy/internal/domain/models"
	"github.com/Git-Robbed/smells-phishy/internal/intel"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

const (
	anthropicAPIURL = "https://api.anthropic.com/v1/messages"
	openAIAPIURL    = "https://api.openai.com/v1/chat/completions"
)

// Classifier sends sanitized email content to a hosted LLM and parses the
// JSON verdict back
type Classifier struct {
	httpClient *http.Client
	logger     *logger.Logger
	config     config.AIConfig

	// endpoint overrides for tests
	anthropicURL string
	openAIURL    string
}

// Input is everything the classifier gets to see about one email
type Input struct {
	Subject  string
	Sender   string
	Content  string
	URLs     []models.URLInfo
	Findings []intel.Finding
}

// NewClassifier creates a new LLM classifier client
func NewClassifier(cfg config.AIConfig, log *logger.Logger) *Classifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2 // low temperature for consistent triage
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Model == "" {
		if cfg.Provider == "anthropic" {
			cfg.Model = "claude-3-5-haiku-latest"
		} else {
			cfg.Model = "gpt-4o-mini"
		}
	}

	return &Classifier{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:       log.WithComponent("ai-classifier"),
		config:       cfg,
		anthropicURL: anthropicAPIURL,
		openAIURL:    openAIAPIURL,
	}
}

// Classify runs the contextual analysis pass for one email
func (c *Classifier) Classify(ctx context.Context, in Input) (*models.AIAnalysis, error) {
	startTime := time.Now()

	system := systemPrompt
	user := buildPrompt(in)

	var content string
	var tokens int
	var err error

	switch c.config.Provider {
	case "anthropic":
		content, tokens, err = c.callAnthropic(ctx, system, user)
	case "openai":
		content, tokens, err = c.callOpenAI(ctx, system, user)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", c.config.Provider)
	}
	if err != nil {
		return nil, err
	}

	analysis, err := ParseResponse(content)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to parse AI response")
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	analysis.Model = c.config.Model
	analysis.TokensUsed = tokens

	c.logger.Debug().
		Int("score", analysis.Score).
		Str("verdict", string(analysis.Verdict)).
		Int("tokens", tokens).
		Dur("duration", time.Since(startTime)).
		Msg("AI classification completed")

	return analysis, nil
}

const systemPrompt = `You are an email security analyst. You classify email content as phishing, scam, or legitimate.

Consider:
1. Urgency and pressure tactics ("act now", "account suspended")
2. Credential or payment harvesting attempts
3. Impersonation of brands, banks, or authorities
4. Mismatched or deceptive links and sender addresses
5. Grammatical anomalies typical of mass phishing
6. Threat intelligence findings supplied with the email

Respond with ONLY valid JSON in this exact structure:
{
  "score": 0-100,
  "verdict": "SAFE" | "SUSPICIOUS" | "DANGER",
  "confidence": 0.0-1.0,
  "signals": ["short descriptions of what you found"],
  "explanation": "one or two sentences for the end user"
}

Score below 30 means SAFE, 30 to 70 means SUSPICIOUS, above 70 means DANGER. Keep the verdict consistent with the score.`

// buildPrompt renders the user prompt from the scan context
func buildPrompt(in Input) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following email for phishing or scam indicators.\n\n")

	if in.Sender != "" {
		sb.WriteString(fmt.Sprintf("**Sender:** %s\n", in.Sender))
	}
	if in.Subject != "" {
		sb.WriteString(fmt.Sprintf("**Subject:** %s\n", in.Subject))
	}

	sb.WriteString("\n**Body:**\n```\n")
	sb.WriteString(in.Content)
	sb.WriteString("\n```\n")

	if len(in.URLs) > 0 {
		sb.WriteString("\n**Extracted URLs:**\n")
		for _, u := range in.URLs {
			sb.WriteString(fmt.Sprintf("- %s", u.Normalized))
			if len(u.Flags) > 0 {
				sb.WriteString(fmt.Sprintf(" (flags: %s)", strings.Join(u.Flags, ", ")))
			}
			sb.WriteString("\n")
		}
	}

	if len(in.Findings) > 0 {
		sb.WriteString("\n**Threat intelligence findings:**\n")
		for _, f := range in.Findings {
			if !f.Listed {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", f.Checker, f.Detail))
		}
	}

	sb.WriteString("\nRespond with the JSON verdict only.")

	return sb.String()
}

// callAnthropic makes a request to the Anthropic messages API
func (c *Classifier) callAnthropic(ctx context.Context, system, user string) (string, int, error) {
	reqBody := map[string]any{
		"model":       c.config.Model,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
		"system":      system,
		"messages": []map[string]any{
			{"role": "user", "content": user},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.anthropicURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.AnthropicAPIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("Anthropic API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", 0, err
	}

	var content string
	for _, part := range apiResp.Content {
		if part.Type == "text" {
			content += part.Text
		}
	}

	return content, apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens, nil
}

// callOpenAI makes a request to the OpenAI chat completions API
func (c *Classifier) callOpenAI(ctx context.Context, system, user string) (string, int, error) {
	reqBody := map[string]any{
		"model":       c.config.Model,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.openAIURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.OpenAIAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("OpenAI API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", 0, err
	}

	if len(apiResp.Choices) == 0 {
		return "", 0, fmt.Errorf("no response from OpenAI")
	}

	return apiResp.Choices[0].Message.Content,
		apiResp.Usage.PromptTokens + apiResp.Usage.CompletionTokens, nil
}

// ParseResponse parses the JSON verdict out of an LLM response, tolerating
// markdown code fences and surrounding prose
func ParseResponse(content string) (*models.AIAnalysis, error) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx != -1 && endIdx != -1 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	var analysis models.AIAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if analysis.Score < 0 {
		analysis.Score = 0
	}
	if analysis.Score > 100 {
		analysis.Score = 100
	}
	// The model occasionally disagrees with itself; the score wins
	analysis.Verdict = models.VerdictFromScore(analysis.Score)

	return &analysis, nil
}
