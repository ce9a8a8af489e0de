package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Git-Robbed/smells-phishy/internal/config"
	"github.com/Git-Robbed/smells-phishy/internal/domain/models"
	"github.com/Git-Robbed/smells-phishy/internal/intel"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

func TestParseResponse_PlainJSON(t *testing.T) {
	analysis, err := ParseResponse(`{"score": 85, "verdict": "DANGER", "confidence": 0.9, "signals": ["urgency"], "explanation": "Credential phishing."}`)
	require.NoError(t, err)

	assert.Equal(t, 85, analysis.Score)
	assert.Equal(t, models.VerdictDanger, analysis.Verdict)
	assert.InDelta(t, 0.9, analysis.Confidence, 0.001)
	assert.Equal(t, []string{"urgency"}, analysis.Signals)
}

func TestParseResponse_MarkdownFence(t *testing.T) {
	analysis, err := ParseResponse("```json\n{\"score\": 10, \"verdict\": \"SAFE\", \"confidence\": 0.8}\n```")
	require.NoError(t, err)

	assert.Equal(t, 10, analysis.Score)
	assert.Equal(t, models.VerdictSafe, analysis.Verdict)
}

func TestParseResponse_SurroundingProse(t *testing.T) {
	analysis, err := ParseResponse(`Here is my analysis: {"score": 50, "verdict": "SUSPICIOUS", "confidence": 0.6} Let me know if you need more.`)
	require.NoError(t, err)

	assert.Equal(t, 50, analysis.Score)
	assert.Equal(t, models.VerdictSuspicious, analysis.Verdict)
}

func TestParseResponse_VerdictFollowsScore(t *testing.T) {
	// model contradicted itself; the numeric score is authoritative
	analysis, err := ParseResponse(`{"score": 90, "verdict": "SAFE", "confidence": 0.9}`)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictDanger, analysis.Verdict)
}

func TestParseResponse_ClampsScore(t *testing.T) {
	analysis, err := ParseResponse(`{"score": 150, "verdict": "DANGER", "confidence": 1.0}`)
	require.NoError(t, err)
	assert.Equal(t, 100, analysis.Score)

	analysis, err = ParseResponse(`{"score": -10, "verdict": "SAFE", "confidence": 1.0}`)
	require.NoError(t, err)
	assert.Equal(t, 0, analysis.Score)
	assert.Equal(t, models.VerdictSafe, analysis.Verdict)
}

func TestParseResponse_Garbage(t *testing.T) {
	_, err := ParseResponse("I cannot classify this email.")
	assert.Error(t, err)
}

func TestClassify_Anthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-3-5-haiku-latest", req["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": `{"score": 80, "verdict": "DANGER", "confidence": 0.85, "signals": ["impersonation"], "explanation": "Impersonates a bank."}`},
			},
			"usage": map[string]int{"input_tokens": 400, "output_tokens": 60},
		})
	}))
	defer server.Close()

	c := NewClassifier(config.AIConfig{
		Enabled:         true,
		Provider:        "anthropic",
		AnthropicAPIKey: "test-key",
	}, logger.NewDefault())
	c.anthropicURL = server.URL

	analysis, err := c.Classify(context.Background(), Input{
		Subject: "Account suspended",
		Sender:  "security@bank-example.com",
		Content: "Your account has been suspended, verify at https://evil.example.com",
		Findings: []intel.Finding{
			{Checker: "urlhaus", Listed: true, Detail: "URLhaus listing (online)"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 80, analysis.Score)
	assert.Equal(t, models.VerdictDanger, analysis.Verdict)
	assert.Equal(t, 460, analysis.TokensUsed)
	assert.Equal(t, "claude-3-5-haiku-latest", analysis.Model)
}

func TestClassify_OpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"score": 15, "verdict": "SAFE", "confidence": 0.7}`}},
			},
			"usage": map[string]int{"prompt_tokens": 300, "completion_tokens": 40},
		})
	}))
	defer server.Close()

	c := NewClassifier(config.AIConfig{
		Enabled:      true,
		Provider:     "openai",
		OpenAIAPIKey: "test-key",
	}, logger.NewDefault())
	c.openAIURL = server.URL

	analysis, err := c.Classify(context.Background(), Input{Content: "see you at lunch"})
	require.NoError(t, err)

	assert.Equal(t, 15, analysis.Score)
	assert.Equal(t, models.VerdictSafe, analysis.Verdict)
	assert.Equal(t, 340, analysis.TokensUsed)
}

func TestClassify_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	c := NewClassifier(config.AIConfig{
		Enabled:         true,
		Provider:        "anthropic",
		AnthropicAPIKey: "test-key",
	}, logger.NewDefault())
	c.anthropicURL = server.URL

	_, err := c.Classify(context.Background(), Input{Content: "hello"})
	assert.Error(t, err)
}

func TestClassify_UnknownProvider(t *testing.T) {
	c := NewClassifier(config.AIConfig{Provider: "llama-at-home"}, logger.NewDefault())

	_, err := c.Classify(context.Background(), Input{Content: "hello"})
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(Input{
		Subject: "Invoice overdue",
		Sender:  "billing@example.com",
		Content: "Pay now at https://pay.example.com",
		URLs: []models.URLInfo{
			{Normalized: "https://pay.example.com", Flags: []string{"suspicious_tld"}},
		},
		Findings: []intel.Finding{
			{Checker: "urlhaus", Listed: true, Detail: "URLhaus listing (online)"},
			{Checker: "virustotal", Listed: false},
		},
	})

	assert.Contains(t, prompt, "Invoice overdue")
	assert.Contains(t, prompt, "billing@example.com")
	assert.Contains(t, prompt, "https://pay.example.com")
	assert.Contains(t, prompt, "suspicious_tld")
	assert.Contains(t, prompt, "urlhaus")
	// unlisted findings carry no signal and stay out of the prompt
	assert.NotContains(t, prompt, "virustotal")
}
