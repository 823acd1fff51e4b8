// Package generator talks to an OpenAI-compatible chat completions API and
// turns its answers into structured replies. The orchestrator only reaches
// for it when the stub router asks for model help; failures surface as
// typed upstream errors and are never replaced with fabricated content.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"askmom/internal/core"
	"askmom/internal/httpclient"
)

const (
	defaultModel     = "gpt-4o-mini"
	maxResponseBytes = 1 << 20
)

// Config holds the upstream API settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests; sent as a Bearer token.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier to request.
	Model string `yaml:"model"`
}

// HTTPGenerator implements core.Generator over an OpenAI-compatible API.
type HTTPGenerator struct {
	cfg    Config
	client *http.Client
}

// New creates a generator with the shared HTTP client defaults.
func New(cfg Config) *HTTPGenerator {
	return NewWithHTTPClient(cfg, httpclient.NewDefaultHTTPClient())
}

// NewWithHTTPClient creates a generator with a custom HTTP client.
func NewWithHTTPClient(cfg Config, client *http.Client) *HTTPGenerator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPGenerator{cfg: cfg, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

// Generate sends the conversation to the upstream model and parses the
// structured JSON it returns.
func (g *HTTPGenerator) Generate(ctx context.Context, req *core.GenerateRequest) (*core.GenerateResult, error) {
	messages := buildMessages(req)

	body, err := json.Marshal(chatRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: 0.2,
		ResponseFormat: map[string]string{
			"type": "json_object",
		},
	})
	if err != nil {
		return nil, core.NewUpstreamInvalidError("failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, core.NewUpstreamUnavailableError("failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, core.NewUpstreamUnavailableError("model request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, core.NewUpstreamUnavailableError("failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, core.NewUpstreamUnavailableError(
				fmt.Sprintf("model API returned status %d", resp.StatusCode), nil)
		}
		return nil, core.NewUpstreamInvalidError(
			fmt.Sprintf("model API returned status %d", resp.StatusCode), nil)
	}

	result, err := parseResult(raw)
	if err != nil {
		return nil, err
	}
	if result.Model == "" {
		result.Model = g.cfg.Model
	}
	return result, nil
}

// Name returns the configured model identifier.
func (g *HTTPGenerator) Name() string {
	return g.cfg.Model
}

func buildMessages(req *core.GenerateRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Turns)+2)
	if req.Instructions != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Instructions})
	}
	for _, t := range req.Turns {
		messages = append(messages, chatMessage{Role: string(t.Role), Content: t.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserText})
	return messages
}

// parseResult extracts the structured reply from a chat completions payload.
// The content is expected to be JSON but models pad it with prose or code
// fences often enough that parsing stays lenient.
func parseResult(raw []byte) (*core.GenerateResult, error) {
	content := gjson.GetBytes(raw, "choices.0.message.content").String()
	if content == "" {
		return nil, core.NewUpstreamInvalidError("model response has no content", nil)
	}

	payload := extractJSON(content)
	if !gjson.Valid(payload) {
		return nil, core.NewUpstreamInvalidError("model response is not valid JSON", nil)
	}

	parsed := gjson.Parse(payload)
	summary := strings.TrimSpace(parsed.Get("summary").String())
	if summary == "" {
		return nil, core.NewUpstreamInvalidError("model response missing summary", nil)
	}

	var steps []string
	for _, s := range parsed.Get("steps").Array() {
		if step := strings.TrimSpace(s.String()); step != "" {
			steps = append(steps, step)
		}
	}

	risk := core.ParseRiskLevel(parsed.Get("risk_level").String(), core.RiskMedium)

	confidence := parsed.Get("confidence").Float()
	if confidence == 0 {
		confidence = 0.7
	}

	return &core.GenerateResult{
		RiskLevel:         risk,
		Title:             strings.TrimSpace(parsed.Get("title").String()),
		Summary:           summary,
		Steps:             steps,
		EscalateSuggested: parsed.Get("escalate_suggested").Bool(),
		Confidence:        core.ClampConfidence(confidence),
		Model:             gjson.GetBytes(raw, "model").String(),
	}, nil
}

// extractJSON strips markdown code fences and surrounding prose, keeping the
// outermost JSON object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
