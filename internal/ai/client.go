// Package ai calls a Responses-style text generation API to draft task plans,
// daily reports and HR guidance.
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

	"github.com/diewo77/taskflow/internal/config"
	"github.com/diewo77/taskflow/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1-mini"
	DefaultTimeout = 45 * time.Second
)

// Result is the outcome of one generation. Error is a displayable message and
// is set exactly when OK is false.
type Result struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func failure(msg string) Result { return Result{Error: msg} }

// Client talks to the generation endpoint. It never retries.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// NewClient builds a client from cfg. A missing key yields a client whose
// calls fail without touching the network.
func NewClient(cfg config.AIConfig, log *zap.Logger, m *metrics.Metrics) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout(),
		httpClient: &http.Client{},
		log:        log,
		metrics:    m,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model string    `json:"model"`
	Input []message `json:"input"`
}

// response fields are decoded lazily; a text value of the wrong JSON type
// is skipped rather than failing the whole reply.
type response struct {
	OutputText json.RawMessage `json:"output_text"`
	Output     []struct {
		Content []struct {
			Text json.RawMessage `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error json.RawMessage `json:"error"`
}

// stringValue returns raw as a string when it holds a JSON string.
func stringValue(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// text prefers output_text and otherwise joins every output content text.
func (r *response) text() string {
	if s, ok := stringValue(r.OutputText); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	for _, item := range r.Output {
		for _, c := range item.Content {
			if s, ok := stringValue(c.Text); ok {
				b.WriteString(s)
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func (r *response) errorMessage() string {
	var e struct {
		Message json.RawMessage `json:"message"`
	}
	if len(r.Error) == 0 || json.Unmarshal(r.Error, &e) != nil {
		return ""
	}
	s, _ := stringValue(e.Message)
	return s
}

// Generate sends one system and one user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) Result {
	res := c.generate(ctx, systemPrompt, userPrompt)
	outcome := "ok"
	if !res.OK {
		outcome = "error"
		c.log.Warn("ai generation failed", zap.String("error", res.Error))
	}
	c.metrics.AIRequest(outcome)
	return res
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string) Result {
	if !c.Configured() {
		return failure("OPENAI_API_KEY is not configured.")
	}
	body, err := json.Marshal(request{
		Model: c.model,
		Input: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return failure("Invalid AI request: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return failure("Network error: " + err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure("Network error: " + err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure("Network error: " + err.Error())
	}
	if len(raw) == 0 {
		return failure("Empty response from AI service.")
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return failure("Invalid AI response format.")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if m := parsed.errorMessage(); m != "" {
			msg = m
		}
		return failure("AI API error: " + msg)
	}
	text := parsed.text()
	if text == "" {
		return failure("AI returned no text output.")
	}
	return Result{OK: true, Text: text}
}
