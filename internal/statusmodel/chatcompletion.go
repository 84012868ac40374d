package statusmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/models"
)

// ChatCompletionConfig carries the enumerated options from spec §6.
type ChatCompletionConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ChatCompletion is the remote backend: it renders the bundle into a
// prompt, posts it to an OpenAI-compatible chat completions endpoint, and
// parses the structured StatusSummary out of the response content. Only
// the interface and wire shape matter per spec §1; the concrete protocol
// here targets the common /v1/chat/completions convention.
type ChatCompletion struct {
	cfg        ChatCompletionConfig
	httpClient *http.Client
}

func NewChatCompletion(cfg ChatCompletionConfig) *ChatCompletion {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ChatCompletion{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

// Name identifies this backend's configured model in persisted reports.
func (c *ChatCompletion) Name() string { return "chat_completion/" + c.cfg.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

func (c *ChatCompletion) SummariseRepository(ctx context.Context, bundle evidence.Bundle) (models.StatusSummary, error) {
	prompt := renderRepositoryPrompt(bundle)
	return c.invoke(ctx, prompt)
}

func (c *ChatCompletion) SummariseProject(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return c.invoke(ctx, renderAggregatePrompt("project", bundles))
}

func (c *ChatCompletion) SummariseEstate(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return c.invoke(ctx, renderAggregatePrompt("estate", bundles))
}

func (c *ChatCompletion) invoke(ctx context.Context, prompt string) (models.StatusSummary, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return models.StatusSummary{}, fmt.Errorf("marshal chat completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return models.StatusSummary{}, errs.Wrap(errs.MissingConfig, err, "build chat completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.StatusSummary{}, errs.Wrap(errs.Remote5xx, err, "chat completion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return models.StatusSummary{}, errs.Newf(errs.Remote5xx, "chat completion endpoint returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return models.StatusSummary{}, errs.Newf(errs.Remote4xx, "chat completion endpoint returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.StatusSummary{}, errs.Wrap(errs.SchemaDrift, err, "decode chat completion response")
	}
	if len(parsed.Choices) == 0 {
		return models.StatusSummary{}, errs.New(errs.SchemaDrift, "chat completion response had no choices")
	}

	var summary models.StatusSummary
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &summary); err != nil {
		return models.StatusSummary{}, errs.Wrap(errs.SchemaDrift, err, "chat completion content was not a StatusSummary")
	}
	summary.Usage = &models.Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	return summary, nil
}

const summarySystemPrompt = `You summarise GitHub engineering activity into a JSON object with fields
status (one of on_track, at_risk, blocked, unknown), summary_text, highlights, risks, next_steps.
Respond with only the JSON object.`

func renderRepositoryPrompt(bundle evidence.Bundle) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Window: %s to %s\n", bundle.WindowStart.Format(time.RFC3339), bundle.WindowEnd.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Tracked changes: %d\n", len(bundle.Facts))
	for wt, facts := range bundle.Groups {
		fmt.Fprintf(&buf, "- %s: %d\n", wt, len(facts))
	}
	for _, prior := range bundle.PriorReports {
		fmt.Fprintf(&buf, "Prior report (%s to %s): %s\n", prior.WindowStart.Format("2006-01-02"), prior.WindowEnd.Format("2006-01-02"), prior.HumanText)
	}
	return buf.String()
}

func renderAggregatePrompt(scope string, bundles []evidence.Bundle) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Scope: %s, repositories: %d\n", scope, len(bundles))
	for _, b := range bundles {
		fmt.Fprintf(&buf, "Repository %s: %d tracked changes\n", b.RepositoryID, len(b.Facts))
	}
	return buf.String()
}
