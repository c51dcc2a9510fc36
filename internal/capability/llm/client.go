// Package llm implements the capability interfaces on an OpenAI-compatible
// chat-completions endpoint in JSON mode.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"polyhedge/internal/capability"
	"polyhedge/internal/models"
)

type Client struct {
	host       string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ capability.Ranker          = (*Client)(nil)
	_ capability.ThemeClassifier = (*Client)(nil)
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, apiKey, model string, maxTokens int, logger *zap.Logger) *Client {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: httpClient,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one JSON-mode completion and returns the raw message content.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

const rankSystemPrompt = `You select prediction markets useful for hedging a real-world risk.
Respond with a JSON object: {"market_ids": ["id", ...]} listing at most the
requested number of market ids from the provided batch, most relevant first.
Only include ids that appear in the batch.`

// RankMarkets asks the model for the topK most relevant ids of one batch.
// Ids outside the batch are dropped and the result is truncated to topK.
func (c *Client) RankMarkets(ctx context.Context, batch []models.Market, concern, notes string, topK int) ([]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Risk to hedge: %s\n", concern)
	if notes != "" {
		fmt.Fprintf(&sb, "Additional context: %s\n", notes)
	}
	fmt.Fprintf(&sb, "Select up to %d markets.\n\nMarkets:\n", topK)
	for _, m := range batch {
		fmt.Fprintf(&sb, "- id=%s question=%q liquidity=%.0f\n", m.ID, m.Question, m.Liquidity)
	}

	content, err := c.complete(ctx, rankSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		MarketIDs []string `json:"market_ids"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rank response: %w", err)
	}

	members := make(map[string]struct{}, len(batch))
	for _, m := range batch {
		members[m.ID] = struct{}{}
	}
	ids := make([]string, 0, topK)
	seen := make(map[string]struct{}, topK)
	for _, id := range parsed.MarketIDs {
		if _, ok := members[id]; !ok {
			c.logger.Debug("rank response referenced unknown market", zap.String("id", id))
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if len(ids) >= topK {
			break
		}
	}
	return ids, nil
}

const themeSystemPrompt = `You group prediction markets into hedge themes for a real-world risk.
Respond with a JSON object:
{"themes": [{"name": "...", "description": "...",
  "markets": [{"index": 1, "correlation_score": 0.0,
    "explanation": "...", "recommended_outcome": "..."}]}]}
index is the 1-based position of the market in the provided list.
correlation_score is in [0,1]: how strongly the recommended outcome pays out
when the described risk materializes.`

// ClassifyThemes groups the candidates into hedge themes. Market references
// with out-of-range indexes are dropped; themes left empty after that are
// dropped too.
func (c *Client) ClassifyThemes(ctx context.Context, markets []models.Market, concern, notes string) ([]capability.Theme, error) {
	if len(markets) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Risk to hedge: %s\n", concern)
	if notes != "" {
		fmt.Fprintf(&sb, "Additional context: %s\n", notes)
	}
	sb.WriteString("\nMarkets:\n")
	for i, m := range markets {
		fmt.Fprintf(&sb, "%d. question=%q", i+1, m.Question)
		if len(m.Outcomes) > 0 {
			names := make([]string, 0, len(m.Outcomes))
			for _, o := range m.Outcomes {
				names = append(names, fmt.Sprintf("%s@%.2f", o.Name, o.Price))
			}
			fmt.Fprintf(&sb, " outcomes=[%s]", strings.Join(names, ", "))
		}
		sb.WriteByte('\n')
	}

	content, err := c.complete(ctx, themeSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Themes []capability.Theme `json:"themes"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode theme response: %w", err)
	}

	themes := make([]capability.Theme, 0, len(parsed.Themes))
	for _, theme := range parsed.Themes {
		kept := make([]capability.ThemeMarket, 0, len(theme.Markets))
		for _, tm := range theme.Markets {
			if tm.Index < 1 || tm.Index > len(markets) {
				c.logger.Debug("theme response referenced out-of-range market",
					zap.String("theme", theme.Name), zap.Int("index", tm.Index))
				continue
			}
			if tm.CorrelationScore < 0 {
				tm.CorrelationScore = 0
			}
			if tm.CorrelationScore > 1 {
				tm.CorrelationScore = 1
			}
			kept = append(kept, tm)
		}
		if len(kept) == 0 {
			continue
		}
		theme.Markets = kept
		themes = append(themes, theme)
	}
	return themes, nil
}
