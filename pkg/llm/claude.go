package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// claudeClient implements the Client interface for Anthropic Claude API.
type claudeClient struct {
	cfg    Config
	http   *http.Client
	apiKey string
	base   string
}

func newClaudeClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrMissingAPIKey)
	}
	base := "https://api.anthropic.com/v1"
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &claudeClient{
		cfg:    cfg,
		apiKey: cfg.APIKey,
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *claudeClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	messages := make([]claudeMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role != "system" {
			messages = append(messages, claudeMessage{Role: m.Role, Content: m.Content})
		}
	}

	system := req.System
	if req.JSONMode {
		system = strings.TrimSpace(system + "\n\nAlways respond with valid JSON only.")
	}

	cReq := claudeRequest{
		Model:       c.cfg.Model,
		MaxTokens:   pickInt(req.MaxTokens, pickInt(c.cfg.MaxTokens, 2000)),
		System:      system,
		Messages:    messages,
		Temperature: pickFloat(req.Temperature, c.cfg.Temperature),
	}

	body, err := json.Marshal(cReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var cResp claudeResponse
	if err := json.Unmarshal(respBody, &cResp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, &APIError{Provider: Claude, Status: httpResp.StatusCode, Message: string(respBody)}
		}
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if cResp.Error != nil || httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: Claude, Status: httpResp.StatusCode}
		if cResp.Error != nil {
			apiErr.Message = cResp.Error.Message
		}
		return nil, apiErr
	}

	var text strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude: %w", ErrEmptyResponse)
	}

	return &Response{
		Content:      strings.TrimSpace(text.String()),
		FinishReason: cResp.StopReason,
		TokensIn:     cResp.Usage.InputTokens,
		TokensOut:    cResp.Usage.OutputTokens,
		Cost:         EstimateCost(cResp.Model, cResp.Usage.InputTokens, cResp.Usage.OutputTokens),
		Model:        cResp.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *claudeClient) GenerateJSON(ctx context.Context, req *Request, out any) (*Response, error) {
	req.JSONMode = true
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, decodeJSON(resp.Content, out)
}

func (c *claudeClient) Provider() Provider { return Claude }
func (c *claudeClient) Close() error       { return nil }
