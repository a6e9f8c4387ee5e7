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

// geminiClient implements the Client interface for Google Gemini API.
type geminiClient struct {
	cfg    Config
	http   *http.Client
	apiKey string
	base   string
}

func newGeminiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	base := "https://generativelanguage.googleapis.com/v1beta"
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &geminiClient{
		cfg:    cfg,
		apiKey: cfg.APIKey,
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	Temperature      float64         `json:"temperature,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ThinkingConfig   *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *geminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	gReq := geminiRequest{}
	if req.System != "" {
		gReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		gReq.Contents = append(gReq.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	// Thinking tokens count against maxOutputTokens on 2.5+ models.
	gReq.GenerationConfig = &geminiGenConfig{
		MaxOutputTokens: pickInt(req.MaxTokens, c.cfg.MaxTokens),
		Temperature:     pickFloat(req.Temperature, c.cfg.Temperature),
		ThinkingConfig:  &thinkingConfig{ThinkingBudget: 0},
	}
	if req.JSONMode {
		gReq.GenerationConfig.ResponseMimeType = "application/json"
	}

	body, err := json.Marshal(gReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.base, c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var gResp geminiResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, &APIError{Provider: Gemini, Status: httpResp.StatusCode, Message: string(respBody)}
		}
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if gResp.Error != nil || httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: Gemini, Status: httpResp.StatusCode}
		if gResp.Error != nil {
			apiErr.Message = gResp.Error.Message
		}
		return nil, apiErr
	}
	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	var text strings.Builder
	for _, p := range gResp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return &Response{
		Content:      strings.TrimSpace(text.String()),
		FinishReason: gResp.Candidates[0].FinishReason,
		TokensIn:     gResp.UsageMetadata.PromptTokenCount,
		TokensOut:    gResp.UsageMetadata.CandidatesTokenCount,
		Cost:         EstimateCost(c.cfg.Model, gResp.UsageMetadata.PromptTokenCount, gResp.UsageMetadata.CandidatesTokenCount),
		Model:        c.cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *geminiClient) GenerateJSON(ctx context.Context, req *Request, out any) (*Response, error) {
	req.JSONMode = true
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, decodeJSON(resp.Content, out)
}

func (c *geminiClient) Provider() Provider { return Gemini }
func (c *geminiClient) Close() error       { return nil }
