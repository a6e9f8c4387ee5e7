package notify

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

const telegramAPI = "https://api.telegram.org"

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken  string `yaml:"bot_token" json:"bot_token"`
	ChannelID string `yaml:"channel_id" json:"channel_id"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

// TelegramNotifier sends messages via Telegram Bot API.
type TelegramNotifier struct {
	config TelegramConfig
	http   *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = telegramAPI
	}
	return &TelegramNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// Send sends a message via Telegram.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	body := msg.Body
	if msg.Format != "markdown" {
		body = escapeMarkdown(body)
	}
	text := body
	if msg.Title != "" {
		text = fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(msg.Title), body)
	}
	if msg.URL != "" {
		text += fmt.Sprintf("\n\n[Read the recap](%s)", msg.URL)
	}

	payload := map[string]any{
		"chat_id":    t.config.ChannelID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.config.BaseURL, "/"), t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
