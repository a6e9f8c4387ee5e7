// Package notify provides a notification dispatch system
// supporting Telegram and Webhook channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWebhook  Channel = "webhook"
)

// Message represents a notification message.
type Message struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Format string `json:"format"` // "markdown" or "plain"
	URL    string `json:"url,omitempty"`
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}

// Config selects which channels are enabled. Empty values disable a channel.
type Config struct {
	WebhookURL       string `yaml:"webhook_url" json:"webhook_url" env:"NOTIFY_WEBHOOK_URL"`
	TelegramBotToken string `yaml:"telegram_bot_token" json:"-" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChannel  string `yaml:"telegram_channel_id" json:"telegram_channel_id" env:"TELEGRAM_CHANNEL_ID"`
}

// Dispatcher routes messages to the appropriate notification channels.
type Dispatcher struct {
	notifiers map[Channel]Notifier
	logger    *slog.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		notifiers: make(map[Channel]Notifier),
		logger:    slog.Default(),
	}
}

// FromConfig builds a dispatcher with every channel cfg enables.
func FromConfig(cfg Config) *Dispatcher {
	d := NewDispatcher()
	if cfg.WebhookURL != "" {
		d.Register(NewWebhookNotifier(WebhookConfig{URL: cfg.WebhookURL}))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChannel != "" {
		d.Register(NewTelegramNotifier(TelegramConfig{BotToken: cfg.TelegramBotToken, ChannelID: cfg.TelegramChannel}))
	}
	return d
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Channel()] = n
}

// Len reports how many channels are registered.
func (d *Dispatcher) Len() int { return len(d.notifiers) }

// Dispatch sends a message to the specified channels.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []Channel, msg Message) error {
	var errs []error
	for _, ch := range channels {
		notifier, ok := d.notifiers[ch]
		if !ok {
			d.logger.Warn("notifier not registered", "channel", ch)
			continue
		}
		if err := notifier.Send(ctx, msg); err != nil {
			d.logger.Error("notification failed", "channel", ch, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		} else {
			d.logger.Info("notification sent", "channel", ch, "title", msg.Title)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to send %d/%d notifications: %w", len(errs), len(channels), errors.Join(errs...))
	}
	return nil
}

// SendAll sends a message to all registered channels.
func (d *Dispatcher) SendAll(ctx context.Context, msg Message) error {
	channels := make([]Channel, 0, len(d.notifiers))
	for ch := range d.notifiers {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return d.Dispatch(ctx, channels, msg)
}
