package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.send(ctx, event); err != nil {
		return &SinkError{Channel: n.Channel(), Err: err}
	}

	n.logger.Info().
		Str("instrument", event.Instrument).
		Str("direction", string(event.Direction)).
		Msg("告警已发送 (Telegram)")
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, event Event) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderText(event),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram 返回 ok=false")
	}
	return nil
}

// Channel implements Named.
func (n *TelegramNotifier) Channel() string { return "telegram" }

func renderText(event Event) string {
	builder := strings.Builder{}
	switch event.Direction {
	case Buy:
		builder.WriteString(fmt.Sprintf("[BUY] %s\n", event.Instrument))
		builder.WriteString(fmt.Sprintf("Price %s is below %s\n", Money(event.Price, event.Currency), Money(event.LowerBound, event.Currency)))
	default:
		builder.WriteString(fmt.Sprintf("[SELL] %s\n", event.Instrument))
		builder.WriteString(fmt.Sprintf("Price %s is above %s\n", Money(event.Price, event.Currency), Money(event.UpperBound, event.Currency)))
	}
	builder.WriteString(fmt.Sprintf("Observed: %s UTC\n", event.ObservedAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
