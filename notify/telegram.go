package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
)

const (
	maxMessageLength = 4096
	maxPagesToList   = 10
)

// Telegram sends summaries through the Telegram bot API.
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

// TelegramOption configures a Telegram sink.
type TelegramOption func(*Telegram)

// WithTelegramAPIBase overrides the bot API endpoint (tests).
func WithTelegramAPIBase(base string) TelegramOption {
	return func(t *Telegram) { t.apiBase = strings.TrimSuffix(base, "/") }
}

// WithTelegramClient overrides the HTTP client.
func WithTelegramClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.client = c }
}

// NewTelegram creates a Telegram sink for the given bot token and chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		token:   token,
		chatID:  chatID,
		apiBase: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Send posts a change summary as an HTML-formatted message.
func (t *Telegram) Send(ctx context.Context, s Summary) error {
	return t.sendMessage(ctx, FormatMessage(s))
}

// SendError posts an operational failure notice.
func (t *Telegram) SendError(ctx context.Context, message string) error {
	text := "<b>Doc monitor error</b>\n\n" + html.EscapeString(message)
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength]
	}
	return t.sendMessage(ctx, text)
}

func (t *Telegram) Close() error { return nil }

// FormatMessage renders the notification text. Pages beyond the first
// ten collapse into a "... and N more" line; the whole message is capped
// at Telegram's 4096-character limit.
func FormatMessage(s Summary) string {
	count := len(s.Pages)
	noun := "pages"
	if count == 1 {
		noun = "page"
	}

	lines := []string{
		fmt.Sprintf("<b>Docs Updated (%s)</b>", s.Date.UTC().Format("2006-01-02")),
		"",
		fmt.Sprintf("%d %s changed", count, noun),
		"",
		"<b>Changed Pages:</b>",
	}

	for i, p := range s.Pages {
		if i >= maxPagesToList {
			lines = append(lines, fmt.Sprintf("... and %d more", count-maxPagesToList))
			break
		}
		lines = append(lines, fmt.Sprintf("• %s: %s",
			html.EscapeString(p.Slug), html.EscapeString(p.Summary)))
	}

	lines = append(lines, "", fmt.Sprintf(`<a href="%s">View Full Diff Report</a>`, s.ReportURL))

	message := strings.Join(lines, "\n")
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength-3] + "..."
	}
	return message
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: status %d", resp.StatusCode)
	}
	return nil
}
