// Package notify sends optional trade alerts. A nil *Telegram is a valid
// no-op notifier, so call sites never branch on whether alerts are
// configured.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Telegram posts messages to a chat via the bot API.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegram returns a notifier, or nil when token or chat are empty.
func NewTelegram(token, chatID string) *Telegram {
	if token == "" || chatID == "" {
		return nil
	}
	return &Telegram{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message. Errors are returned for logging only; alert
// failures never affect trading.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if t == nil {
		return nil
	}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	form := url.Values{
		"chat_id": {t.chatID},
		"text":    {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify: telegram status %s", resp.Status)
	}
	return nil
}
