package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// telegramLimit is the Bot API's maximum message length in characters.
const telegramLimit = 4096

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// APIError is a request the Bot API answered but rejected.
type APIError struct {
	Status      int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.Status, e.Description)
}

// Temporary reports whether resending the same message may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// TelegramNotifier posts reports to one chat through the Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client

	// Retries is how many times a temporary failure is resent. The wait
	// before resend n is Backoff * 2^(n-1).
	Retries int
	Backoff time.Duration

	log *zap.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log *zap.Logger) *TelegramNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			log.Warn("ignoring invalid proxy url", zap.Error(err))
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  "https://api.telegram.org",
		Client:   &http.Client{Timeout: 30 * time.Second, Transport: transport},
		Retries:  3,
		Backoff:  time.Second,
		log:      log.With(zap.String("notifier", "telegram"), zap.String("chat_id", chatID)),
	}
}

// Send posts text once, truncated to the API limit.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > telegramLimit {
		text = string(r[:telegramLimit-1]) + "…"
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: t.ChatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	var ar apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&ar)
	if resp.StatusCode != http.StatusOK || !ar.OK {
		desc := ar.Description
		if desc == "" && decodeErr != nil {
			desc = "unreadable response body"
		}
		return &APIError{Status: resp.StatusCode, Description: desc}
	}
	return nil
}

// Notify sends text with the configured retry budget.
func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	return t.SendWithRetry(ctx, text, t.Retries)
}

// SendWithRetry resends after temporary failures, doubling the wait each
// time. Rejected requests and cancellation end it immediately.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, retries int) error {
	for attempt := 1; ; attempt++ {
		err := t.Send(ctx, text)
		if err == nil {
			if attempt > 1 {
				t.log.Info("telegram message delivered", zap.Int("attempt", attempt))
			}
			return nil
		}
		if ctx.Err() != nil || !temporary(err) || attempt > retries {
			return fmt.Errorf("telegram send failed after %d attempts: %w", attempt, err)
		}

		wait := t.Backoff << (attempt - 1)
		t.log.Warn("telegram send failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", retries+1),
			zap.Duration("backoff", wait),
			zap.Error(err))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func temporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
