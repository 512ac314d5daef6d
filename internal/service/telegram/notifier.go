package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/service/ratelimit"
	xhttp "MarketWatch/pkg/http"
	"MarketWatch/pkg/logger"
)

const DefaultAPIURL = "https://api.telegram.org"

// Notifier sends HTML messages to one chat through the Bot API.
type Notifier struct {
	apiURL  string
	token   string
	chatID  string
	http    *xhttp.Client
	limiter *ratelimit.Keyed
}

// Option configures Notifier.
type Option func(*Notifier)

func WithAPIURL(u string) Option {
	return func(n *Notifier) {
		if u != "" {
			n.apiURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLimiter bounds sends per chat.
func WithLimiter(l *ratelimit.Keyed) Option {
	return func(n *Notifier) { n.limiter = l }
}

// New returns a Telegram notifier. Token and chat id are required.
func New(token, chatID string, client *xhttp.Client, opts ...Option) (*Notifier, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram: %w", domain.ErrNotifierDisabled)
	}
	n := &Notifier{
		apiURL:  DefaultAPIURL,
		token:   token,
		chatID:  chatID,
		http:    client,
		limiter: ratelimit.NewKeyed(1, 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send posts text with HTML parse mode.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx, n.chatID); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	var resp apiResponse
	err := n.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    n.apiURL + "/bot" + n.token + "/sendMessage",
		Body: sendMessageRequest{
			ChatID:                n.chatID,
			Text:                  text,
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			// the bot token is part of the URL; keep it out of logs
			return fmt.Errorf("telegram send: status %d: %s", se.StatusCode, se.Body)
		}
		return fmt.Errorf("telegram send: %s", redact(err.Error(), n.token))
	}
	if !resp.OK {
		return fmt.Errorf("telegram send: api error %d: %s", resp.ErrorCode, resp.Description)
	}
	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}

// LogNotifier writes messages to the log instead of a chat.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(l *logger.Logger) *LogNotifier {
	return &LogNotifier{log: l.With("notifier")}
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.log.Info("notification", logger.String("text", text))
	return nil
}
