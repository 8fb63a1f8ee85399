package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTelegramURL   = "https://api.telegram.org"
	defaultPushoverURL   = "https://api.pushover.net/1/messages.json"
	defaultPushbulletURL = "https://api.pushbullet.com/v2/pushes"

	pushTimeout = 15 * time.Second
)

// HTTPOption configures the HTTP based transports.
type HTTPOption func(*httpTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *httpTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithEndpoint overrides the provider endpoint.
func WithEndpoint(endpoint string) HTTPOption {
	return func(t *httpTransport) {
		if strings.TrimSpace(endpoint) != "" {
			t.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

type httpTransport struct {
	client   *http.Client
	endpoint string
}

func newHTTPTransport(endpoint string, opts []HTTPOption) httpTransport {
	t := httpTransport{
		client:   &http.Client{Timeout: pushTimeout},
		endpoint: endpoint,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func (t httpTransport) postJSON(ctx context.Context, target string, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return t.do(req)
}

func (t httpTransport) postForm(ctx context.Context, target string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

func (t httpTransport) do(req *http.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Telegram posts through the Bot API sendMessage method.
type Telegram struct {
	httpTransport
	token  string
	chatID string
}

func NewTelegram(token, chatID string, opts ...HTTPOption) *Telegram {
	return &Telegram{httpTransport: newHTTPTransport(defaultTelegramURL, opts), token: token, chatID: chatID}
}

// telegramMaxText is the sendMessage text limit in characters.
const telegramMaxText = 4096

// Send posts the digest, split on line breaks into as many messages as the
// text limit requires. The title only leads the first one.
func (t *Telegram) Send(ctx context.Context, message, title string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram: bot token and chat id required")
	}
	text := message
	if title != "" {
		text = title + "\n\n" + message
	}
	target := fmt.Sprintf("%s/bot%s/sendMessage", t.endpoint, t.token)
	parts := splitText(text, telegramMaxText)
	for i, part := range parts {
		payload := map[string]any{
			"chat_id":                  t.chatID,
			"text":                     part,
			"disable_web_page_preview": true,
		}
		if err := t.postJSON(ctx, target, payload, nil); err != nil {
			return fmt.Errorf("telegram: part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

// splitText cuts text into chunks of at most limit runes, preferring to cut
// after a newline. Lines longer than limit are cut mid-line.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// Pushover posts to the Pushover messages API.
type Pushover struct {
	httpTransport
	token string
	user  string
}

func NewPushover(token, user string, opts ...HTTPOption) *Pushover {
	return &Pushover{httpTransport: newHTTPTransport(defaultPushoverURL, opts), token: token, user: user}
}

func (p *Pushover) Send(ctx context.Context, message, title string) error {
	if p.token == "" || p.user == "" {
		return fmt.Errorf("pushover: token and user key required")
	}
	form := url.Values{}
	form.Set("token", p.token)
	form.Set("user", p.user)
	form.Set("message", message)
	if title != "" {
		form.Set("title", title)
	}
	if err := p.postForm(ctx, p.endpoint, form); err != nil {
		return fmt.Errorf("pushover: %w", err)
	}
	return nil
}

// Pushbullet creates a note push.
type Pushbullet struct {
	httpTransport
	token string
}

func NewPushbullet(token string, opts ...HTTPOption) *Pushbullet {
	return &Pushbullet{httpTransport: newHTTPTransport(defaultPushbulletURL, opts), token: token}
}

func (p *Pushbullet) Send(ctx context.Context, message, title string) error {
	if p.token == "" {
		return fmt.Errorf("pushbullet: access token required")
	}
	payload := map[string]string{"type": "note", "title": title, "body": message}
	header := http.Header{"Access-Token": []string{p.token}}
	if err := p.postJSON(ctx, p.endpoint, payload, header); err != nil {
		return fmt.Errorf("pushbullet: %w", err)
	}
	return nil
}

// Gotify posts to a self-hosted Gotify server.
type Gotify struct {
	httpTransport
	token    string
	priority int
}

func NewGotify(serverURL, token string, opts ...HTTPOption) *Gotify {
	return &Gotify{
		httpTransport: newHTTPTransport(strings.TrimRight(serverURL, "/"), opts),
		token:         token,
		priority:      5,
	}
}

func (g *Gotify) Send(ctx context.Context, message, title string) error {
	if g.endpoint == "" || g.token == "" {
		return fmt.Errorf("gotify: server url and app token required")
	}
	payload := map[string]any{"title": title, "message": message, "priority": g.priority}
	header := http.Header{"X-Gotify-Key": []string{g.token}}
	if err := g.postJSON(ctx, g.endpoint+"/message", payload, header); err != nil {
		return fmt.Errorf("gotify: %w", err)
	}
	return nil
}
