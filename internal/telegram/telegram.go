// Package telegram posts messages, photos, videos and albums to a channel
// through the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/deusflow/animenews/internal/retry"
)

const DefaultBaseURL = "https://api.telegram.org"

// InputFile is either a URL Telegram fetches itself or a local file to upload.
type InputFile struct {
	URL  string
	Path string
}

func (f InputFile) local() bool { return f.Path != "" }

// APIError is a non-OK answer from the Bot API.
type APIError struct {
	Method      string
	Status      int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.Status, e.Description)
}

type Client struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	retry   retry.RetryConfig
	preview bool
	log     *slog.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }

func WithRetry(cfg retry.RetryConfig) Option { return func(c *Client) { c.retry = cfg } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// WithLinkPreview lets text messages show a preview of their link.
func WithLinkPreview(on bool) Option { return func(c *Client) { c.preview = on } }

func NewClient(token, chatID string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		chatID:  chatID,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
		preview: true,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendText sends an HTML message.
func (c *Client) SendText(ctx context.Context, text string) error {
	return c.postJSON(ctx, "sendMessage", map[string]any{
		"chat_id":                  c.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": !c.preview,
	})
}

// SendImage sends a photo with an HTML caption.
func (c *Client) SendImage(ctx context.Context, photo InputFile, caption string) error {
	return c.sendFile(ctx, "sendPhoto", "photo", photo, caption, nil)
}

// SendVideo sends a video with an HTML caption.
func (c *Client) SendVideo(ctx context.Context, video InputFile, caption string) error {
	return c.sendFile(ctx, "sendVideo", "video", video, caption, map[string]string{
		"supports_streaming": "true",
	})
}

// SendGallery sends up to ten photo URLs as one album. The caption goes on
// the first photo.
func (c *Client) SendGallery(ctx context.Context, urls []string, caption string) error {
	if len(urls) < 2 {
		return fmt.Errorf("telegram sendMediaGroup: need at least 2 photos, got %d", len(urls))
	}
	if len(urls) > 10 {
		urls = urls[:10]
	}
	media := make([]map[string]any, 0, len(urls))
	for i, u := range urls {
		m := map[string]any{"type": "photo", "media": u}
		if i == 0 && caption != "" {
			m["caption"] = caption
			m["parse_mode"] = "HTML"
		}
		media = append(media, m)
	}
	return c.postJSON(ctx, "sendMediaGroup", map[string]any{
		"chat_id": c.chatID,
		"media":   media,
	})
}

func (c *Client) sendFile(ctx context.Context, method, field string, f InputFile, caption string, extra map[string]string) error {
	if !f.local() {
		payload := map[string]any{
			"chat_id":    c.chatID,
			field:        f.URL,
			"caption":    caption,
			"parse_mode": "HTML",
		}
		for k, v := range extra {
			payload[k] = v
		}
		return c.postJSON(ctx, method, payload)
	}

	fields := map[string]string{
		"chat_id":    c.chatID,
		"caption":    caption,
		"parse_mode": "HTML",
	}
	for k, v := range extra {
		fields[k] = v
	}
	return c.do(ctx, method, func() (io.Reader, string, error) {
		return multipartBody(fields, field, f.Path)
	})
}

func (c *Client) postJSON(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}
	return c.do(ctx, method, func() (io.Reader, string, error) {
		return bytes.NewReader(body), "application/json", nil
	})
}

// do sends one API call with retries. Server errors and 429 are retried;
// other client errors are final.
func (c *Client) do(ctx context.Context, method string, body func() (io.Reader, string, error)) error {
	attempt := 0
	return retry.WithRetry(ctx, c.retry, func() error {
		attempt++
		r, contentType, err := body()
		if err != nil {
			return retry.Stop(err)
		}
		err = c.call(ctx, method, r, contentType)
		if err == nil {
			c.log.Debug("telegram call ok", "method", method, "attempt", attempt)
			return nil
		}
		c.log.Warn("telegram call failed", "method", method, "attempt", attempt, "error", err)

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.Status == http.StatusTooManyRequests:
				return retry.After(err, apiErr.RetryAfter)
			case apiErr.Status >= 400 && apiErr.Status < 500:
				return retry.Stop(err)
			}
		}
		return err
	})
}

func (c *Client) call(ctx context.Context, method string, body io.Reader, contentType string) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("error build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("failed to close response body", "error", err)
		}
	}()

	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode == http.StatusOK && out.OK {
		return nil
	}
	desc := out.Description
	if desc == "" {
		desc = http.StatusText(resp.StatusCode)
	}
	return &APIError{
		Method:      method,
		Status:      resp.StatusCode,
		Description: desc,
		RetryAfter:  time.Duration(out.Parameters.RetryAfter) * time.Second,
	}
}

func multipartBody(fields map[string]string, fileField, path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile(fileField, filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
