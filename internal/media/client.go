package media

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
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://media-api.main-gate.appx.uz"
	DefaultProject = "ovoz"
	DefaultTimeout = 30 * time.Second

	uploadPath = "/api/v1/aws"
	deletePath = "/api/v1/aws/delete"
)

var ErrInvalidResponse = errors.New("Invalid response from media server")

// Upload is the stored file the media service handed back.
type Upload struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Error is a non-2xx answer or transport failure from the media service.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("media %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("media %s: status %d", e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	httpClient *http.Client
	baseURL    string
	project    string
	signer     *KeySigner
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithProject(project string) Option {
	return func(c *Client) {
		if project != "" {
			c.project = project
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(baseURL string, signer *KeySigner, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		project: DefaultProject,
		signer:  signer,
		log:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// uploadResponse accepts both a bare record and one nested under "data".
type uploadResponse struct {
	URL     string          `json:"url"`
	Key     string          `json:"key"`
	ID      json.RawMessage `json:"id"`
	Data    *uploadResponse `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) Upload(ctx context.Context, name string, data []byte) (Upload, error) {
	contentType, err := Validate(data)
	if err != nil {
		return Upload{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return Upload{}, err
	}

	if _, err := part.Write(data); err != nil {
		return Upload{}, err
	}

	if err := mw.WriteField("project", c.project); err != nil {
		return Upload{}, err
	}

	if err := mw.Close(); err != nil {
		return Upload{}, err
	}

	var resp uploadResponse
	if err := c.do(ctx, "upload", uploadPath, mw.FormDataContentType(), &body, &resp); err != nil {
		return Upload{}, err
	}

	rec := resp
	if rec.URL == "" && rec.Data != nil {
		rec = *rec.Data
	}

	if rec.URL == "" || rec.Key == "" {
		msg := resp.Message
		if msg == "" {
			msg = rec.Message
		}
		c.log.WarnContext(ctx, "media upload unexpected response", "name", name, "message", msg)
		return Upload{}, ErrInvalidResponse
	}

	c.log.InfoContext(ctx, "media uploaded", "key", rec.Key, "bytes", len(data))

	return Upload{
		URL:  rec.URL,
		Key:  rec.Key,
		ID:   rawID(rec.ID),
		Name: name,
	}, nil
}

type deleteResponse struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("No file ID provided")
	}

	b, err := json.Marshal(map[string]string{"key": key, "project": c.project})
	if err != nil {
		return err
	}

	var resp deleteResponse
	if err := c.do(ctx, "delete", deletePath, "application/json", bytes.NewReader(b), &resp); err != nil {
		return err
	}

	if resp.Key == "" && !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to delete file: Unexpected response format"
		}
		return &Error{Op: "delete", Status: http.StatusOK, Message: msg}
	}

	c.log.InfoContext(ctx, "media deleted", "key", key)

	return nil
}

func (c *Client) do(ctx context.Context, op, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if c.signer != nil {
		key, err := c.signer.Sign()
		if err != nil {
			return fmt.Errorf("sign media request: %w", err)
		}
		req.Header.Set("x-auth-key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		return &Error{Op: op, Status: resp.StatusCode, Message: e.Message}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return ErrInvalidResponse
	}

	return nil
}

func rawID(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}

	return string(b)
}
