package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ovoz/admin/internal/actorctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 20.0

	maxBody = 4 << 20
)

type BodyFormat string

const (
	BodyJSON      BodyFormat = "json"
	BodyMultipart BodyFormat = "multipart"
)

// Body is an event payload that can travel as JSON or as a multipart form.
type Body interface {
	JSONBody() ([]byte, error)
	WriteMultipart(w *multipart.Writer) error
}

// Observer receives one call per upstream request.
type Observer interface {
	ObserveUpstream(op string, status int, err error, d time.Duration)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	format     BodyFormat
	log        *slog.Logger
	observer   Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero or less disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
}

func WithBodyFormat(f BodyFormat) Option {
	return func(c *Client) {
		if f == BodyJSON || f == BodyMultipart {
			c.format = f
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), int(DefaultRateLimit)),
		format:  BodyJSON,
		log:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type tokenKey struct{}

// ContextWithToken attaches the bearer token calls made with ctx will carry.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	return t, ok && t != ""
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool
}

func (c *Client) jsonRequest(op, method, path string, in any) (request, error) {
	r := request{op: op, method: method, path: path}

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return r, fmt.Errorf("encode %s body: %w", op, err)
		}
		r.body = bytes.NewReader(b)
		r.contentType = "application/json"
	}

	return r, nil
}

func (c *Client) payloadRequest(op, method, path string, p Body) (request, error) {
	r := request{op: op, method: method, path: path}

	if c.format == BodyMultipart {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := p.WriteMultipart(mw); err != nil {
			return r, fmt.Errorf("encode %s form: %w", op, err)
		}
		if err := mw.Close(); err != nil {
			return r, err
		}
		r.body = &buf
		r.contentType = mw.FormDataContentType()

		return r, nil
	}

	b, err := p.JSONBody()
	if err != nil {
		return r, fmt.Errorf("encode %s body: %w", op, err)
	}
	r.body = bytes.NewReader(b)
	r.contentType = "application/json"

	return r, nil
}

func (c *Client) do(ctx context.Context, r request, out any) (err error) {
	start := time.Now()
	status := 0

	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream(r.op, status, err, time.Since(start))
		}
	}()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return &Error{Op: r.op, Err: fmt.Errorf("rate limiter: %w", werr)}
		}
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return &Error{Op: r.op, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if id, ok := actorctx.RequestIDFrom(ctx); ok {
		req.Header.Set("X-Request-Id", id)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	if !r.anonymous {
		tok, ok := TokenFromContext(ctx)
		if !ok {
			return &Error{Op: r.op, Status: http.StatusUnauthorized, Err: ErrNoToken}
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "upstream request failed", "op", r.op, "err", err)
		return &Error{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Op: r.op, Status: status, Err: err}
	}

	if status < 200 || status > 299 {
		e := &Error{Op: r.op, Status: status, Message: errorMessage(raw)}
		c.log.WarnContext(ctx, "upstream error response", "op", r.op, "status", status, "message", e.Message)
		return e
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: r.op, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

// errorMessage pulls "message" out of an error body; some endpoints send an
// array of messages.
func errorMessage(raw []byte) string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}

	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}

	if len(body.Message) > 0 {
		var s string
		if err := json.Unmarshal(body.Message, &s); err == nil {
			return s
		}

		var list []string
		if err := json.Unmarshal(body.Message, &list); err == nil {
			return strings.Join(list, "; ")
		}
	}

	return body.Error
}

func keywordQuery(keyword string) url.Values {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	return url.Values{"keyword": {keyword}}
}
