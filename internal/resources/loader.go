// Package resources fetches documents for content threads. The constellation
// only passes the loader along by name; it never calls it.
package resources

import (
	"context"
	"errors"
	"fmt"
	"html"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
)

var (
	ErrUnsupportedScheme = errors.New("resources: unsupported scheme")
	ErrHTTPStatus        = errors.New("resources: http error status")
)

// Response is a fetched document
type Response struct {
	// URL is the final URL after redirects
	URL         string
	StatusCode  int
	ContentType string
	Charset     string
	Body        []byte
}

// Config configures a Loader
type Config struct {
	Timeout      time.Duration
	Retries      int
	UserAgent    string
	MaxBodyBytes int
}

// DefaultConfig returns loader defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		Retries:      2,
		UserAgent:    "Constellation/1.0",
		MaxBodyBytes: 10 << 20,
	}
}

// Loader fetches http(s) documents and renders about: pages
type Loader struct {
	client *resty.Client
	cfg    Config
	logger *zap.Logger
}

// NewLoader creates a loader
func NewLoader(cfg Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		SetResponseBodyLimit(cfg.MaxBodyBytes)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Loader{client: client, cfg: cfg, logger: logger}
}

// Fetch loads rawURL
func (l *Loader) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "about":
		return l.about(u), nil
	case "http", "https":
		return l.fetchHTTP(ctx, rawURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, rawURL string) (*Response, error) {
	start := time.Now()
	resp, err := l.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, rawURL, resp.StatusCode())
	}

	body := resp.Body()
	out := &Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        body,
	}
	if final := resp.RawResponse.Request; final != nil && final.URL != nil {
		out.URL = final.URL.String()
	}

	if out.ContentType == "" {
		out.ContentType = mimetype.Detect(body).String()
	}
	out.Charset = charsetOf(out.ContentType, body)

	l.logger.Debug("Fetched document",
		zap.String("url", out.URL),
		zap.Int("status", out.StatusCode),
		zap.String("content_type", out.ContentType),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// charsetOf prefers the declared charset and falls back to detection for text
func charsetOf(contentType string, body []byte) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil {
		if cs := params["charset"]; cs != "" {
			return strings.ToLower(cs)
		}
	}
	if err == nil && !strings.HasPrefix(mediaType, "text/") && !strings.Contains(mediaType, "html") {
		return ""
	}
	if len(body) == 0 {
		return "utf-8"
	}
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// about renders the built-in pages
func (l *Loader) about(u *url.URL) *Response {
	page := document.ParseAbout(u)

	var title, body string
	switch {
	case page.IsError():
		title = "Problem loading page"
		body = fmt.Sprintf("<h1>%s</h1><p>%s could not be loaded: %s</p>",
			title, html.EscapeString(page.Target), html.EscapeString(page.Reason))
	case page.IsCrash():
		title = "Page crashed"
		body = fmt.Sprintf("<h1>%s</h1><p>%s stopped unexpectedly.</p>",
			title, html.EscapeString(page.Target))
	}

	doc := "<!DOCTYPE html><html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
	return &Response{
		URL:         u.String(),
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Charset:     "utf-8",
		Body:        []byte(doc),
	}
}
