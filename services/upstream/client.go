// Package upstream talks to the vendor platform: it builds the legacy login
// request, forwards authenticated calls and recovers session tokens from
// vendor responses.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/config"
)

const maxResponseBytes = 8 << 20

var (
	// ErrInvalidPath is returned for paths that would leave the vendor base URL
	ErrInvalidPath = errors.New("invalid vendor path")

	// ErrResponseTooLarge is returned when a vendor body exceeds maxResponseBytes
	ErrResponseTooLarge = errors.New("vendor response too large")
)

// Observer receives one sample per vendor round trip; status 0 means no
// response was received.
type Observer interface {
	ObserveVendorCall(operation string, status int, elapsed time.Duration)
}

// Credentials are the caller-supplied login inputs. Zero values fall back to
// the configured locale and the host's timezone offset.
type Credentials struct {
	Username        string
	Password        string
	Locale          string
	TZOffsetSeconds *int
}

// Response is a buffered vendor response
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports a JSON media type, including +json suffixes
func (r *Response) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || mediaType == "text/json" || strings.HasSuffix(mediaType, "+json")
}

// Client performs single, non-retried calls against the vendor
type Client struct {
	cfg        config.VendorConfig
	baseURL    *url.URL
	httpClient *http.Client
	observer   Observer
	logger     *zap.Logger
}

// NewClient creates a vendor client bound to cfg.BaseURL
func NewClient(cfg config.VendorConfig, observer Observer, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid vendor base URL %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return &Client{
		cfg:     cfg,
		baseURL: base,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		observer: observer,
		logger:   logger,
	}, nil
}

// Login sends the vendor login request once and returns its buffered response
func (c *Client) Login(ctx context.Context, creds Credentials) (*Response, error) {
	req, err := c.buildLoginRequest(ctx, creds)
	if err != nil {
		return nil, err
	}
	return c.do("login", req)
}

// Get issues a GET to path relative to the vendor base URL with params as the
// query string.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	target, err := c.resolve(path, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create vendor request: %w", err)
	}
	return c.do("proxy", req)
}

func (c *Client) buildLoginRequest(ctx context.Context, creds Credentials) (*http.Request, error) {
	fields := c.cfg.Fields
	locale := creds.Locale
	if locale == "" {
		locale = c.cfg.DefaultLocale
	}
	tz := localTZOffset()
	if creds.TZOffsetSeconds != nil {
		tz = *creds.TZOffsetSeconds
	}

	values := url.Values{}
	values.Set(fields.Username, creds.Username)
	values.Set(fields.Password, creds.Password)
	if fields.Locale != "" {
		values.Set(fields.Locale, locale)
	}
	if fields.TZOffset != "" {
		values.Set(fields.TZOffset, strconv.Itoa(tz))
	}

	method := strings.ToUpper(c.cfg.LoginMethod)
	encoding := strings.ToLower(c.cfg.LoginEncoding)

	// GET always carries credentials in the query string
	if method == http.MethodGet || encoding == "query" {
		target, err := c.resolve(c.cfg.LoginPath, values)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create login request: %w", err)
		}
		return req, nil
	}

	target, err := c.resolve(c.cfg.LoginPath, nil)
	if err != nil {
		return nil, err
	}

	var (
		body        []byte
		contentType string
	)
	switch encoding {
	case "form":
		body = []byte(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	case "json":
		payload := map[string]interface{}{
			fields.Username: creds.Username,
			fields.Password: creds.Password,
		}
		if fields.Locale != "" {
			payload[fields.Locale] = locale
		}
		if fields.TZOffset != "" {
			payload[fields.TZOffset] = tz
		}
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode login body: %w", err)
		}
		contentType = "application/json"
	default:
		return nil, fmt.Errorf("unsupported login encoding %q", encoding)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

// resolve joins path onto the base URL. Absolute URLs, scheme-relative
// references and paths escaping the base path are rejected.
func (c *Client) resolve(path string, params url.Values) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if ref.Scheme != "" || ref.Host != "" || ref.User != nil {
		return nil, fmt.Errorf("%w: %q is not relative", ErrInvalidPath, path)
	}

	target := c.baseURL.ResolveReference(ref)
	if target.Host != c.baseURL.Host || !strings.HasPrefix(target.Path, c.baseURL.Path) {
		return nil, fmt.Errorf("%w: %q escapes the vendor base path", ErrInvalidPath, path)
	}

	query := target.Query()
	for key, values := range params {
		query.Del(key)
		for _, v := range values {
			query.Add(key, v)
		}
	}
	target.RawQuery = query.Encode()
	return target, nil
}

func (c *Client) do(operation string, req *http.Request) (*Response, error) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, 0, start)
		c.logger.Warn("vendor request failed",
			zap.String("operation", operation),
			zap.String("path", req.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("vendor %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	c.observe(operation, resp.StatusCode, start)
	if err != nil {
		return nil, fmt.Errorf("read vendor %s response: %w", operation, err)
	}
	if len(body) > maxResponseBytes {
		c.logger.Warn("vendor response exceeds size limit",
			zap.String("operation", operation),
			zap.String("path", req.URL.Path),
			zap.Int("limit", maxResponseBytes))
		return nil, fmt.Errorf("vendor %s response: %w", operation, ErrResponseTooLarge)
	}

	c.logger.Debug("vendor request completed",
		zap.String("operation", operation),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) observe(operation string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveVendorCall(operation, status, time.Since(start))
	}
}

// localTZOffset is the vendor's convention: seconds to add to local time to
// reach UTC.
func localTZOffset() int {
	_, offset := time.Now().Zone()
	return -offset
}
