package yupoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	errs "yupoocrawl/pkg/errors"
	"yupoocrawl/pkg/logger"
)

// Client is an authenticated session against one Yupoo shop: cookie jar,
// browser-like default headers, and a politeness limiter for document
// fetches. A client is owned by exactly one category worker and never
// shared across categories.
//
// The page timeout is applied per request through the context rather than
// on the http.Client, because image downloads share this session under a
// longer deadline of their own.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     logger.Logger
}

// NewClient creates a session client. requestDelay bounds the document
// fetch rate; zero disables pacing (tests).
func NewClient(timeout, requestDelay time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	limit := rate.Inf
	if requestDelay > 0 {
		limit = rate.Every(requestDelay)
	}

	return &Client{
		httpClient: &http.Client{
			Jar: jar,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "es-ES,es;q=0.9,en;q=0.8",
		},
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
		logger:  log,
	}
}

// withTimeout applies the page timeout when one is configured
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

// SetTransport replaces the underlying round tripper, keeping the cookie
// jar. Tests use this to reroute CDN hosts.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// SetHeader sets a default header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetReferer points the Referer header at the shop's own origin, which the
// image CDN expects.
func (c *Client) SetReferer(categoryURL string) {
	if u, err := url.Parse(categoryURL); err == nil && u.Host != "" {
		c.headers["Referer"] = fmt.Sprintf("%s://%s/", u.Scheme, u.Host)
	}
}

// SetSessionCookie stores a cookie scoped to the given domain so it applies
// to all its subdomains.
func (c *Client) SetSessionCookie(name, value, domain string) {
	u := &url.URL{Scheme: "https", Host: domain}
	c.httpClient.Jar.SetCookies(u, []*http.Cookie{{
		Name:   name,
		Value:  value,
		Path:   "/",
		Domain: domain,
	}})
}

// Get performs a GET request with the session headers and cookies. The
// caller owns the response body. Transport failures come back as transient
// network errors.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request for %s", rawURL)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error fetching %s", rawURL)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Head performs a HEAD request with the session headers
func (c *Client) Head(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request for %s", rawURL)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.httpClient.Do(req.WithContext(reqCtx))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error probing %s", rawURL)
	}
	return resp, nil
}

// FetchDocument fetches a page and parses it. Applies the politeness
// limiter before the request goes out.
func (c *Client) FetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.Get(reqCtx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponseStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse HTML from %s", rawURL)
	}

	return doc, nil
}

// FetchListingPage fetches page N of a category listing
func (c *Client) FetchListingPage(ctx context.Context, baseURL string, page int) (*goquery.Document, error) {
	return c.FetchDocument(ctx, PageURL(baseURL, page))
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.Get(reqCtx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body from %s", rawURL)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.DebugWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse JSON from %s", rawURL)
	}

	return nil
}

// checkResponseStatus maps HTTP status codes onto the error taxonomy:
// 5xx and 429 are transient, the rest of 4xx is permanent.
func checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return errs.New(errs.ErrorTypeRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, "authentication required")
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode >= 500:
		return errs.New(errs.ErrorTypeServerError, resp.StatusCode, "server returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return errs.New(errs.ErrorTypeUnknown, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	default:
		return nil
	}
}
