// Package session provides the shared, cookie-authenticated HTTP client used for every request made while
// reconstructing recordings.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultCookieDomain = "my.adobeconnect.com"
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Upper bound on page bodies read by GetText.
	maxPageBytes = 8 << 20
)

var ErrHTTPStatus = errors.New("unexpected HTTP status")

type Config struct {
	// Cookies is either a literal "name=value; name2=value2" string, or the path of a file containing one.
	Cookies      string
	CookieDomain string
	UserAgent    string

	// Timeout for page fetches used to resolve the recording identifier.
	ProbeTimeout time.Duration
	// Timeout for the best-effort account identifier probe.
	AccountTimeout time.Duration
	// Overall ceiling for a single archive transfer.
	TransferTimeout time.Duration
	// Maximum wait for response headers on any request.
	HeaderTimeout time.Duration

	// Transport overrides the base round-tripper, mainly for tests.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

var DefaultConfig = Config{
	CookieDomain:    DefaultCookieDomain,
	UserAgent:       DefaultUserAgent,
	ProbeTimeout:    15 * time.Second,
	AccountTimeout:  10 * time.Second,
	TransferTimeout: 2 * time.Hour,
	HeaderTimeout:   30 * time.Second,
}

type Session struct {
	config Config
	client *http.Client
	log    *zap.SugaredLogger
}

func New(config Config) (*Session, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.CookieDomain == "" {
		config.CookieDomain = DefaultCookieDomain
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	s := &Session{
		config: config,
		log:    config.Logger.Named("session").Sugar(),
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	cookieString, err := LoadCookieString(config.Cookies)
	if err != nil {
		return nil, err
	}
	if cookies := ParseCookies(cookieString, config.CookieDomain); len(cookies) > 0 {
		for _, scheme := range []string{"http", "https"} {
			jar.SetCookies(&url.URL{Scheme: scheme, Host: config.CookieDomain, Path: "/"}, cookies)
		}
		s.log.Debugf("installed %d cookies for %s", len(cookies), config.CookieDomain)
	}

	base := config.Transport
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = config.HeaderTimeout
		base = transport
	}
	s.client = &http.Client{
		Jar:       jar,
		Transport: &userAgentTransport{base: base, userAgent: config.UserAgent},
	}
	return s, nil
}

// Client returns the shared HTTP client. Requests should carry their own context deadline; see the Config timeouts.
func (s *Session) Client() *http.Client {
	return s.client
}

func (s *Session) Config() Config {
	return s.config
}

// GetText fetches a page and returns its body as a string, failing on transport errors and non-2xx statuses.
func (s *Session) GetText(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

// LoadCookieString returns value itself, or the trimmed contents of the file it names if such a file exists.
func LoadCookieString(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	info, err := os.Stat(value)
	if err != nil || info.IsDir() {
		return value, nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return "", fmt.Errorf("failed to read cookie file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ParseCookies splits a "name=value; name2=value2" string into cookies for domain. Segments without "=" or with an
// empty name are ignored; values may themselves contain "=".
func ParseCookies(s string, domain string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:   name,
			Value:  strings.TrimSpace(value),
			Domain: domain,
			Path:   "/",
		})
	}
	return cookies
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
