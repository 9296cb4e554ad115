package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCookies(t *testing.T) {
	assert := assert_.New(t)

	cookies := ParseCookies(" BREEZESESSION=abc123 ; junk; =skip; token=a=b;", "example.com")
	require.Len(t, cookies, 2)
	assert.Equal("BREEZESESSION", cookies[0].Name)
	assert.Equal("abc123", cookies[0].Value)
	assert.Equal("example.com", cookies[0].Domain)
	assert.Equal("token", cookies[1].Name)
	assert.Equal("a=b", cookies[1].Value)

	assert.Empty(ParseCookies("", "example.com"))
}

func TestLoadCookieString(t *testing.T) {
	assert := assert_.New(t)

	value, err := LoadCookieString("  a=1; b=2 ")
	assert.NoError(err)
	assert.Equal("a=1; b=2", value)

	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("session=xyz\n"), 0o600))
	value, err = LoadCookieString(path)
	assert.NoError(err)
	assert.Equal("session=xyz", value)

	value, err = LoadCookieString("")
	assert.NoError(err)
	assert.Equal("", value)
}

func TestSession_CookiesAndUserAgent(t *testing.T) {
	assert := assert_.New(t)

	var gotCookie, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("BREEZESESSION"); err == nil {
			gotCookie = c.Value
		}
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`var account_id = 7;`))
	}))
	defer srv.Close()
	srvURL, _ := url.Parse(srv.URL)

	config := DefaultConfig
	config.Cookies = "BREEZESESSION=secret"
	config.CookieDomain = srvURL.Hostname()
	s, err := New(config)
	require.NoError(t, err)

	body, err := s.GetText(context.Background(), srv.URL+"/p1/", time.Second)
	assert.NoError(err)
	assert.Equal(`var account_id = 7;`, body)
	assert.Equal("secret", gotCookie)
	assert.Equal(DefaultUserAgent, gotAgent)
}

func TestSession_GetTextStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s, err := New(DefaultConfig)
	require.NoError(t, err)
	_, err = s.GetText(context.Background(), srv.URL, time.Second)
	assert_.ErrorIs(t, err, ErrHTTPStatus)
}

func TestSession_GetTextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := New(DefaultConfig)
	require.NoError(t, err)
	_, err = s.GetText(context.Background(), srv.URL, 50*time.Millisecond)
	assert_.ErrorIs(t, err, context.DeadlineExceeded)
}
