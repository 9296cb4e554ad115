package util

import (
	"net/url"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestLastPathSegment(t *testing.T) {
	assert := assert_.New(t)

	cases := map[string]string{
		"https://example.com/p123abc/":            "p123abc",
		"https://example.com/a/b/p123abc":         "p123abc",
		"https://example.com/p123abc/?proto=true": "p123abc",
		"https://example.com/rec%3Fx=1":           "rec",
	}
	for raw, expected := range cases {
		u, err := url.Parse(raw)
		assert.NoError(err)
		segment, err := LastPathSegment(u)
		assert.NoError(err, raw)
		assert.Equal(expected, segment, raw)
	}

	for _, raw := range []string{"https://example.com", "https://example.com/", "https://example.com/.."} {
		u, _ := url.Parse(raw)
		_, err := LastPathSegment(u)
		assert.ErrorIs(err, ErrNoPathSegment, raw)
	}
	_, err := LastPathSegment(nil)
	assert.ErrorIs(err, ErrNoPathSegment)
}

func TestParseHTTPURL(t *testing.T) {
	assert := assert_.New(t)

	u, err := ParseHTTPURL("  https://my.example.com:8443/p1/  ")
	assert.NoError(err)
	assert.Equal("https://my.example.com:8443", Origin(u))

	for _, raw := range []string{"ftp://example.com/x", "/relative/path", "https://", "::"} {
		_, err := ParseHTTPURL(raw)
		assert.ErrorIs(err, ErrInvalidURL, raw)
	}
}

func TestSanitizeFileName(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("Week 1- Intro.mp4", SanitizeFileName(" Week 1: Intro.mp4 "))
	assert.Equal("a-b-c.mp4", SanitizeFileName("a/b\\c.mp4"))
	assert.Equal("what.mp4", SanitizeFileName("what?.mp4"))
	assert.Equal("-etc-passwd", SanitizeFileName("../etc/passwd"))
	assert.Equal("hidden.mp4", SanitizeFileName(".hidden.mp4"))
	assert.Equal("tab.mp4", SanitizeFileName("ta\tb.mp4"))
	assert.Equal("", SanitizeFileName("   "))
}

func TestSanitizeToken(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("p123abc", SanitizeToken("p123abc"))
	assert.Equal("12345", SanitizeToken(" 12345 "))
	assert.Equal("a_b", SanitizeToken("a/b"))
	assert.Equal("unknown", SanitizeToken("///"))
	assert.Equal("unknown", SanitizeToken(""))
}
