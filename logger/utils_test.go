package L

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanReadableBytes(t *testing.T) {
	assert.Equal(t, "0 B", HumanReadableBytes(0, 2))
	assert.Equal(t, "512.0B", HumanReadableBytes(512, 1))
	assert.Equal(t, "1.0KB", HumanReadableBytes(1024, 1))
	assert.Equal(t, "1.50MB", HumanReadableBytes(3*1024*1024/2, 2))
	assert.Equal(t, "1.0GB", HumanReadableBytes(1024*1024*1024, 1))
	// non-positive precision falls back to two decimals
	assert.Equal(t, "1.00KB", HumanReadableBytes(1024, 0))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10, TRUNC_RIGHT))
	assert.Equal(t, "abcdefg...", TruncateString("abcdefghijklmnop", 10, TRUNC_RIGHT))
	assert.Equal(t, "...jklmnop", TruncateString("abcdefghijklmnop", 10, TRUNC_LEFT))
	assert.Equal(t, "abc...mnop", TruncateString("abcdefghijklmnop", 10, TRUNC_CENTER))
	assert.Equal(t, "", TruncateString("anything", -1, TRUNC_RIGHT))
	assert.Equal(t, "..", TruncateString("anything", 2, TRUNC_RIGHT))
}

func TestHttpResponseString(t *testing.T) {
	reqUrl, err := url.Parse("https://store.local/dav/media/cat.jpg")
	require.NoError(t, err)
	resp := &http.Response{
		Status:     "403 Forbidden",
		StatusCode: http.StatusForbidden,
		Header:     http.Header{"Content-Type": []string{"application/xml"}},
		Body:       io.NopCloser(strings.NewReader("<Error>AccessDenied</Error>")),
		Request: &http.Request{
			URL:    reqUrl,
			Header: http.Header{"Authorization": []string{"redacted"}},
		},
	}

	out := HttpResponseString(resp)
	assert.Contains(t, out, "https://store.local/dav/media/cat.jpg")
	assert.Contains(t, out, "Resp. Status: 403")
	assert.Contains(t, out, "<Error>AccessDenied</Error>")

	// the body is restored so later readers still see it
	rest, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<Error>AccessDenied</Error>", string(rest))
}

func TestIsVerbose(t *testing.T) {
	prev := GetLogLevel()
	defer SetLevel(prev)

	require.NoError(t, SetLevel(DEBUG))
	assert.True(t, IsVerbose())
	require.NoError(t, SetLevel(INFO))
	assert.False(t, IsVerbose())
}

func TestSetColorMode(t *testing.T) {
	defer SetColorMode(COLOR_MODE_AUTO)

	assert.NoError(t, SetColorMode(COLOR_MODE_NEVER))
	assert.NoError(t, SetColorMode(COLOR_MODE_ALWAYS))
	assert.Error(t, SetColorMode(ColorMode(99)))
}
