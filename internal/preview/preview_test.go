package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbor/editor/internal/config"
)

const testPage = `<!doctype html>
<html>
<head>
<title>First Post</title>
<link rel="canonical" href="/blog/post-1/">
</head>
<body>
<h1>First Post</h1>
<p>   </p>
<p>Hello <em>world</em>, with a <a href="/x">link</a>.</p>
<p>Second paragraph.</p>
</body>
</html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/blog/post-1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestFetchExtractsMetadata(t *testing.T) {
	ts := newPageServer(t)
	f := NewFetcher(config.PreviewConfig{Timeout: 5}, ts.URL)

	info, err := f.Fetch(context.Background(), "/blog/post-1/")
	require.NoError(t, err)

	assert.Equal(t, ts.URL+"/blog/post-1/", info.URL)
	assert.Equal(t, "First Post", info.Title)
	assert.Equal(t, "/blog/post-1/", info.Canonical)
	// Markup inside the paragraph is stripped, empty paragraphs are skipped.
	assert.Equal(t, "Hello world, with a link.", info.Description)
}

func TestFetchAbsoluteURL(t *testing.T) {
	ts := newPageServer(t)
	f := NewFetcher(config.PreviewConfig{Timeout: 5}, "http://unused.invalid")

	info, err := f.Fetch(context.Background(), ts.URL+"/blog/post-1/")
	require.NoError(t, err)
	assert.Equal(t, "First Post", info.Title)
}

func TestFetchMissingPage(t *testing.T) {
	ts := newPageServer(t)
	f := NewFetcher(config.PreviewConfig{Timeout: 5}, ts.URL)

	_, err := f.Fetch(context.Background(), "/nope/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
