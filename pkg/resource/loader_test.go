package resource

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lithium/pkg/diag"
	"lithium/pkg/html"
	"lithium/pkg/images"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("p { color: green } q { color: }"))
	})
	mux.HandleFunc("/cat.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes(7, 5))
	})
	mux.HandleFunc("/script.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte("alert(1)"))
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(r.UserAgent()))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_HTTP(t *testing.T) {
	srv := newServer(t)
	f := NewFetcher(srv.URL + "/pages/index.html")
	f.Client = srv.Client()

	body, ct, err := f.Fetch(context.Background(), "/style.css")
	require.NoError(t, err)
	assert.Equal(t, "text/css", ct)
	assert.Contains(t, string(body), "color: green")

	body, _, err = f.Fetch(context.Background(), "../ua")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "lithium/"))

	_, _, err = f.Fetch(context.Background(), "/nope")
	assert.Error(t, err)
}

func TestFetcher_DataAndFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.css"), []byte("div{}"), 0o644))

	f := NewFetcher(filepath.Join(dir, "index.html"))
	body, _, err := f.Fetch(context.Background(), "a.css")
	require.NoError(t, err)
	assert.Equal(t, "div{}", string(body))

	body, _, err = f.Fetch(context.Background(), "file://"+filepath.ToSlash(filepath.Join(dir, "a.css")))
	require.NoError(t, err)
	assert.Equal(t, "div{}", string(body))

	body, ct, err := f.Fetch(context.Background(), "data:text/css,p%7B%7D")
	require.NoError(t, err)
	assert.Equal(t, "p{}", string(body))
	assert.Equal(t, "text/css", ct)

	f.AllowFiles = false
	_, _, err = f.Fetch(context.Background(), "a.css")
	assert.Error(t, err)

	_, _, err = f.Fetch(context.Background(), "ftp://example.com/a.css")
	assert.Error(t, err)
}

func TestLoader_Load(t *testing.T) {
	srv := newServer(t)
	doc, err := html.Parse(`<link rel="stylesheet" href="/style.css">
<style>div { color: red }</style>
<link rel="stylesheet" href="/missing.css">
<link rel="stylesheet" href="/script.js">
<img src="/cat.png"><img src="/cat.png"><img src="/broken.png">`)
	require.NoError(t, err)

	f := NewFetcher(srv.URL)
	f.Client = srv.Client()
	cache := images.NewCache()
	l := &Loader{Fetcher: f, Images: cache, Parallelism: 3}
	res, err := l.Load(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, res.Sheets, 2)
	assert.Equal(t, "/style.css", res.Sheets[0].Href, "document order is kept")
	assert.Equal(t, "", res.Sheets[1].Href)
	assert.Equal(t, []string{"/cat.png"}, res.Images)

	w, h, ok := cache.Size("/cat.png")
	assert.True(t, ok)
	assert.Equal(t, [2]int{7, 5}, [2]int{w, h})

	assert.Equal(t, 3, res.Diagnostics.Count(diag.ErrFetch), "%v", res.Diagnostics)
	assert.Equal(t, 1, res.Diagnostics.Count(diag.ErrMalformedDeclaration), "%v", res.Diagnostics)
	for _, d := range res.Diagnostics {
		if errors.Is(d, diag.ErrFetch) {
			assert.NotEqual(t, -1, d.Node)
		}
	}
}

func TestLoader_DataURIImage(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(3, 2))
	doc, err := html.Parse(`<img src="` + uri + `">`)
	require.NoError(t, err)
	cache := images.NewCache()
	res, err := (&Loader{Images: cache}).Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
	w, h, ok := cache.Size(uri)
	assert.True(t, ok)
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
}

func TestLoader_Canceled(t *testing.T) {
	srv := newServer(t)
	doc, err := html.Parse(`<link rel="stylesheet" href="/style.css">`)
	require.NoError(t, err)
	f := NewFetcher(srv.URL)
	f.Client = srv.Client()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Loader{Fetcher: f}).Load(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHasScheme(t *testing.T) {
	for uri, want := range map[string]bool{
		"http://x":  true,
		"file:/a":   true,
		"a+b.c-d:x": true,
		"C:\\a.css": false,
		"/abs/path": false,
		"rel/a:b":   false,
		"style.css": false,
		"1http://x": false,
		"data:,abc": true,
		"":          false,
	} {
		assert.Equal(t, want, hasScheme(uri), uri)
	}
}
