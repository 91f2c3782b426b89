package resource

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"lithium/pkg/images"
	stdnet "lithium/std/net"
)

// Fetcher retrieves resources by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (body []byte, contentType string, err error)
}

// DefaultFetcher fetches data: URIs, local files and HTTP/HTTPS resources,
// resolving relative URIs against a base URL.
type DefaultFetcher struct {
	baseURL string
	// Client is used for network fetches. Nil uses a shared client.
	Client *http.Client
	// AllowFiles permits file: URIs and bare paths.
	AllowFiles bool
}

// NewFetcher creates a DefaultFetcher with the given base URL.
// Relative URIs passed to Fetch will be resolved against this base.
func NewFetcher(baseURL string) *DefaultFetcher {
	return &DefaultFetcher{baseURL: baseURL, AllowFiles: true}
}

func (f *DefaultFetcher) BaseURL() string { return f.baseURL }

// Resolve returns the absolute form of uri.
func (f *DefaultFetcher) Resolve(uri string) string {
	if images.IsDataURI(uri) || hasScheme(uri) || f.baseURL == "" {
		return uri
	}
	return stdnet.ResolveURL(f.baseURL, uri)
}

// Fetch retrieves the resource at the given URI.
func (f *DefaultFetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if uri == "" {
		return nil, "", errors.New("empty URI")
	}
	if images.IsDataURI(uri) {
		return images.ParseDataURI(uri)
	}
	resolved := f.Resolve(uri)
	switch {
	case stdnet.IsNetworkURL(resolved):
		return stdnet.Fetch(ctx, f.Client, resolved)
	case !hasScheme(resolved) || strings.HasPrefix(strings.ToLower(resolved), "file:"):
		if !f.AllowFiles {
			return nil, "", errors.Errorf("file access disabled: %s", resolved)
		}
		return readFile(resolved)
	}
	return nil, "", errors.Errorf("unsupported URI scheme: %s", resolved)
}

func readFile(uri string) ([]byte, string, error) {
	path := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading %s", path)
	}
	return body, mime.TypeByExtension(filepath.Ext(path)), nil
}

// hasScheme reports whether uri starts with a URL scheme. Single letters
// are taken to be Windows drive names.
func hasScheme(uri string) bool {
	i := strings.IndexByte(uri, ':')
	if i < 2 {
		return false
	}
	for j := 0; j < i; j++ {
		c := uri[j]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case j > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// checkCSS rejects responses whose content type is clearly not a
// stylesheet.
func checkCSS(contentType string) error {
	ct := strings.ToLower(contentType)
	if ct != "" && !strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "css") {
		return errors.Errorf("unexpected content type for CSS: %s", contentType)
	}
	return nil
}
