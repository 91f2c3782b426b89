// Package images decodes and caches the images referenced by a document.
package images

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Cache holds decoded images keyed by the URL they were loaded from. It is
// safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

func NewCache() *Cache {
	return &Cache{images: make(map[string]image.Image)}
}

// Get returns the image stored for src.
func (c *Cache) Get(src string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[src]
	return img, ok
}

func (c *Cache) Put(src string, img image.Image) {
	c.mu.Lock()
	c.images[src] = img
	c.mu.Unlock()
}

// Decode decodes data and stores the result under src.
func (c *Cache) Decode(src string, data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", abbreviate(src))
	}
	if b := img.Bounds(); b.Empty() {
		return nil, errors.Errorf("decoding %s: empty %s image", abbreviate(src), format)
	}
	c.Put(src, img)
	return img, nil
}

// Size returns the natural size of the image stored for src in px.
func (c *Cache) Size(src string) (width, height int, ok bool) {
	img, ok := c.Get(src)
	if !ok {
		return 0, 0, false
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Load returns the cached image for src, decoding it first when src is a
// data URI that has not been seen.
func (c *Cache) Load(src string) (image.Image, error) {
	if img, ok := c.Get(src); ok {
		return img, nil
	}
	if !IsDataURI(src) {
		return nil, errors.Errorf("image %s not loaded", abbreviate(src))
	}
	data, _, err := ParseDataURI(src)
	if err != nil {
		return nil, err
	}
	return c.Decode(src, data)
}

// IsDataURI reports whether s uses the data: scheme.
func IsDataURI(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// ParseDataURI splits a data URI into its payload and media type.
func ParseDataURI(uri string) (data []byte, mediaType string, err error) {
	if !IsDataURI(uri) {
		return nil, "", errors.Errorf("not a data URI: %s", abbreviate(uri))
	}
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, "", errors.Errorf("data URI without payload: %s", abbreviate(uri))
	}
	meta, payload := uri[5:comma], uri[comma+1:]
	b64 := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		b64 = true
		meta = meta[:len(meta)-len(";base64")]
	}
	mediaType = meta
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}
	if b64 {
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return nil, "", errors.Wrap(err, "data URI")
		}
		return data, mediaType, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", errors.Wrap(err, "data URI")
	}
	return []byte(s), mediaType, nil
}

// LoadImageFromDataURI decodes the image in a data URI without caching it.
func LoadImageFromDataURI(uri string) (image.Image, error) {
	data, _, err := ParseDataURI(uri)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding data URI")
	}
	return img, nil
}

// abbreviate keeps long data URIs out of error messages.
func abbreviate(s string) string {
	if len(s) > 64 {
		return s[:61] + "..."
	}
	return s
}
