package visualtest

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lithium/pkg/diag"
	"lithium/pkg/engine"
	"lithium/pkg/html"
	"lithium/pkg/layout"
	"lithium/pkg/render"
	"lithium/pkg/resource"
	"lithium/pkg/text"
)

// RenderOptions configure Render.
type RenderOptions struct {
	Width, Height int
	// BaseURL resolves relative stylesheet and image references.
	BaseURL string
	// Shaper measures text. Nil uses the embedded Go fonts, which are also
	// used for drawing.
	Shaper text.Shaper
	Faces  render.FaceSource
	Log    logrus.FieldLogger
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	if o.Shaper == nil || o.Faces == nil {
		s := text.DefaultShaper()
		if o.Shaper == nil {
			o.Shaper = text.NewCached(s)
		}
		if o.Faces == nil {
			o.Faces = s
		}
	}
	return o
}

// Render runs markup through the full pipeline and rasterizes the result.
// Diagnostics from every stage are returned together.
func Render(ctx context.Context, markup string, opts RenderOptions) (*image.RGBA, diag.List, error) {
	img, f, diags, err := renderPage(ctx, markup, opts)
	if err != nil {
		return nil, nil, err
	}
	return img, append(f.Diagnostics[:len(f.Diagnostics):len(f.Diagnostics)], diags...), nil
}

// RenderFile renders the HTML file at path, resolving relative references
// against it.
func RenderFile(ctx context.Context, path string, opts RenderOptions) (*image.RGBA, diag.List, error) {
	markup, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read page")
	}
	if opts.BaseURL == "" {
		opts.BaseURL, err = filepath.Abs(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "resolve page path")
		}
	}
	return Render(ctx, string(markup), opts)
}

func renderPage(ctx context.Context, markup string, opts RenderOptions) (*image.RGBA, *engine.Frame, diag.List, error) {
	opts = opts.withDefaults()
	p := engine.New(engine.Options{
		Viewport: layout.Size{Width: float64(opts.Width), Height: float64(opts.Height)},
		Shaper:   opts.Shaper,
		Fetcher:  resource.NewFetcher(opts.BaseURL),
		Log:      opts.Log,
	})
	p.Load(markup)
	f, err := p.Run(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	img, diags, err := render.Rasterize(ctx, f.Display, render.Surface{Width: opts.Width, Height: opts.Height}, opts.Faces, p.Images())
	if err != nil {
		return nil, nil, nil, err
	}
	return img, f, diags, nil
}

// MatchReference returns the href of the document's <link rel="match">,
// which names a page expected to render identically.
func MatchReference(doc *html.Document) string {
	var href string
	doc.Walk(doc.Root, func(id html.NodeID) bool {
		n := doc.Node(id)
		if href != "" {
			return false
		}
		if n.Type != html.ElementNode || n.TagName != "link" {
			return true
		}
		rel, _ := n.Attr("rel")
		for _, r := range strings.Fields(strings.ToLower(rel)) {
			if r == "match" {
				href, _ = n.Attr("href")
				href = strings.TrimSpace(href)
			}
		}
		return true
	})
	return href
}

// Reftest renders the page at testPath and the reference it links with
// <link rel="match">, and compares the two.
func Reftest(ctx context.Context, testPath string, ropts RenderOptions, copts Options) (*Result, error) {
	markup, err := os.ReadFile(testPath)
	if err != nil {
		return nil, errors.Wrap(err, "read test")
	}
	if ropts.BaseURL, err = filepath.Abs(testPath); err != nil {
		return nil, errors.Wrap(err, "resolve test path")
	}
	got, f, _, err := renderPage(ctx, string(markup), ropts)
	if err != nil {
		return nil, errors.Wrapf(err, "render %s", testPath)
	}
	ref := MatchReference(f.Document)
	if ref == "" {
		return nil, errors.Errorf("%s: no <link rel=\"match\">", testPath)
	}
	refPath := filepath.Join(filepath.Dir(testPath), filepath.FromSlash(ref))
	ropts.BaseURL = ""
	want, _, err := RenderFile(ctx, refPath, ropts)
	if err != nil {
		return nil, errors.Wrapf(err, "render reference %s", refPath)
	}
	return Compare(got, want, copts)
}
