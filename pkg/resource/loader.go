package resource

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lithium/pkg/css"
	"lithium/pkg/diag"
	"lithium/pkg/html"
	"lithium/pkg/images"
)

// Loader fetches the stylesheets and images a document references.
type Loader struct {
	Fetcher Fetcher
	// Images receives decoded images keyed by their src attribute.
	Images *images.Cache
	// Parallelism bounds concurrent fetches. Values below 1 mean 4.
	Parallelism int
	Log         logrus.FieldLogger
}

// Result is what a Load produced. Sheets holds one entry per style source
// that could be loaded, in document order.
type Result struct {
	Sheets      []*css.Stylesheet
	Images      []string
	Diagnostics diag.List
}

// Load fetches every linked stylesheet and image of doc concurrently and
// parses inline style blocks. A resource that cannot be fetched or decoded
// is recorded as a FetchError and skipped; only cancellation fails the
// load.
func (l *Loader) Load(ctx context.Context, doc *html.Document) (*Result, error) {
	fetcher := l.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher("")
	}
	cache := l.Images
	if cache == nil {
		cache = images.NewCache()
	}
	log := l.Log
	if log == nil {
		log = logrus.WithField("component", "resource")
	}
	limit := l.Parallelism
	if limit < 1 {
		limit = 4
	}

	var diags diag.Collector
	fetchFailed := func(node html.NodeID, uri string, err error) {
		d := diag.New(diag.ErrFetch, diag.StageFetch, "%s: %v", abbreviate(uri), err).WithNode(int(node)).WithCause(err)
		log.WithField("uri", abbreviate(uri)).Warn(err)
		diags.Add(d)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	sheets := make([]*css.Stylesheet, len(doc.StyleSources))
	for i, src := range doc.StyleSources {
		i, src := i, src
		if src.Kind == html.InlineStyle {
			sheets[i] = parseSheet(src.Text, "", &diags)
			continue
		}
		if src.Href == "" {
			continue
		}
		g.Go(func() error {
			body, ct, err := fetcher.Fetch(gctx, src.Href)
			if err == nil {
				err = checkCSS(ct)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fetchFailed(src.Node, src.Href, err)
				return nil
			}
			sheets[i] = parseSheet(string(body), src.Href, &diags)
			return nil
		})
	}

	srcs := imageSources(doc)
	for _, is := range srcs {
		is := is
		if _, ok := cache.Get(is.src); ok {
			continue
		}
		g.Go(func() error {
			body, _, err := fetcher.Fetch(gctx, is.src)
			if err == nil {
				_, err = cache.Decode(is.src, body)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fetchFailed(is.node, is.src, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, s := range sheets {
		if s != nil {
			res.Sheets = append(res.Sheets, s)
		}
	}
	for _, is := range srcs {
		if _, ok := cache.Get(is.src); ok {
			res.Images = append(res.Images, is.src)
		}
	}
	res.Diagnostics = diags.List()
	log.WithFields(logrus.Fields{
		"sheets":      len(res.Sheets),
		"images":      len(res.Images),
		"diagnostics": len(res.Diagnostics),
	}).Debug("resources loaded")
	return res, nil
}

func parseSheet(text, href string, diags *diag.Collector) *css.Stylesheet {
	sheet, _ := css.ParseStylesheet(text)
	sheet.Href = href
	diags.Merge(sheet.Diagnostics)
	return sheet
}

type imageSource struct {
	node html.NodeID
	src  string
}

// imageSources lists the distinct src attributes of img elements in
// document order.
func imageSources(doc *html.Document) []imageSource {
	var out []imageSource
	seen := map[string]bool{}
	doc.Walk(doc.Root, func(id html.NodeID) bool {
		n := doc.Node(id)
		if n.Type != html.ElementNode || n.TagName != "img" {
			return true
		}
		src, ok := n.Attr("src")
		src = strings.TrimSpace(src)
		if ok && src != "" && !seen[src] {
			seen[src] = true
			out = append(out, imageSource{id, src})
		}
		return true
	})
	return out
}

func abbreviate(s string) string {
	if len(s) > 64 {
		return s[:61] + "..."
	}
	return s
}
