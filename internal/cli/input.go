package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lithium/pkg/engine"
	"lithium/pkg/layout"
	"lithium/pkg/resource"
	stdnet "lithium/std/net"
)

// page is a loaded document ready for the pipeline.
type page struct {
	markup string
	// base resolves the page's relative references.
	base string
}

// readPage reads arg as an http(s) URL, "-" for stdin, or a file path.
func (c *CLI) readPage(ctx context.Context, arg string, stdin io.Reader) (page, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return page{}, errors.Wrap(err, "read stdin")
		}
		wd, _ := os.Getwd()
		return page{markup: string(data), base: wd + string(filepath.Separator)}, nil
	case stdnet.IsNetworkURL(arg):
		c.Log.WithField("url", arg).Info("fetching")
		body, _, err := stdnet.Fetch(ctx, c.httpClient(), arg)
		if err != nil {
			return page{}, err
		}
		return page{markup: string(body), base: arg}, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return page{}, errors.Wrap(err, "read page")
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return page{}, errors.Wrap(err, "resolve page path")
	}
	return page{markup: string(data), base: abs}, nil
}

func (c *CLI) httpClient() *http.Client {
	return &http.Client{Timeout: c.cfg.Fetch.Timeout.Duration}
}

// newPipeline builds a pipeline for pg from the configuration.
func (c *CLI) newPipeline(pg page) (*engine.Pipeline, error) {
	shaper, err := c.cfg.NewShaper()
	if err != nil {
		return nil, err
	}
	ua, err := c.cfg.UserAgentSheet()
	if err != nil {
		return nil, err
	}
	fetcher := resource.NewFetcher(pg.base)
	fetcher.Client = c.httpClient()
	// Network pages never read local files.
	fetcher.AllowFiles = c.cfg.Fetch.AllowFiles && !stdnet.IsNetworkURL(pg.base)
	return engine.New(engine.Options{
		Viewport: layout.Size{
			Width:  float64(c.cfg.Viewport.Width),
			Height: float64(c.cfg.Viewport.Height),
		},
		Shaper:      shaper,
		Fetcher:     fetcher,
		UserAgent:   ua,
		Parallelism: c.cfg.Engine.Parallelism,
		Log:         c.Log,
	}), nil
}

// frame loads arg and runs one pass over it.
func (c *CLI) frame(ctx context.Context, arg string, stdin io.Reader) (*engine.Frame, *engine.Pipeline, error) {
	pg, err := c.readPage(ctx, arg, stdin)
	if err != nil {
		return nil, nil, err
	}
	p, err := c.newPipeline(pg)
	if err != nil {
		return nil, nil, err
	}
	p.Load(pg.markup)
	f, err := p.Run(ctx)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "render %s", arg)
	}
	c.report(f)
	return f, p, nil
}

// report logs the frame's diagnostics as warnings.
func (c *CLI) report(f *engine.Frame) {
	for _, d := range f.Diagnostics {
		c.Log.WithFields(logrus.Fields{
			"stage": d.Stage.String(),
			"kind":  d.Kind.Error(),
		}).Warn(d.Error())
	}
	c.Log.WithFields(logrus.Fields{
		"nodes":       f.Document.Len(),
		"styled":      f.Styles.Len(),
		"commands":    len(f.Display),
		"diagnostics": len(f.Diagnostics),
		"elapsed":     f.Stats.Elapsed,
	}).Info("page rendered")
}
