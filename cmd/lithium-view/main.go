package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lithium/pkg/config"
	"lithium/pkg/engine"
	"lithium/pkg/layout"
	"lithium/pkg/render"
	"lithium/pkg/resource"
	"lithium/pkg/text"
	stdnet "lithium/std/net"
)

// browser owns the pipeline of the page on screen.
type browser struct {
	cfg   config.Config
	log   *logrus.Logger
	faces *text.TrueTypeShaper

	mu       sync.Mutex
	pipeline *engine.Pipeline
}

func newBrowser(cfg config.Config, log *logrus.Logger) (*browser, error) {
	faces, err := cfg.NewFaces()
	if err != nil {
		return nil, err
	}
	return &browser{cfg: cfg, log: log, faces: faces}, nil
}

// open loads target, a URL or a file path, into a new pipeline.
func (b *browser) open(ctx context.Context, target string, size layout.Size) (*image.RGBA, error) {
	var markup []byte
	base := target
	var err error
	if stdnet.IsNetworkURL(target) {
		markup, _, err = stdnet.Fetch(ctx, nil, target)
	} else {
		if base, err = filepath.Abs(target); err == nil {
			markup, err = os.ReadFile(base)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", target)
	}

	shaper, err := b.cfg.NewShaper()
	if err != nil {
		return nil, err
	}
	ua, err := b.cfg.UserAgentSheet()
	if err != nil {
		return nil, err
	}
	fetcher := resource.NewFetcher(base)
	fetcher.AllowFiles = b.cfg.Fetch.AllowFiles && !stdnet.IsNetworkURL(base)
	p := engine.New(engine.Options{
		Viewport:    size,
		Shaper:      shaper,
		Fetcher:     fetcher,
		UserAgent:   ua,
		Parallelism: b.cfg.Engine.Parallelism,
		Log:         b.log,
	})
	p.Load(string(markup))

	b.mu.Lock()
	b.pipeline = p
	b.mu.Unlock()
	return b.paint(ctx, p, size)
}

// resize re-lays out the current page at size.
func (b *browser) resize(ctx context.Context, size layout.Size) (*image.RGBA, error) {
	b.mu.Lock()
	p := b.pipeline
	b.mu.Unlock()
	if p == nil {
		return nil, nil
	}
	p.Invalidate(engine.ViewportChanged{Size: size})
	return b.paint(ctx, p, size)
}

func (b *browser) paint(ctx context.Context, p *engine.Pipeline, size layout.Size) (*image.RGBA, error) {
	f, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range f.Diagnostics {
		b.log.WithField("stage", d.Stage.String()).Warn(d.Error())
	}
	img, _, err := render.Rasterize(ctx, f.Display,
		render.Surface{Width: int(size.Width), Height: int(size.Height)}, b.faces, p.Images())
	return img, err
}

func main() {
	configPath := flag.String("config", "", "configuration file (TOML)")
	flag.Parse()

	log := logrus.New()
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := cfg.ConfigureLogger(log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	b, err := newBrowser(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	a := app.New()
	w := a.NewWindow("lithium")
	w.Resize(fyne.NewSize(float32(cfg.Viewport.Width), float32(cfg.Viewport.Height)+80))

	canvasImg := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	canvasImg.FillMode = canvas.ImageFillOriginal
	canvasImg.ScaleMode = canvas.ImageScalePixels
	status := widget.NewLabel("Enter a URL or file path and press Enter")

	viewport := func() layout.Size {
		s := canvasImg.Size()
		if s.Width < 1 || s.Height < 1 {
			return layout.Size{Width: float64(cfg.Viewport.Width), Height: float64(cfg.Viewport.Height)}
		}
		return layout.Size{Width: float64(s.Width), Height: float64(s.Height)}
	}
	show := func(title string, load func(context.Context, layout.Size) (*image.RGBA, error)) {
		size := viewport()
		go func() {
			img, err := load(context.Background(), size)
			fyne.Do(func() {
				if err != nil {
					status.SetText("Error: " + err.Error())
					return
				}
				if img == nil {
					return
				}
				canvasImg.Image = img
				canvasImg.Refresh()
				status.SetText(title)
				w.SetTitle("lithium - " + title)
			})
		}()
	}

	urlEntry := widget.NewEntry()
	urlEntry.SetPlaceHolder("https://example.com")
	urlEntry.OnSubmitted = func(target string) {
		status.SetText("Loading " + target + "...")
		show(target, func(ctx context.Context, size layout.Size) (*image.RGBA, error) {
			return b.open(ctx, target, size)
		})
	}
	relayout := widget.NewButton("Fit", func() {
		show(urlEntry.Text, b.resize)
	})

	topBar := container.NewBorder(nil, nil, nil, relayout, urlEntry)
	w.SetContent(container.NewBorder(topBar, status, nil, nil, canvasImg))
	w.Canvas().Focus(urlEntry)

	if flag.NArg() > 0 {
		urlEntry.SetText(flag.Arg(0))
		urlEntry.OnSubmitted(flag.Arg(0))
	}
	w.ShowAndRun()
}
