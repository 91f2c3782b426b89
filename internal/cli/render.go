package cli

import (
	"context"
	"image"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lithium/pkg/engine"
	"lithium/pkg/render"
)

// maxPageHeight bounds --full-page surfaces.
const maxPageHeight = 16384

type renderOpts struct {
	output   string
	fullPage bool
}

func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{output: "out.png"}
	cmd := &cobra.Command{
		Use:   "render <file|url|->",
		Short: "Render a page to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := c.rasterize(cmd.Context(), args[0], cmd.InOrStdin(), opts.fullPage)
			if err != nil {
				return err
			}
			if opts.output == "-" {
				return errors.Wrap(png.Encode(cmd.OutOrStdout(), img), "encode png")
			}
			if err := writePNG(opts.output, img); err != nil {
				return err
			}
			c.Log.WithFields(logrus.Fields{
				"output": opts.output,
				"size":   img.Bounds().Size().String(),
			}).Info("wrote image")
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output PNG file, - for stdout")
	cmd.Flags().BoolVar(&opts.fullPage, "full-page", false, "grow the image to the height of the page")
	return cmd
}

// rasterize runs the pipeline over arg and paints the display list.
func (c *CLI) rasterize(ctx context.Context, arg string, stdin io.Reader, fullPage bool) (*image.RGBA, error) {
	f, p, err := c.frame(ctx, arg, stdin)
	if err != nil {
		return nil, err
	}
	faces, err := c.cfg.NewFaces()
	if err != nil {
		return nil, err
	}
	surface := render.Surface{Width: c.cfg.Viewport.Width, Height: c.cfg.Viewport.Height}
	if fullPage {
		surface.Height = pageHeight(f, surface.Height)
	}
	img, diags, err := render.Rasterize(ctx, f.Display, surface, faces, p.Images())
	if err != nil {
		return nil, err
	}
	for _, d := range diags {
		c.Log.WithField("stage", d.Stage.String()).Warn(d.Error())
	}
	return img, nil
}

// pageHeight returns the height of the laid out page, at least min.
func pageHeight(f *engine.Frame, min int) int {
	h := int(math.Ceil(f.Layout.Root.At(0, 0).MarginBox().Height))
	if h < min {
		return min
	}
	if h > maxPageHeight {
		return maxPageHeight
	}
	return h
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return errors.Wrap(out.Close(), "close output")
}
