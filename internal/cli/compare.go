package cli

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"lithium/pkg/visualtest"
)

type compareOpts struct {
	visualtest.Options
	diffPath string
}

func (c *CLI) compareCommand() *cobra.Command {
	opts := compareOpts{Options: visualtest.DefaultOptions()}
	cmd := &cobra.Command{
		Use:   "compare <page> <reference.png|reference page>",
		Short: "Render a page and compare it with a reference",
		Long: `Compare renders a page and compares it pixel by pixel with a reference.
The reference is either a PNG image or another page, which is rendered
with the same settings. The command fails when the images differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			got, err := c.rasterize(ctx, args[0], cmd.InOrStdin(), false)
			if err != nil {
				return err
			}
			var want image.Image
			if strings.EqualFold(filepath.Ext(args[1]), ".png") {
				want, err = visualtest.LoadPNG(args[1])
			} else {
				want, err = c.rasterize(ctx, args[1], cmd.InOrStdin(), false)
			}
			if err != nil {
				return err
			}

			opts.Diff = opts.diffPath != ""
			res, err := visualtest.Compare(got, want, opts.Options)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d pixels differ, max difference %d\n",
				res.DifferentPixels, res.TotalPixels, res.MaxDifference)
			if res.Match {
				return nil
			}
			if res.Diff != nil {
				if err := visualtest.SavePNG(res.Diff, opts.diffPath); err != nil {
					return err
				}
			}
			return errors.Errorf("%s does not match %s", args[0], args[1])
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opts.Tolerance, "tolerance", opts.Tolerance, "largest per-channel difference counted as equal")
	flags.IntVar(&opts.FuzzyRadius, "fuzz", 0, "match pixels within this radius")
	flags.Float64Var(&opts.MaxDifferentPercent, "max-diff-percent", 0, "pass when at most this percentage of pixels differ")
	flags.StringVar(&opts.diffPath, "diff", "", "write a diff image here when the pages differ")
	return cmd
}
