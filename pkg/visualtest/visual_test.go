package visualtest

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"lithium/pkg/diag"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestCompare_Identical(t *testing.T) {
	img := solid(10, 10, color.RGBA{255, 0, 0, 255})
	result, err := Compare(img, solid(10, 10, color.RGBA{255, 0, 0, 255}), DefaultOptions())
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	if !result.Match {
		t.Errorf("expected images to match")
	}
	if result.DifferentPixels != 0 {
		t.Errorf("expected 0 different pixels, got %d", result.DifferentPixels)
	}
	if result.Diff != nil {
		t.Errorf("diff image built without being requested")
	}
}

func TestCompare_Different(t *testing.T) {
	opts := DefaultOptions()
	opts.Diff = true
	result, err := Compare(solid(10, 10, color.RGBA{255, 0, 0, 255}), solid(10, 10, color.RGBA{0, 0, 255, 255}), opts)
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	if result.Match {
		t.Errorf("expected images to not match")
	}
	if result.DifferentPixels != 100 {
		t.Errorf("expected 100 different pixels, got %d", result.DifferentPixels)
	}
	if result.MaxDifference != 255 {
		t.Errorf("expected max difference 255, got %d", result.MaxDifference)
	}
	if got := result.Diff.RGBAAt(3, 3); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("differing pixel not highlighted: %v", got)
	}
}

func TestCompare_WithTolerance(t *testing.T) {
	a := solid(10, 10, color.RGBA{100, 100, 100, 255})
	b := solid(10, 10, color.RGBA{102, 102, 102, 255})

	opts := DefaultOptions()
	opts.Tolerance = 2
	result, err := Compare(a, b, opts)
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	if !result.Match {
		t.Errorf("expected images to match with tolerance=2")
	}

	opts.Tolerance = 0
	result, err = Compare(a, b, opts)
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	if result.Match {
		t.Errorf("expected images to not match with tolerance=0")
	}
}

func TestCompare_Fuzzy(t *testing.T) {
	a := solid(10, 10, color.White)
	b := solid(10, 10, color.White)
	a.Set(4, 4, color.Black)
	b.Set(5, 4, color.Black)

	result, _ := Compare(a, b, DefaultOptions())
	if result.Match {
		t.Fatalf("shifted pixel should differ without fuzzing")
	}
	opts := DefaultOptions()
	opts.FuzzyRadius = 1
	result, _ = Compare(a, b, opts)
	if !result.Match {
		t.Errorf("shifted pixel should match within radius 1, %d differ", result.DifferentPixels)
	}
}

func TestCompare_MaxDifferentPercent(t *testing.T) {
	a := solid(10, 10, color.White)
	b := solid(10, 10, color.White)
	b.Set(0, 0, color.Black)

	opts := DefaultOptions()
	opts.MaxDifferentPercent = 1
	result, _ := Compare(a, b, opts)
	if !result.Match || result.DifferentPixels != 1 {
		t.Errorf("one pixel in a hundred should pass at 1%%: %+v", result)
	}
	opts.MaxDifferentPercent = 0.5
	result, _ = Compare(a, b, opts)
	if result.Match {
		t.Errorf("one pixel in a hundred should fail at 0.5%%")
	}
}

func TestCompare_DifferentDimensions(t *testing.T) {
	result, err := Compare(image.NewRGBA(image.Rect(0, 0, 10, 10)), image.NewRGBA(image.Rect(0, 0, 20, 20)), DefaultOptions())
	if err == nil {
		t.Errorf("expected error for different dimensions")
	}
	if result != nil && result.Match {
		t.Errorf("expected images with different dimensions to not match")
	}
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	p1, p2 := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")
	if err := SavePNG(solid(4, 4, color.White), p1); err != nil {
		t.Fatal(err)
	}
	if err := SavePNG(solid(4, 4, color.White), p2); err != nil {
		t.Fatal(err)
	}
	result, err := CompareFiles(p1, p2, DefaultOptions())
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	if !result.Match {
		t.Errorf("expected saved images to match")
	}
	if _, err := CompareFiles(p1, filepath.Join(dir, "missing.png"), DefaultOptions()); err == nil {
		t.Errorf("expected error for a missing file")
	}
}

func TestRender_SolidBlock(t *testing.T) {
	got, diags, err := Render(context.Background(),
		`<div style="width: 100px; height: 50px; background-color: red"></div>`,
		RenderOptions{Width: 200, Height: 100})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	want := solid(200, 100, color.White)
	draw.Draw(want, image.Rect(0, 0, 100, 50), image.NewUniform(color.RGBA{255, 0, 0, 255}), image.Point{}, draw.Src)
	result, err := Compare(got, want, DefaultOptions())
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	if !result.Match {
		t.Errorf("%d/%d pixels differ, max diff %d", result.DifferentPixels, result.TotalPixels, result.MaxDifference)
	}
}

func TestRender_ReportsDiagnostics(t *testing.T) {
	_, diags, err := Render(context.Background(), `<div style="width: wide"></div><img src="nowhere.png">`,
		RenderOptions{Width: 50, Height: 50, BaseURL: t.TempDir() + "/"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if diags.Count(diag.ErrFetch) == 0 {
		t.Errorf("missing fetch diagnostic in %v", diags)
	}
	if diags.Count(diag.ErrRaster) == 0 {
		t.Errorf("missing raster diagnostic for the unloaded image in %v", diags)
	}
}

func TestRenderFile_ResolvesRelativeToPage(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	writeFile(t, filepath.Join(dir, "style.css"), `div { height: 10px; background-color: #0000ff }`)
	writeFile(t, page, `<link rel="stylesheet" href="style.css"><div></div>`)

	img, diags, err := RenderFile(context.Background(), page, RenderOptions{Width: 20, Height: 20})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("linked stylesheet not applied, pixel = %v", got)
	}
	if got := img.RGBAAt(5, 15); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("expected white below the block, pixel = %v", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
