package cli

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := New(io.Discard).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePage(t *testing.T, name, markup string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(markup), 0o644))
	return path
}

const blockPage = `<div id="a" class="x" style="width: 10px; height: 10px; background-color: red"></div>`

func TestRender_WritesPNG(t *testing.T) {
	page := writePage(t, "page.html", blockPage)
	out := filepath.Join(t.TempDir(), "out.png")
	_, err := execute(t, "", "render", page, "-o", out, "--width", "50", "--height", "40")
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
}

func TestRender_StdinToStdout(t *testing.T) {
	out, err := execute(t, blockPage, "render", "-", "-o", "-", "--width", "20", "--height", "20")
	require.NoError(t, err)
	img, err := png.Decode(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestRender_FullPage(t *testing.T) {
	page := writePage(t, "tall.html", `<div style="height: 200px"></div>`)
	out := filepath.Join(t.TempDir(), "tall.png")
	_, err := execute(t, "", "render", page, "-o", out, "--width", "30", "--height", "40", "--full-page")
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Height)
}

func TestRender_Errors(t *testing.T) {
	_, err := execute(t, "", "render", filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	page := writePage(t, "page.html", blockPage)
	_, err = execute(t, "", "render", page, "--log-level", "loud")
	assert.Error(t, err)
	_, err = execute(t, "", "render", page, "--width", "-5")
	assert.Error(t, err)
	_, err = execute(t, "", "render")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lithium.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[viewport]\nwidth = 64\nheight = 16\n[engine]\nshaper = \"fixed\"\n"), 0o644))
	page := writePage(t, "page.html", blockPage)
	out := filepath.Join(dir, "out.png")

	_, err := execute(t, "", "render", page, "--config", cfgPath, "-o", out)
	require.NoError(t, err)
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 16, cfg.Height)

	require.NoError(t, os.WriteFile(cfgPath, []byte("[viewport]\ndepth = 3\n"), 0o644))
	_, err = execute(t, "", "render", page, "--config", cfgPath, "-o", out)
	assert.Error(t, err)
}

func TestDumpCommands(t *testing.T) {
	page := writePage(t, "page.html", blockPage)
	for _, tc := range []struct {
		args []string
		want []string
	}{
		{[]string{"dom"}, []string{"#document", `div id="a"`}},
		{[]string{"dom", "--html"}, []string{`<div id="a" class="x"`}},
		{[]string{"boxes"}, []string{"div"}},
		{[]string{"layout"}, []string{"10x10"}},
		{[]string{"paint"}, []string{"FillRect (0,0 10x10) #ff0000"}},
		{[]string{"css"}, []string{"div#a.x", "width: 10px;", "height: 10px;"}},
	} {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			out, err := execute(t, "", append(tc.args, page)...)
			require.NoError(t, err)
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestCSS_All(t *testing.T) {
	page := writePage(t, "page.html", `<p>x</p>`)
	short, err := execute(t, "", "css", page)
	require.NoError(t, err)
	all, err := execute(t, "", "css", "--all", page)
	require.NoError(t, err)
	assert.NotContains(t, short, "visibility:")
	assert.Contains(t, all, "visibility: visible;")
}

func TestCompare(t *testing.T) {
	a := writePage(t, "a.html", `<div style="padding-left: 5px"><div style="width: 5px; height: 5px; background-color: blue"></div></div>`)
	b := writePage(t, "b.html", `<div style="margin-left: 5px; width: 5px; height: 5px; background-color: blue"></div>`)
	c := writePage(t, "c.html", `<div style="width: 5px; height: 5px; background-color: blue"></div>`)

	out, err := execute(t, "", "compare", a, b, "--width", "20", "--height", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "0/400 pixels differ")

	diff := filepath.Join(t.TempDir(), "diff.png")
	_, err = execute(t, "", "compare", a, c, "--width", "20", "--height", "20", "--diff", diff)
	assert.Error(t, err)
	_, err = os.Stat(diff)
	assert.NoError(t, err, "diff image written")

	ref := filepath.Join(t.TempDir(), "ref.png")
	_, err = execute(t, "", "render", b, "-o", ref, "--width", "20", "--height", "20")
	require.NoError(t, err)
	_, err = execute(t, "", "compare", a, ref, "--width", "20", "--height", "20")
	assert.NoError(t, err)
}
