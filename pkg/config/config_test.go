package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lithium/pkg/css"
	"lithium/pkg/text"
)

func TestParse(t *testing.T) {
	cfg, err := Parse(`
user_agent_css = "ua.css"

[viewport]
width = 1024

[fonts]
embedded = false
regular = "/fonts/r.ttf"

[engine]
parallelism = 2
shaper = "fixed"
fixed_ratio = 0.6

[fetch]
timeout = "5s"
allow_files = false

[log]
level = "debug"
format = "json"
`)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Viewport.Width)
	assert.Equal(t, 600, cfg.Viewport.Height, "unset keys keep their defaults")
	assert.Equal(t, "/fonts/r.ttf", cfg.Fonts.Regular)
	assert.False(t, cfg.Fonts.Embedded)
	assert.Equal(t, 2, cfg.Engine.Parallelism)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout.Duration)
	assert.False(t, cfg.Fetch.AllowFiles)
	assert.Equal(t, "ua.css", cfg.UserAgentCSS)

	sh, err := cfg.NewShaper()
	require.NoError(t, err)
	assert.Equal(t, text.FixedShaper{Ratio: 0.6}, sh)

	l := logrus.New()
	require.NoError(t, cfg.ConfigureLogger(l))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
}

func TestParse_Errors(t *testing.T) {
	for name, src := range map[string]string{
		"syntax":      `[viewport`,
		"unknown key": "[viewport]\ndepth = 3",
		"bad size":    "[viewport]\nwidth = -1",
		"bad shaper":  "[engine]\nshaper = \"harfbuzz\"",
		"bad level":   "[log]\nlevel = \"loud\"",
		"bad format":  "[log]\nformat = \"xml\"",
		"bad timeout": "[fetch]\ntimeout = \"soon\"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	sh, err := cfg.NewShaper()
	require.NoError(t, err)
	assert.IsType(t, &text.Cached{}, sh)
	sheet, err := cfg.UserAgentSheet()
	assert.NoError(t, err)
	assert.Nil(t, sheet)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	ua := filepath.Join(dir, "ua.css")
	require.NoError(t, os.WriteFile(ua, []byte("p { display: block }"), 0o644))
	path := filepath.Join(dir, "lithium.toml")
	require.NoError(t, os.WriteFile(path, []byte("user_agent_css = "+`"`+filepath.ToSlash(ua)+`"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	sheet, err := cfg.UserAgentSheet()
	require.NoError(t, err)
	assert.Equal(t, css.OriginUserAgent, sheet.Origin)
	assert.Len(t, sheet.Rules, 1)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
