// Package config loads lithium.toml.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lithium/pkg/css"
	"lithium/pkg/text"
)

// Config is the decoded configuration file. The zero value is not useful;
// start from Default.
type Config struct {
	Viewport Viewport `toml:"viewport"`
	Fonts    Fonts    `toml:"fonts"`
	Engine   Engine   `toml:"engine"`
	Fetch    Fetch    `toml:"fetch"`
	Log      Log      `toml:"log"`
	// UserAgentCSS is a stylesheet file replacing the built-in defaults.
	UserAgentCSS string `toml:"user_agent_css"`
}

type Viewport struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Fonts selects the faces used for measuring and drawing text. With
// Embedded set the bundled Go fonts are used and the paths are ignored.
type Fonts struct {
	Embedded bool `toml:"embedded"`
	text.FontConfig
}

type Engine struct {
	Parallelism int `toml:"parallelism"`
	// Shaper is "truetype" or "fixed".
	Shaper string `toml:"shaper"`
	// FixedRatio is the per-rune advance of the fixed shaper as a fraction
	// of the font size.
	FixedRatio float64 `toml:"fixed_ratio"`
}

type Fetch struct {
	Timeout    Duration `toml:"timeout"`
	AllowFiles bool     `toml:"allow_files"`
}

type Log struct {
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return errors.Wrapf(err, "duration %q", b)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Viewport: Viewport{Width: 800, Height: 600},
		Fonts:    Fonts{Embedded: true},
		Engine:   Engine{Shaper: "truetype", FixedRatio: 0.5},
		Fetch:    Fetch{Timeout: Duration{30 * time.Second}, AllowFiles: true},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Parse decodes data over the defaults. Unknown keys are an error.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0:
		return errors.Errorf("invalid config: viewport %dx%d", c.Viewport.Width, c.Viewport.Height)
	case c.Engine.Parallelism < 0:
		return errors.Errorf("invalid config: parallelism %d", c.Engine.Parallelism)
	case c.Engine.Shaper != "truetype" && c.Engine.Shaper != "fixed":
		return errors.Errorf("invalid config: unknown shaper %q", c.Engine.Shaper)
	case c.Engine.FixedRatio <= 0:
		return errors.Errorf("invalid config: fixed_ratio %g", c.Engine.FixedRatio)
	case c.Fetch.Timeout.Duration < 0:
		return errors.Errorf("invalid config: fetch timeout %s", c.Fetch.Timeout)
	case c.Log.Format != "text" && c.Log.Format != "json":
		return errors.Errorf("invalid config: log format %q", c.Log.Format)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// NewShaper builds the configured text shaper.
func (c Config) NewShaper() (text.Shaper, error) {
	if c.Engine.Shaper == "fixed" {
		return text.FixedShaper{Ratio: c.Engine.FixedRatio}, nil
	}
	s, err := c.NewFaces()
	if err != nil {
		return nil, err
	}
	return text.NewCached(s), nil
}

// NewFaces loads the configured fonts for measuring and drawing.
func (c Config) NewFaces() (*text.TrueTypeShaper, error) {
	fc := c.Fonts.FontConfig
	if c.Fonts.Embedded {
		fc = text.FontConfig{}
	}
	return text.NewTrueTypeShaper(fc)
}

// UserAgentSheet parses the configured user agent stylesheet, or returns
// nil for the built-in one.
func (c Config) UserAgentSheet() (*css.Stylesheet, error) {
	if c.UserAgentCSS == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.UserAgentCSS)
	if err != nil {
		return nil, errors.Wrap(err, "user agent stylesheet")
	}
	sheet, _ := css.ParseStylesheet(string(data))
	sheet.Origin = css.OriginUserAgent
	return sheet, nil
}

// ConfigureLogger applies the log settings to l.
func (c Config) ConfigureLogger(l *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return nil
}
