// Package cli implements the lithium command-line interface.
package cli

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lithium/pkg/config"
)

var (
	version = "dev"
	commit  string
)

// SetVersion sets the version reported by --version. The main package
// passes values injected with ldflags.
func SetVersion(v, c string) {
	version, commit = v, c
}

// CLI holds the state shared by every command.
type CLI struct {
	Log *logrus.Logger
	cfg config.Config

	configPath string
	logLevel   string
	width      int
	height     int
}

// New creates a CLI logging to w.
func New(w io.Writer) *CLI {
	log := logrus.New()
	log.SetOutput(w)
	return &CLI{Log: log, cfg: config.Default()}
}

// RootCommand creates the root command with every subcommand registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lithium",
		Short: "Lithium renders HTML and CSS to images",
		Long: `Lithium parses HTML and CSS, lays the page out and paints it.
It can write the rendered page as a PNG or dump any intermediate stage.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	if commit != "" {
		root.SetVersionTemplate("lithium {{.Version}} (" + commit + ")\n")
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "configuration file (TOML)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.IntVar(&c.width, "width", 0, "viewport width in pixels")
	flags.IntVar(&c.height, "height", 0, "viewport height in pixels")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.compareCommand())
	root.AddCommand(c.domCommand())
	root.AddCommand(c.cssCommand())
	root.AddCommand(c.boxesCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.paintCommand())
	return root
}

// setup loads the configuration and applies flag overrides.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return err
		}
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.width != 0 {
		cfg.Viewport.Width = c.width
	}
	if c.height != 0 {
		cfg.Viewport.Height = c.height
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "flags")
	}
	if err := cfg.ConfigureLogger(c.Log); err != nil {
		return err
	}
	c.cfg = cfg
	c.Log.WithField("config", c.configPath).Debug("configuration loaded")
	return nil
}
