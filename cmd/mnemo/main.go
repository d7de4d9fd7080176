package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mnemo/internal"
	pkgconfig "github.com/starford/mnemo/pkg/config"
)

// userConfigFile is the per-user fallback for a missing ./mnemo.yaml.
func userConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mnemo", "config.yaml")
}

// openApp loads the configuration named by the global flags and opens the
// knowledge directory. A config file named explicitly must exist.
func openApp(cmd *cli.Command, opts ...internal.Option) (*internal.App, error) {
	cfg := internal.NewDefaultConfig()
	var err error
	if cmd.IsSet("config") {
		err = pkgconfig.Load(cmd.String("config"), cfg)
	} else {
		err = pkgconfig.LoadWithDefaults(cmd.String("config"), userConfigFile(), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cmd.IsSet("knowledge-dir") {
		cfg.Store.Path = cmd.String("knowledge-dir")
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	opts = append([]internal.Option{internal.WithConfig(cfg)}, opts...)
	return internal.Open(opts...)
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "mnemo",
		Usage: "Local Markdown knowledge store with observations, typed relations and full-text search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file; falls back to the user config dir",
				DefaultText: "mnemo.yaml",
				Value:       "mnemo.yaml",
				Sources:     cli.EnvVars("MNEMO_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "knowledge-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the note files",
				Sources: cli.EnvVars("MNEMO_KNOWLEDGE_DIR"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			createCommand(),
			readCommand(),
			searchCommand(),
			observeCommand(),
			relateCommand(),
			listCommand(),
			relatedCommand(),
			reindexCommand(),
			watchCommand(),
			mcpCommand(),
		},
	}
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}
