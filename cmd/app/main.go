package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notevault/internal"
	pkgconfig "github.com/starford/notevault/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type runFunc func(context.Context, ...internal.Option) error

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file (.yaml or .toml)",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func action(run runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if vault := cmd.String("vault"); vault != "" {
			cfg.Vault.Location = vault
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}

		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:    "vault",
			Usage:   "Vault directory (overrides vault.location)",
			Sources: cli.EnvVars("APP_VAULT"),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "notevault",
		Usage:   "Headless Markdown vault with an HTTP API and MCP tools",
		Version: version,
		Action:  action(internal.Run),
		Flags:   flags(),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Action: action(internal.Run),
				Flags:  flags(),
			},
			{
				Name:   "mcp",
				Usage:  "Serve vault tools over stdio",
				Action: action(internal.RunMCP),
				Flags:  flags(),
			},
			{
				Name:   "daily",
				Usage:  "Get or create today's daily note and print it",
				Action: action(internal.RunDaily),
				Flags:  flags(),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
