package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quire/internal"
	pkgconfig "github.com/starford/quire/pkg/config"
)

var version = "dev"

// defaultConfigFile is read when the --config file does not exist.
const defaultConfigFile = "config/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.Root().String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(configPath, defaultConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func render(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("render: reference is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Render(ctx, ref, cmd.String("format"),
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
	)
}

func locate(_ context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("locate: reference is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Locate(ref,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
	)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	)
}

func export(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("export: output directory is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := internal.Export(ctx, dir,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
	)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d documents to %s\n", n, dir)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "quire",
		Usage:   "Resolve, transclude, and render Markdown topics and maps to HTML and DITA-style XML",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigFile,
				Value:       defaultConfigFile,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with the content watcher",
				Action: serve,
			},
			{
				Name:      "render",
				Usage:     "Render one document to stdout",
				ArgsUsage: "<ref>",
				Action:    render,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: html or xml",
						Value:   "html",
					},
				},
			},
			{
				Name:      "locate",
				Usage:     "Print the content path a reference resolves to",
				ArgsUsage: "<ref>",
				Action:    locate,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:      "export",
				Usage:     "Render every document into a directory",
				ArgsUsage: "<dir>",
				Action:    export,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
