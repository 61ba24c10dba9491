package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
	"github.com/ManuelReschke/NutriFox/internal/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "nutrifox",
		Usage: "NutriFox billing webhook and subscription service",
		Before: func(c *cli.Context) error {
			env.SetupEnvFile()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			apiKeyCommand(),
		},
		Action: func(c *cli.Context) error {
			return serve(c)
		},
		Flags: serveFlags(),
		After: func(c *cli.Context) error {
			logger.Sync()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Aliases: []string{"H"}, Usage: "Listen host (APP_HOST)"},
		&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (APP_PORT)"},
		&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: "Log level (LOG_LEVEL)"},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP server",
		Flags:  serveFlags(),
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg := loadServerConfig()

	// Override with flags if set
	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	if err := logger.SetupLogger(cfg.Development, cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app, err := NewApplication(c.Context, cfg)
	if err != nil {
		return err
	}
	return app.Listen(fmt.Sprintf("%s:%s", cfg.Host, cfg.Port))
}
