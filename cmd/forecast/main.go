package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/app"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

type appKey struct{}

func initApp(c *cli.Context) error {
	cfg := config.Load()

	level := cfg.Server.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr, c.String("log-format"))

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	c.Context = context.WithValue(c.Context, appKey{}, a)
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey{}).(*app.App); ok && a != nil {
		return a.Close()
	}
	return nil
}

func appFrom(c *cli.Context) *app.App {
	return c.Context.Value(appKey{}).(*app.App)
}

func main() {
	cliApp := &cli.App{
		Name:  "forecast",
		Usage: "Demand forecasting and reorder suggestions for product lines",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", EnvVars: []string{"LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-format", Usage: "console or json", Value: "console", EnvVars: []string{"LOG_FORMAT"}},
		},
		Before: initApp,
		After:  closeApp,
		Commands: []*cli.Command{
			runCommand(),
			dashboardCommand(),
			reportCommand(),
			stockCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("forecast failed")
		stop()
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}
