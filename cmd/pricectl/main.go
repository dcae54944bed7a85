// pricectl drives the ride pricing engine from a terminal.
//
// Usage:
//
//	pricectl health
//	pricectl recommend --vehicle Premium --competitor-price 410
//	pricectl batch --file rides.csv --export results.xlsx --chart results.png
//	pricectl kpis --base base.csv --scenario surge.csv
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"ride-pricing-console/internal/actionable"
	"ride-pricing-console/internal/config"
	"ride-pricing-console/internal/logger"
	"ride-pricing-console/internal/pricing"
	"ride-pricing-console/internal/session"
)

var version = "dev"

func main() {
	if err := newApp(config.Load()).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:    "pricectl",
		Usage:   "Operator console for the ride dynamic-pricing engine",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api-base",
				Value: cfg.APIBase,
				Usage: "Pricing engine base URL",
			},
			&cli.DurationFlag{
				Name:  "single-timeout",
				Value: cfg.SingleTimeout,
				Usage: "Timeout for single recommendations",
			},
			&cli.DurationFlag{
				Name:  "batch-timeout",
				Value: cfg.BatchTimeout,
				Usage: "Timeout for batch uploads and KPI comparisons",
			},
			&cli.DurationFlag{
				Name:  "health-timeout",
				Value: cfg.HealthTimeout,
				Usage: "Timeout for health checks",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"PRICECTL_LOG_LEVEL"},
			},
		},

		Commands: []*cli.Command{
			healthCommand(),
			recommendCommand(),
			batchCommand(),
			kpisCommand(),
		},
	}
}

// newController builds a session against the engine named by the global flags.
func newController(c *cli.Context) *session.Controller {
	log := logger.NewWith(cfgEnvironment(), c.String("log-level"))
	log.Logger.SetOutput(os.Stderr)
	client := pricing.New(c.String("api-base"), pricing.Options{
		SingleTimeout: c.Duration("single-timeout"),
		BatchTimeout:  c.Duration("batch-timeout"),
		HealthTimeout: c.Duration("health-timeout"),
		Logger:        log,
	})
	return session.New(client, log)
}

func cfgEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "local"
}

// failure turns an action error into a cli exit with the user-facing message.
func failure(err error) error {
	return cli.Exit(actionable.ErrorNotice(pricing.Message(err)).Text, 1)
}

func since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
