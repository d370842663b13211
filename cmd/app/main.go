// tripquote prices a flight leg: live from the provider when it is healthy,
// otherwise from the distance-based fallback estimate.
//
// Usage:
//
//	tripquote quote --from LON --to PAR --depart 2026-06-01 --travelers 2
//	tripquote estimate --distance 4000 --travelers 2 --preference fast
//	tripquote distance --from-lat 51.47 --from-lon -0.45 --to-lat 49.0 --to-lon 2.55
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/Domenick1991/tripquote/config"
	"github.com/Domenick1991/tripquote/internal/bootstrap"
	"github.com/Domenick1991/tripquote/internal/domain"
	"github.com/Domenick1991/tripquote/internal/fallback"
	"github.com/Domenick1991/tripquote/internal/logger"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "tripquote",
		Usage:   "Resilient flight price estimates",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "Path to the YAML config",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level override (debug, info, warn, error)",
				EnvVars: []string{"TRIPQUOTE_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			quoteCommand(),
			estimateCommand(),
			distanceCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults plus environment when the file is absent.
func loadConfig(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		cfg.ApplyEnv()
		err = cfg.Validate()
	}
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, logger.New(cfg.Log), nil
}

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Quote a flight through cache, circuit breaker and provider",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Origin IATA code", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Destination IATA code", Required: true},
			&cli.StringFlag{Name: "depart", Usage: "Departure date (YYYY-MM-DD)", Required: true},
			&cli.StringFlag{Name: "return", Usage: "Return date (YYYY-MM-DD)"},
			&cli.IntFlag{Name: "travelers", Aliases: []string{"n"}, Value: 1, Usage: "Number of travelers (1-6)"},
			&cli.StringFlag{Name: "preference", Value: "balanced", Usage: "cheap, balanced or fast"},
			&cli.Float64Flag{Name: "distance", Usage: "Great-circle distance in km, used by the fallback estimate"},
			&cli.StringFlag{Name: "client-id", Usage: "Provider client id", EnvVars: []string{"AMADEUS_CLIENT_ID"}},
			&cli.StringFlag{Name: "client-secret", Usage: "Provider client secret", EnvVars: []string{"AMADEUS_CLIENT_SECRET"}},
		},
		Action: runQuote,
	}
}

func runQuote(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("client-id"); v != "" {
		cfg.Pricing.ClientID = v
	}
	if v := c.String("client-secret"); v != "" {
		cfg.Pricing.ClientSecret = v
	}

	req, err := quoteRequest(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn().Err(err).Msg("close resources")
		}
	}()

	result, err := app.Quotes.Quote(ctx, req)
	if err != nil {
		return err
	}
	return printResult(result)
}

func quoteRequest(c *cli.Context) (domain.QuoteRequest, error) {
	pref, err := domain.ParsePreference(c.String("preference"))
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	start, err := domain.ParseDate(c.String("depart"))
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("--depart: %w", err)
	}
	end, err := domain.ParseDate(c.String("return"))
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("--return: %w", err)
	}
	return domain.QuoteRequest{
		Origin:      c.String("from"),
		Destination: c.String("to"),
		StartDate:   start,
		EndDate:     end,
		Travelers:   c.Int("travelers"),
		Preference:  pref,
		DistanceKm:  c.Float64("distance"),
	}, nil
}

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Distance-based estimate without calling the provider",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "distance", Usage: "Great-circle distance in km", Required: true},
			&cli.IntFlag{Name: "travelers", Aliases: []string{"n"}, Value: 1, Usage: "Number of travelers (1-6)"},
			&cli.StringFlag{Name: "preference", Value: "balanced", Usage: "cheap, balanced or fast"},
		},
		Action: func(c *cli.Context) error {
			pref, err := domain.ParsePreference(c.String("preference"))
			if err != nil {
				return err
			}
			n := c.Int("travelers")
			if n < domain.MinTravelers || n > domain.MaxTravelers {
				return &domain.ValidationError{Field: "travelers", Reason: fmt.Sprintf("must be between %d and %d", domain.MinTravelers, domain.MaxTravelers)}
			}
			return printResult(fallback.Estimate(c.Float64("distance"), n, pref))
		},
	}
}

func distanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "distance",
		Usage: "Great-circle distance in km between two coordinates",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "from-lat", Required: true},
			&cli.Float64Flag{Name: "from-lon", Required: true},
			&cli.Float64Flag{Name: "to-lat", Required: true},
			&cli.Float64Flag{Name: "to-lon", Required: true},
		},
		Action: func(c *cli.Context) error {
			d := fallback.DistanceKm(c.Float64("from-lat"), c.Float64("from-lon"), c.Float64("to-lat"), c.Float64("to-lon"))
			fmt.Fprintf(c.App.Writer, "%.1f km\n", d)
			return nil
		},
	}
}

type resultView struct {
	domain.QuoteResult
	DataSource string `json:"data_source"`
}

func printResult(r domain.QuoteResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resultView{QuoteResult: r, DataSource: r.DataSource()})
}
