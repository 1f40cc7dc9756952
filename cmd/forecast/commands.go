package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/prep"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/report"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/service"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

const dateLayout = "2006-01-02"

// exitPartial is the exit code of a run that was interrupted before every line finished.
const exitPartial = 2

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the analysis and write the report",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "input", Aliases: []string{"i"}, Usage: "Transaction CSV export(s); defaults to the configured database"},
			&cli.StringSliceFlag{Name: "product-line", Usage: "Restrict a database run to these product lines"},
			&cli.StringFlag{Name: "window-start", Usage: "First day considered (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "window-end", Usage: "Last day considered (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Report JSON path, - for stdout", Value: "-"},
			&cli.StringFlag{Name: "suggestions", Usage: "Also write the reorder suggestions CSV to this path"},
			&cli.StringFlag{Name: "source", Usage: "Label stored with the report", Value: "cli"},
		},
		Action: func(c *cli.Context) error {
			a := appFrom(c)

			window, err := parseWindow(c.String("window-start"), c.String("window-end"))
			if err != nil {
				return err
			}

			req := service.RunRequest{
				ProductLines: c.StringSlice("product-line"),
				Window:       window,
				Source:       c.String("source"),
			}
			if inputs := c.StringSlice("input"); len(inputs) > 0 {
				req.Transactions, err = readInputs(a.Forecast, inputs)
				if err != nil {
					return err
				}
			}

			env, runErr := a.Forecast.RunAnalysis(c.Context, req)
			var partial *domain.PartialRunError
			if runErr != nil && !(errors.As(runErr, &partial) && env != nil) {
				return runErr
			}

			if err := writeOutput(c.String("output"), func(w io.Writer) error { return writeJSON(w, env) }); err != nil {
				return err
			}
			if path := c.String("suggestions"); path != "" {
				if err := writeOutput(path, func(w io.Writer) error { return report.WriteSuggestionsCSV(w, env.Report) }); err != nil {
					return err
				}
			}

			if partial != nil {
				return cli.Exit(fmt.Sprintf("run interrupted, %d product lines unprocessed", len(partial.Unprocessed)), exitPartial)
			}
			return nil
		},
	}
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Print the dashboard projection of the latest report",
		Action: func(c *cli.Context) error {
			data, err := appFrom(c).Forecast.Dashboard(c.Context)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, data)
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print the latest report",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "csv", Usage: "Print the reorder suggestions as CSV"},
		},
		Action: func(c *cli.Context) error {
			env, err := appFrom(c).Forecast.LatestReport(c.Context)
			if err != nil {
				return err
			}
			if c.Bool("csv") {
				return report.WriteSuggestionsCSV(c.App.Writer, env.Report)
			}
			return writeJSON(c.App.Writer, env)
		},
	}
}

func stockCommand() *cli.Command {
	return &cli.Command{
		Name:  "stock",
		Usage: "Manage stock levels read by the next run",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Set the stock level of a product line",
				ArgsUsage: "<product line> <quantity>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: forecast stock set <product line> <quantity>", 1)
					}
					qty, err := strconv.Atoi(c.Args().Get(1))
					if err != nil {
						return fmt.Errorf("invalid quantity %q: %w", c.Args().Get(1), err)
					}
					level, err := appFrom(c).Stock.IngestStockLevel(c.Context, c.Args().Get(0), qty)
					if err != nil {
						return err
					}
					return writeJSON(c.App.Writer, level)
				},
			},
			{
				Name:      "stockout",
				Usage:     "Record a stockout; the line's level drops to zero",
				ArgsUsage: "<product line>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "note"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: forecast stock stockout <product line>", 1)
					}
					event, err := appFrom(c).Stock.NotifyStockout(c.Context, c.Args().First(), c.String("note"))
					if err != nil {
						return err
					}
					return writeJSON(c.App.Writer, event)
				},
			},
			{
				Name:  "list",
				Usage: "Print stock levels and stockout events",
				Action: func(c *cli.Context) error {
					a := appFrom(c)
					levels, err := a.Stock.Levels(c.Context)
					if err != nil {
						return err
					}
					events, err := a.Stock.Stockouts(c.Context)
					if err != nil {
						return err
					}
					return writeJSON(c.App.Writer, map[string]interface{}{"levels": levels, "stockouts": events})
				},
			},
		},
	}
}

func parseWindow(start, end string) (prep.Window, error) {
	var w prep.Window
	var err error
	if start != "" {
		if w.Start, err = time.Parse(dateLayout, start); err != nil {
			return w, fmt.Errorf("invalid --window-start: %w", err)
		}
	}
	if end != "" {
		if w.End, err = time.Parse(dateLayout, end); err != nil {
			return w, fmt.Errorf("invalid --window-end: %w", err)
		}
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return w, fmt.Errorf("window end %s is before start %s", end, start)
	}
	return w, nil
}

func readInputs(svc *service.ForecastService, paths []string) ([]domain.TransactionRecord, error) {
	records := []domain.TransactionRecord{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		parsed, malformed, err := svc.ReadFeed(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if malformed > 0 {
			logger.Log.Warn().Str("file", path).Int("malformed", malformed).Msg("skipped malformed rows")
		}
		records = append(records, parsed...)
	}
	return records, nil
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
