package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"ride-pricing-console/internal/actionable"
	"ride-pricing-console/internal/aggregator"
	"ride-pricing-console/internal/dataset"
	"ride-pricing-console/internal/normalize"
	"ride-pricing-console/internal/plot"
	"ride-pricing-console/internal/types"
)

// =============================================================================
// HEALTH COMMAND
// =============================================================================

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the pricing engine is up",
		Action: func(c *cli.Context) error {
			ctrl := newController(c)
			h, err := ctrl.RefreshHealth(c.Context)
			if err != nil {
				return failure(err)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "ok: %t\n", h.OK)
			for k, v := range h.Details {
				fmt.Fprintf(w, "%s: %v\n", k, v)
			}
			if !h.OK {
				return cli.Exit("engine reports not ok", 2)
			}
			return nil
		},
	}
}

// =============================================================================
// RECOMMEND COMMAND
// =============================================================================

func recommendCommand() *cli.Command {
	def := types.DefaultRideRecord()
	return &cli.Command{
		Name:  "recommend",
		Usage: "Get a price recommendation for one ride",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "cost", Value: def.HistoricalCostOfRide, Usage: "Historical cost of ride"},
			&cli.Float64Flag{Name: "duration", Value: def.ExpectedRideDuration, Usage: "Expected ride duration (minutes)"},
			&cli.IntFlag{Name: "riders", Value: def.NumberOfRiders, Usage: "Number of riders"},
			&cli.IntFlag{Name: "drivers", Value: def.NumberOfDrivers, Usage: "Number of drivers"},
			&cli.StringFlag{Name: "vehicle", Value: string(def.VehicleType), Usage: "Vehicle type (Economy, Premium)"},
			&cli.StringFlag{Name: "time", Value: string(def.TimeOfBooking), Usage: "Time of booking (Morning, Afternoon, Evening, Night)"},
			&cli.StringFlag{Name: "location", Value: string(def.LocationCategory), Usage: "Location category (Urban, Suburban, Rural)"},
			&cli.StringFlag{Name: "loyalty", Value: string(def.CustomerLoyaltyStatus), Usage: "Customer loyalty status (Regular, Silver, Gold)"},
			&cli.Float64Flag{Name: "competitor-price", Value: def.CompetitorPrice, Usage: "Competitor price"},
			&cli.StringFlag{
				Name:  "json",
				Usage: "Record as JSON, or @path to read it from a file; overrides the field flags",
			},
		},
		Action: func(c *cli.Context) error {
			rec, err := recordFromFlags(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := rec.Validate(); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ctrl := newController(c)
			res, err := ctrl.SubmitSingle(c.Context, rec)
			if err != nil {
				return failure(err)
			}
			w := c.App.Writer
			fmt.Fprintln(w, actionable.RecommendationNotice(res).Text)
			fmt.Fprintf(w, "Completion probability: %s\n", actionable.Percent(res.PCompleteRecommended))
			fmt.Fprintf(w, "Gross margin: %s%%\n", actionable.Money(res.GMPct))
			fmt.Fprintf(w, "Bounds: %s - %s\n", actionable.Money(res.Bounds.Low), actionable.Money(res.Bounds.High))
			return nil
		},
	}
}

func recordFromFlags(c *cli.Context) (types.RideRecord, error) {
	if src := c.String("json"); src != "" {
		raw := []byte(src)
		if path, ok := strings.CutPrefix(src, "@"); ok {
			b, err := os.ReadFile(path)
			if err != nil {
				return types.RideRecord{}, fmt.Errorf("read %s: %w", path, err)
			}
			raw = b
		}
		var rec types.RideRecord
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rec); err != nil {
			return types.RideRecord{}, fmt.Errorf("invalid record JSON: %w", err)
		}
		return rec, nil
	}
	return types.RideRecord{
		HistoricalCostOfRide:  c.Float64("cost"),
		ExpectedRideDuration:  c.Float64("duration"),
		NumberOfRiders:        c.Int("riders"),
		NumberOfDrivers:       c.Int("drivers"),
		VehicleType:           types.VehicleType(c.String("vehicle")),
		TimeOfBooking:         types.TimeOfBooking(c.String("time")),
		LocationCategory:      types.LocationCategory(c.String("location")),
		CustomerLoyaltyStatus: types.LoyaltyStatus(c.String("loyalty")),
		CompetitorPrice:       c.Float64("competitor-price"),
	}, nil
}

// =============================================================================
// BATCH COMMAND
// =============================================================================

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Upload a CSV or XLSX file of rides for batch recommendation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Rides file (.csv or .xlsx)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "validate",
				Usage: "Check every record locally before uploading",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write results and KPIs to this .xlsx file",
			},
			&cli.StringFlag{
				Name:  "chart",
				Usage: "Write a PNG chart of the successful rows to this file",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("file")
			if c.Bool("validate") {
				if err := validateFile(path); err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}
			upload, err := dataset.PrepareUpload(path)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ctrl := newController(c)
			start := time.Now()
			res, err := ctrl.UploadBatch(c.Context, upload)
			if err != nil {
				return failure(err)
			}
			st := ctrl.Snapshot()

			w := c.App.Writer
			fmt.Fprintf(w, "%s (%s)\n\n", actionable.BatchNotice(res.Summary).Text, since(start))
			printRows(w, st.Rows)
			if len(res.KPIs) > 0 {
				fmt.Fprintln(w)
				printKPIs(w, res.KPIs)
			}
			stats := ctrl.Stats()
			if stats.Price.Count > 0 {
				fmt.Fprintf(w, "\nMean recommended price: %s over %d rows\n", actionable.Money(stats.Price.Value), stats.Price.Count)
			}

			if out := c.String("export"); out != "" {
				if err := dataset.ExportResults(out, st.Rows, res.KPIs); err != nil {
					return cli.Exit(err.Error(), 1)
				}
				fmt.Fprintf(w, "Exported results to %s\n", out)
			}
			if out := c.String("chart"); out != "" {
				if err := writeChart(out, ctrl.ChartPoints()); err != nil {
					return cli.Exit(err.Error(), 1)
				}
				fmt.Fprintf(w, "Wrote chart to %s\n", out)
			}
			return nil
		},
	}
}

func validateFile(path string) error {
	recs, err := dataset.LoadRecords(path)
	if err != nil {
		return err
	}
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func writeChart(path string, points []aggregator.ChartPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := plot.RenderPNG(f, points, plot.Options{Title: "Batch recommendations"}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printRows(w io.Writer, rows []normalize.BatchRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPRICE\tCOMPLETION\tBASELINE\tMARGIN %\tERROR")
	for _, r := range rows {
		if reason, failed := r.Failure(); failed {
			fmt.Fprintf(tw, "%d\t-\t-\t-\t-\t%s\n", r.Index, reason)
			continue
		}
		m, _ := r.Metrics()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", r.Index,
			optional(m.PriceRecommended, actionable.Money),
			optional(m.PCompleteRecommended, actionable.Percent),
			optional(m.PCompleteBaseline, actionable.Percent),
			optional(m.GMPct, actionable.Money),
		)
	}
	tw.Flush()
}

func optional(v *float64, format func(float64) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

// =============================================================================
// KPIS COMMAND
// =============================================================================

func kpisCommand() *cli.Command {
	return &cli.Command{
		Name:  "kpis",
		Usage: "Compare KPIs between a base and a scenario file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Usage: "Base rides file", Required: true},
			&cli.StringFlag{Name: "scenario", Usage: "Scenario rides file", Required: true},
		},
		Action: func(c *cli.Context) error {
			base, err := dataset.PrepareUpload(c.String("base"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			scn, err := dataset.PrepareUpload(c.String("scenario"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ctrl := newController(c)
			kpis, err := ctrl.CompareKPIs(c.Context, base, scn)
			if err != nil {
				return failure(err)
			}
			printKPIs(c.App.Writer, kpis)
			return nil
		},
	}
}

func printKPIs(w io.Writer, kpis types.KPIMap) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KPI\tVALUE\tTONE")
	for _, name := range kpis.Names() {
		v := kpis[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, actionable.Money(v), actionable.KPITone(name, v))
	}
	tw.Flush()
}
