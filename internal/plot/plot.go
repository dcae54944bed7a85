// Package plot draws projected batch points as a PNG line chart.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"ride-pricing-console/internal/aggregator"
)

// ErrNoData is returned when no point carries a plottable value.
var ErrNoData = errors.New("no chart data")

const maxTicks = 20

var (
	colorPrice      = drawing.ColorFromHex("1890ff")
	colorMargin     = drawing.ColorFromHex("52c41a")
	colorCompletion = drawing.ColorFromHex("fa8c16")
)

type Options struct {
	Title  string
	Width  int
	Height int
}

func seriesStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    3,
	}
}

// RenderPNG draws price on the left axis and margin % and completion % on the
// right axis, or on the left one when no point has a price. Missing or
// non-finite values are left out of their series. Nothing is written to w
// unless rendering succeeds.
func RenderPNG(w io.Writer, points []aggregator.ChartPoint, opts Options) error {
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 512
	}

	price := collect("Price", points, func(p aggregator.ChartPoint) *float64 { return p.Price })
	margin := collect("Margin %", points, func(p aggregator.ChartPoint) *float64 { return p.MarginPct })
	completion := collect("Completion %", points, func(p aggregator.ChartPoint) *float64 { return p.CompletionPct })

	var series []chart.Series
	if len(price.XValues) > 0 {
		price.Style = seriesStyle(colorPrice)
		series = append(series, price)
	}
	// percentages share the right axis, or take the left one when there is no price
	pctAxis := chart.YAxisSecondary
	if len(price.XValues) == 0 {
		pctAxis = chart.YAxisPrimary
	}
	var pct []float64
	for _, s := range []struct {
		cs  chart.ContinuousSeries
		col drawing.Color
	}{{margin, colorMargin}, {completion, colorCompletion}} {
		if len(s.cs.XValues) == 0 {
			continue
		}
		s.cs.Style = seriesStyle(s.col)
		s.cs.YAxis = pctAxis
		pct = append(pct, s.cs.YValues...)
		series = append(series, s.cs)
	}
	if len(series) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:  "Ride",
			Range: &chart.ContinuousRange{},
			Ticks: ticks(points),
		},
		Series: series,
	}
	switch {
	case len(price.XValues) > 0:
		lo, hi := bounds(price.YValues)
		ch.YAxis = chart.YAxis{Name: "Price", Range: &chart.ContinuousRange{Min: lo, Max: hi}}
		if len(pct) > 0 {
			lo, hi := bounds(pct)
			ch.YAxisSecondary = chart.YAxis{Name: "%", Range: &chart.ContinuousRange{Min: lo, Max: hi}}
		}
	default:
		lo, hi := bounds(pct)
		ch.YAxis = chart.YAxis{Name: "%", Range: &chart.ContinuousRange{Min: lo, Max: hi}}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	// render fully before writing so a failure never leaves a partial image
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// collect places each point at x = its 1-based position so every series
// shares the projector's labels.
func collect(name string, points []aggregator.ChartPoint, value func(aggregator.ChartPoint) *float64) chart.ContinuousSeries {
	s := chart.ContinuousSeries{Name: name}
	for i, p := range points {
		v := value(p)
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		s.XValues = append(s.XValues, float64(i+1))
		s.YValues = append(s.YValues, *v)
	}
	return s
}

// ticks labels the points and adds unlabelled edge ticks half a step out.
// The chart takes its x range from the tick values, so the edges keep a
// single point from collapsing the axis.
func ticks(points []aggregator.ChartPoint) []chart.Tick {
	step := 1
	if len(points) > maxTicks {
		step = (len(points) + maxTicks - 1) / maxTicks
	}
	out := []chart.Tick{{Value: 0.5}}
	for i := 0; i < len(points); i += step {
		out = append(out, chart.Tick{Value: float64(i + 1), Label: points[i].Label})
	}
	return append(out, chart.Tick{Value: float64(len(points)) + 0.5})
}

// bounds pads the data range so a flat series still has a drawable axis.
func bounds(ys []float64) (float64, float64) {
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.1, 1)
	}
	return lo - pad, hi + pad
}
