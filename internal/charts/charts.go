// Package charts renders trend reports as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"bilancio/internal/reports"
	"bilancio/internal/theme"
)

var ErrNoData = errors.New("no data points to chart")

// CashFlowPNG draws income, expenses and net balance per month over
// the report window, colored from the active palette.
func CashFlowPNG(report reports.TrendReport, pal theme.Palette) ([]byte, error) {
	if len(report.CashFlow) == 0 {
		return nil, ErrNoData
	}

	n := len(report.CashFlow)
	xValues := make([]float64, n)
	incomeValues := make([]float64, n)
	expenseValues := make([]float64, n)
	netValues := make([]float64, n)
	for i, p := range report.CashFlow {
		xValues[i] = float64(i)
		incomeValues[i] = p.Income.Units()
		expenseValues[i] = p.Expenses.Units()
		netValues[i] = p.Net.Units()
	}

	labels := report.Labels
	graph := chart.Chart{
		Width:  1200,
		Height: 600,
		Background: chart.Style{
			Padding:   chart.Box{Top: 50, Left: 50, Right: 50, Bottom: 50},
			FillColor: chart.ColorWhite,
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				f, ok := v.(float64)
				if !ok {
					return ""
				}
				i := int(f)
				if float64(i) != f || i < 0 || i >= len(labels) {
					return ""
				}
				return labels[i]
			},
			Style: chart.Style{FontSize: 12, FontColor: chart.ColorBlack},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
			Style: chart.Style{FontSize: 12, FontColor: chart.ColorBlack},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Income",
				XValues: xValues,
				YValues: incomeValues,
				Style:   chart.Style{StrokeColor: colorFromHex(pal.Income), StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "Expenses",
				XValues: xValues,
				YValues: expenseValues,
				Style:   chart.Style{StrokeColor: colorFromHex(pal.Expense), StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "Net",
				XValues: xValues,
				YValues: netValues,
				Style:   chart.Style{StrokeColor: colorFromHex(pal.Net), StrokeWidth: 3},
			},
		},
	}

	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{FontSize: 12, FontColor: chart.ColorBlack}),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render cash flow chart: %w", err)
	}
	return buf.Bytes(), nil
}

func colorFromHex(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
