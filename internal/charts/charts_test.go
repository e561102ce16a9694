package charts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/reports"
	"bilancio/internal/theme"
)

func TestCashFlowPNG(t *testing.T) {
	report := reports.TrendReport{
		Labels: []string{"January 2025", "February 2025", "March 2025"},
		CashFlow: []reports.CashFlowPoint{
			{Label: "January 2025", Income: core.Money{Cents: 250000}, Expenses: core.Money{Cents: 180000}, Net: core.Money{Cents: 70000}},
			{Label: "February 2025", Income: core.Money{Cents: 250000}, Expenses: core.Money{Cents: 210000}, Net: core.Money{Cents: 40000}},
			{Label: "March 2025", Income: core.Money{Cents: 260000}, Expenses: core.Money{Cents: 150000}, Net: core.Money{Cents: 110000}},
		},
	}

	png, err := CashFlowPNG(report, theme.Resolve("light"))
	require.NoError(t, err)

	// PNG signature.
	assert.True(t, bytes.HasPrefix(png, []byte{0x89, 0x50, 0x4e, 0x47}))
}

func TestCashFlowPNGNoData(t *testing.T) {
	_, err := CashFlowPNG(reports.TrendReport{}, theme.Resolve("dark"))
	assert.ErrorIs(t, err, ErrNoData)
}
