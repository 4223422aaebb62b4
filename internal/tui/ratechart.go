package tui

import (
	"fmt"

	"github.com/NimbleMarkets/ntcharts/barchart"

	"github.com/eventdeck/eventdeck/internal/format"
)

const rateChartHeight = 4

// renderRateChart draws the per-second event throughput for the last few
// ticks. This is display state owned by the adapter; the core keeps no
// metric history.
func (m *DashboardModel) renderRateChart() string {
	if len(m.rateCounts) == 0 {
		return dimStyle.Render("events/s " + format.Placeholder)
	}

	width := min(len(m.rateCounts)*2, max(m.width-12, 10))
	bc := barchart.New(width, rateChartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	peak := 0
	for _, n := range m.rateCounts {
		if n > peak {
			peak = n
		}
		bc.Push(barchart.BarData{
			Values: []barchart.BarValue{{Name: "events", Value: float64(n), Style: badgeNormalStyle}},
		})
	}
	bc.Draw()

	label := dimStyle.Render(fmt.Sprintf("events/s (peak %d)", peak))
	return label + "\n" + bc.View()
}
