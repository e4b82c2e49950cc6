package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/diodescout/internal/measurement"
)

// NewLineChart builds an interactive I-V chart with one line per series.
func NewLineChart(series []measurement.Series, title string) *charts.Line {
	maxV, maxC := maxima(series)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "DiodeScout", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("series=%d", len(series))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Volt (V)", NameLocation: "middle", NameGap: 25, Min: 0, Max: axisMax(maxV)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Milliampere (mA)", NameLocation: "middle", NameGap: 40, Min: 0, Max: axisMax(maxC)}),
	)

	for i, s := range series {
		data := make([]opts.LineData, 0, s.Len())
		for j := 0; j < s.Len(); j++ {
			pt := s.At(j)
			data = append(data, opts.LineData{Value: []interface{}{pt.Voltage, pt.Current}})
		}
		line.AddSeries(fmt.Sprintf("Series %d", i+1), data)
	}
	return line
}

// WriteHTML renders the interactive chart page for series to w.
func WriteHTML(w io.Writer, series []measurement.Series, title string) error {
	return NewLineChart(series, title).Render(w)
}
