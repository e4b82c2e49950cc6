package export

import (
	"fmt"
	"image/color"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/diodescout/internal/measurement"
)

// PlotOptions controls chart rendering.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	// Timestamp, when non-zero, is appended to the title.
	Timestamp time.Time
}

// DefaultPlotOptions returns an 8x6 inch chart titled "I-V Curves".
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Title:  "I-V Curves",
		Width:  8 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

func (o PlotOptions) title() string {
	if o.Timestamp.IsZero() {
		return o.Title
	}
	return fmt.Sprintf("%s (%s)", o.Title, o.Timestamp.Format("2006-01-02 15:04:05"))
}

// axisMax is the upper bound for an axis whose largest value is v. Both axes
// start at 0 and end on the next half unit.
func axisMax(v float64) float64 {
	m := measurement.RoundUpToHalf(v)
	if m <= 0 {
		return 0.5
	}
	return m
}

func maxima(series []measurement.Series) (v, c float64) {
	for _, s := range series {
		if mv := s.MaxVoltage(); mv > v {
			v = mv
		}
		if mc := s.MaxCurrent(); mc > c {
			c = mc
		}
	}
	return v, c
}

// NewPlot builds the I-V chart for series: one line per series, a grid and
// a legend.
func NewPlot(series []measurement.Series, o PlotOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = o.title()
	p.X.Label.Text = "Volt (V)"
	p.Y.Label.Text = "Milliampere (mA)"

	maxV, maxC := maxima(series)
	p.X.Min, p.X.Max = 0, axisMax(maxV)
	p.Y.Min, p.Y.Max = 0, axisMax(maxC)

	p.Add(plotter.NewGrid())

	colors := generateColors(len(series))
	for i, s := range series {
		pts := make(plotter.XYs, s.Len())
		for j := range pts {
			pt := s.At(j)
			pts[j].X = pt.Voltage
			pts[j].Y = pt.Current
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %d: %w", i+1, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("Series %d", i+1), line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG renders the chart for series as PNG to w.
func WritePNG(w io.Writer, series []measurement.Series, o PlotOptions) error {
	p, err := NewPlot(series, o)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("png canvas: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
