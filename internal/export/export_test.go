package export

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/banshee-data/diodescout/internal/fsutil"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/timeutil"
)

func pts(pairs ...[2]float64) measurement.Series {
	ps := make([]measurement.Point, len(pairs))
	for i, p := range pairs {
		ps[i] = measurement.Point{Voltage: p[0], Current: p[1]}
	}
	return measurement.NewSeries(ps...)
}

type fixedSource []measurement.Series

func (f fixedSource) All() []measurement.Series { return f }

func newTestExporter() (*Exporter, *fsutil.MemoryFileSystem) {
	mfs := fsutil.NewMemoryFileSystem()
	return &Exporter{
		FS:     mfs,
		Locale: language.AmericanEnglish,
		Plot:   DefaultPlotOptions(),
		Clock:  timeutil.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}, mfs
}

func TestWriteCSV_English(t *testing.T) {
	var buf bytes.Buffer
	series := []measurement.Series{
		pts([2]float64{0.1, 0.0}, [2]float64{0.5, 1.25}),
		pts([2]float64{1.5, 2.25}),
	}
	require.NoError(t, WriteCSV(&buf, series, language.AmericanEnglish))

	want := "Series 1\n" +
		"Voltage (V);Current (mA)\n" +
		"0.100000;0.000000\n" +
		"0.500000;1.250000\n" +
		"\n" +
		"Series 2\n" +
		"Voltage (V);Current (mA)\n" +
		"1.500000;2.250000\n" +
		"\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV_GermanDecimalComma(t *testing.T) {
	var buf bytes.Buffer
	series := []measurement.Series{pts([2]float64{1.5, 2.25})}
	require.NoError(t, WriteCSV(&buf, series, language.German))
	assert.Contains(t, buf.String(), "1,500000;2,250000\n")
}

func TestWriteCSV_NoGrouping(t *testing.T) {
	var buf bytes.Buffer
	series := []measurement.Series{pts([2]float64{1234.5, -9876.125})}
	require.NoError(t, WriteCSV(&buf, series, language.AmericanEnglish))
	assert.Contains(t, buf.String(), "1234.500000;-9876.125000\n")
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	want := pts([2]float64{0.1234564, -0.5}, [2]float64{0.7, 12.3456789}, [2]float64{-0.25, 3})

	for _, tag := range []language.Tag{language.AmericanEnglish, language.German} {
		t.Run(tag.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, []measurement.Series{want}, tag))

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, 2+want.Len())
			for i, line := range lines[2:] {
				fields := strings.Split(strings.ReplaceAll(line, ",", "."), ";")
				require.Len(t, fields, 2)
				v, err := strconv.ParseFloat(fields[0], 64)
				require.NoError(t, err)
				c, err := strconv.ParseFloat(fields[1], 64)
				require.NoError(t, err)
				assert.InDelta(t, want.At(i).Voltage, v, 5e-7)
				assert.InDelta(t, want.At(i).Current, c, 5e-7)
			}
		})
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, language.AmericanEnglish))
	assert.Empty(t, buf.String())
}

func TestWriteScript(t *testing.T) {
	var buf bytes.Buffer
	series := []measurement.Series{
		pts([2]float64{0.1, 0.0}, [2]float64{0.5, 1.25}),
	}
	require.NoError(t, WriteScript(&buf, series))

	want := `#!/usr/bin/env python3
import matplotlib.pyplot as plt

series = []

# Series 1
voltage_1 = [0.100000, 0.500000]
current_1 = [0.000000, 1.250000]
series.append((voltage_1, current_1))

for i, (v, c) in enumerate(series):
    plt.plot(v, c, label=f'Series {i+1}')

plt.xlabel('Volt (V)')
plt.ylabel('Milliampere (mA)')
plt.legend()
plt.grid(True)
plt.show()
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteScript_EmptyHasHeaderAndFooter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf, nil))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "#!/usr/bin/env python3\n"))
	assert.Contains(t, out, "plt.show()\n")
	assert.NotContains(t, out, "# Series")
}

func TestExporter_ScriptIgnoresLocale(t *testing.T) {
	e, mfs := newTestExporter()
	e.Locale = language.German
	src := fixedSource{pts([2]float64{1.5, 2.25})}

	require.NoError(t, e.Script("out.py", src))
	data, err := mfs.ReadFile("out.py")
	require.NoError(t, err)
	assert.Contains(t, string(data), "voltage_1 = [1.500000]")
	assert.Contains(t, string(data), "current_1 = [2.250000]")
}

func TestExporter_CSVWritesFile(t *testing.T) {
	e, mfs := newTestExporter()
	e.Locale = language.German
	src := fixedSource{pts([2]float64{1.5, 2.25})}

	require.NoError(t, e.CSV("out.csv", src))
	data, err := mfs.ReadFile("out.csv")
	require.NoError(t, err)
	assert.Equal(t, "Series 1\nVoltage (V);Current (mA)\n1,500000;2,250000\n\n", string(data))
}

func TestExporter_CreateFailure(t *testing.T) {
	e, mfs := newTestExporter()
	mfs.CreateErrors = map[string]error{
		"ro/out.csv": os.ErrPermission,
		"ro/out.py":  os.ErrPermission,
		"ro/out.png": os.ErrPermission,
	}
	src := fixedSource{pts([2]float64{1, 1})}

	for name, fn := range map[string]func(string, Source) error{
		"ro/out.csv": e.CSV,
		"ro/out.py":  e.Script,
		"ro/out.png": e.PNG,
	} {
		err := fn(name, src)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, os.ErrPermission), name)
		assert.False(t, mfs.Exists(name), name)
	}
}

func TestExporter_PNGDecodes(t *testing.T) {
	e, mfs := newTestExporter()
	src := fixedSource{
		pts([2]float64{0, 0}, [2]float64{0.6, 0.1}, [2]float64{0.7, 5}),
		pts([2]float64{0, 0}, [2]float64{1.8, 0.2}, [2]float64{2.1, 12}),
	}
	require.NoError(t, e.PNG("chart.png", src))

	data, err := mfs.ReadFile("chart.png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestNewPlot_AxesRoundedToHalf(t *testing.T) {
	p, err := NewPlot([]measurement.Series{pts([2]float64{0.74, 2.1})}, DefaultPlotOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.X.Min)
	assert.Equal(t, 1.0, p.X.Max)
	assert.Equal(t, 2.5, p.Y.Max)
}

func TestNewPlot_EmptyHasUsableAxes(t *testing.T) {
	p, err := NewPlot(nil, DefaultPlotOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.X.Max)
	assert.Equal(t, 0.5, p.Y.Max)
}

func TestPlotOptions_TitleTimestamp(t *testing.T) {
	o := DefaultPlotOptions()
	assert.Equal(t, "I-V Curves", o.title())
	o.Timestamp = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "I-V Curves (2024-05-01 12:30:00)", o.title())
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	series := []measurement.Series{pts([2]float64{0.5, 1.25})}
	require.NoError(t, WriteHTML(&buf, series, "Bench run"))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Series 1")
	assert.Contains(t, out, "Bench run")
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	cs := generateColors(3)
	require.Len(t, cs, 3)
	assert.NotEqual(t, cs[0], cs[1])
	assert.NotEqual(t, cs[1], cs[2])
}

func TestParseLocale(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"", language.AmericanEnglish},
		{"C", language.AmericanEnglish},
		{"POSIX", language.AmericanEnglish},
		{"C.UTF-8", language.AmericanEnglish},
		{"de_DE.UTF-8", language.MustParse("de-DE")},
		{"fr_FR@euro", language.MustParse("fr-FR")},
		{"en-GB", language.BritishEnglish},
		{"!!", language.AmericanEnglish},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLocale(tt.in))
		})
	}
}

func TestHostLocale_Precedence(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_NUMERIC", "de_DE.UTF-8")
	t.Setenv("LANG", "fr_FR.UTF-8")
	assert.Equal(t, language.MustParse("de-DE"), HostLocale())

	t.Setenv("LC_ALL", "C")
	assert.Equal(t, language.AmericanEnglish, HostLocale())
}
