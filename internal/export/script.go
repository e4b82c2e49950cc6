package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/diodescout/internal/measurement"
)

const scriptHeader = `#!/usr/bin/env python3
import matplotlib.pyplot as plt

series = []

`

const scriptFooter = `for i, (v, c) in enumerate(series):
    plt.plot(v, c, label=f'Series {i+1}')

plt.xlabel('Volt (V)')
plt.ylabel('Milliampere (mA)')
plt.legend()
plt.grid(True)
plt.show()
`

// WriteScript emits a matplotlib script holding every series as two list
// literals. Numbers always use '.' as decimal point, whatever the host
// locale, so the output stays valid Python.
func WriteScript(w io.Writer, series []measurement.Series) error {
	var b strings.Builder
	b.WriteString(scriptHeader)
	for i, s := range series {
		idx := strconv.Itoa(i + 1)
		b.WriteString("# Series " + idx + "\n")
		b.WriteString("voltage_" + idx + " = " + pyList(s.Voltages()) + "\n")
		b.WriteString("current_" + idx + " = " + pyList(s.Currents()) + "\n")
		b.WriteString("series.append((voltage_" + idx + ", current_" + idx + "))\n\n")

		// Flush per series so large captures are not held twice in memory.
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		b.Reset()
	}
	b.WriteString(scriptFooter)
	_, err := io.WriteString(w, b.String())
	return err
}

func pyList(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = FormatFixed(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatFixed formats v with 6 fractional digits and a '.' decimal point.
func FormatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
