package export

import (
	"fmt"
	"io"

	"golang.org/x/text/language"

	"github.com/banshee-data/diodescout/internal/measurement"
)

const (
	csvColumns   = "Voltage (V);Current (mA)"
	csvSeparator = ";"
)

// WriteCSV writes one block per series:
//
//	Series <n>
//	Voltage (V);Current (mA)
//	<v>;<i>
//	...
//	<blank line>
//
// Numbers use the decimal separator of tag, so the table opens directly in
// spreadsheets configured for that locale.
func WriteCSV(w io.Writer, series []measurement.Series, tag language.Tag) error {
	f := newLocalizedFormatter(tag)
	for i, s := range series {
		if _, err := fmt.Fprintf(w, "Series %d\n%s\n", i+1, csvColumns); err != nil {
			return err
		}
		for j := 0; j < s.Len(); j++ {
			p := s.At(j)
			if _, err := io.WriteString(w, f.format(p.Voltage)+csvSeparator+f.format(p.Current)+"\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
