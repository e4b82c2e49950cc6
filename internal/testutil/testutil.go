// Package testutil provides shared test helpers and DiodeScout protocol
// fixtures.
package testutil

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// Lines joins lines into a newline-terminated protocol stream.
func Lines(lines ...string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Capture renders complete series the way the instrument sends them: a start
// marker, a metadata comment, one "<volts> <milliamps>" line per point and an
// end marker.
func Capture(series ...[][2]float64) []byte {
	var b strings.Builder
	for _, pts := range series {
		b.WriteString("*\n")
		b.WriteString("* DiodeScout fixture\n")
		for _, p := range pts {
			b.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
			b.WriteByte('\n')
		}
		b.WriteString("#\n")
	}
	return []byte(b.String())
}

// HeaderContains reports whether header key of resp contains substr.
func HeaderContains(resp *http.Response, key, substr string) bool {
	return strings.Contains(resp.Header.Get(key), substr)
}
