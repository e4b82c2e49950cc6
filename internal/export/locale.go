package export

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// HostLocale derives the numeric locale from LC_ALL, LC_NUMERIC and LANG, in
// that order of precedence.
func HostLocale() language.Tag {
	for _, key := range []string{"LC_ALL", "LC_NUMERIC", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return ParseLocale(v)
		}
	}
	return language.AmericanEnglish
}

// ParseLocale converts a POSIX locale name such as "de_DE.UTF-8@euro" or a
// BCP 47 tag such as "fr-CH" into a language.Tag. "C", "POSIX" and anything
// unparseable map to American English.
func ParseLocale(s string) language.Tag {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	switch s {
	case "", "C", "POSIX":
		return language.AmericanEnglish
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// localizedFormatter renders fixed-point numbers with 6 fractional digits
// using the locale's decimal separator and no grouping.
type localizedFormatter struct {
	p *message.Printer
}

func newLocalizedFormatter(tag language.Tag) localizedFormatter {
	return localizedFormatter{p: message.NewPrinter(tag)}
}

func (f localizedFormatter) format(v float64) string {
	return f.p.Sprint(number.Decimal(v, number.Scale(6), number.NoSeparator()))
}
