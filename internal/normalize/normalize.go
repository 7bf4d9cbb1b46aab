// Package normalize converts heterogeneous retail price text into
// comparable float values.
//
// Price strings in the wild mix thousands and decimal punctuation
// inconsistently ("1.234,56" vs "1,234.56"). Rather than guessing locale,
// ExtractNumber commits to the first separator character encountered as
// the true decimal mark and discards every later one as noise. This is a
// deliberate heuristic, not a locale-aware parser.
package normalize

import (
	"strconv"
	"strings"
)

// cleaner strips currency symbols and whitespace. The per-unit suffix must
// come before the bare euro sign so the longer match wins.
var cleaner = strings.NewReplacer(
	"€/τεμ.", "",
	"€", "",
	" ", "",
	"\n", "",
	"\t", "",
)

// Clean strips currency symbols and whitespace from price text, rewrites
// the first comma to a decimal point, and parses the remainder. It returns
// false when the input is empty or does not reduce to a number.
func Clean(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	cleaned := cleaner.Replace(text)
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractNumber scans text left to right keeping digits verbatim. The
// first comma is kept as the decimal separator; later commas are dropped.
// A literal decimal point is accepted as the separator only while none has
// been recorded yet, and is rewritten to a comma so the output always
// feeds Clean. Points seen after a separator are dropped.
func ExtractNumber(text string) string {
	var b strings.Builder
	sepSeen := false
	for _, ch := range text {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == ',':
			if !sepSeen {
				sepSeen = true
				b.WriteRune(',')
			}
		case ch == '.':
			if !sepSeen {
				sepSeen = true
				b.WriteRune(',')
			}
		}
	}
	return b.String()
}
