package format

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DateLayout renders dates as DD-MM-YY.
const DateLayout = "02-01-06"

var printer = message.NewPrinter(language.English)

// Date formats an ISO date (or RFC 3339 timestamp). Unparseable input is
// returned unchanged.
func Date(raw string) string {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.Format(DateLayout)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(DateLayout)
	}
	return raw
}

// Money groups thousands, e.g. 2500 -> "2,500".
func Money(n int) string {
	return printer.Sprintf("%d", n)
}

// ParsePrice reads a price typed with optional thousands separators.
func ParsePrice(raw string) (int, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, false
	}
	return n, true
}
