package gather

import (
	"fmt"
	"net/url"
	"strings"

	"histdata/internal/domain"
)

// BuildURL returns the download URL for symbol over r. Months are
// zero-indexed and unpadded; days are two digits. Bounds that are nil are
// left out of the query.
func BuildURL(base, symbol string, r domain.DateRange) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("?ignore=.csv&s=")
	b.WriteString(url.QueryEscape(symbol))
	if r.Start != nil {
		fmt.Fprintf(&b, "&a=%d&b=%02d&c=%d", int(r.Start.Month())-1, r.Start.Day(), r.Start.Year())
	}
	if r.End != nil {
		fmt.Fprintf(&b, "&d=%d&e=%02d&f=%d", int(r.End.Month())-1, r.End.Day(), r.End.Year())
	}
	return b.String()
}
