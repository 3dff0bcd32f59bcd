// Package header builds the CSV header row once per registered projection.
package header

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Row is a header line in both output widths. Both slices end with '\n' and
// are never modified after Build returns.
type Row struct {
	Bytes []byte
	Units []uint16
}

// Build joins names with delim and terminates the line. With lowerFirst set,
// only the first character of each name is lower-cased, so "IPAddress"
// becomes "iPAddress". A name containing delim, '"', '\r' or '\n' is quoted
// with embedded quotes doubled, whatever the record quote policy; every other
// name is written verbatim.
func Build(names []string, delim rune, lowerFirst bool) Row {
	lower := cases.Lower(language.Und)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteRune(delim)
		}
		if lowerFirst && name != "" {
			_, size := utf8.DecodeRuneInString(name)
			name = lower.String(name[:size]) + name[size:]
		}
		if needsQuotes(name, delim) {
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(name, `"`, `""`))
			sb.WriteByte('"')
			continue
		}
		sb.WriteString(name)
	}
	sb.WriteByte('\n')

	line := sb.String()
	return Row{
		Bytes: []byte(line),
		Units: utf16.Encode([]rune(line)),
	}
}

func needsQuotes(name string, delim rune) bool {
	return strings.ContainsRune(name, delim) || strings.ContainsAny(name, "\"\r\n")
}
