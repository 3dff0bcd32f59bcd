package sink

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset classifies an output encoding name.
type Charset int

const (
	// CharsetUTF8 needs no conversion.
	CharsetUTF8 Charset = iota
	// CharsetUTF16LE and CharsetUTF16BE are fed from the code-unit writer.
	CharsetUTF16LE
	CharsetUTF16BE
	// CharsetLegacy is transcoded from UTF-8 through x/text.
	CharsetLegacy
)

// ParseCharset resolves a WHATWG encoding label ("utf-8", "utf-16le",
// "windows-1252", "shift_jis", ...). The empty name means UTF-8.
func ParseCharset(name string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return CharsetUTF8, nil
	case "utf-16", "utf-16le", "utf16le":
		return CharsetUTF16LE, nil
	case "utf-16be", "utf16be":
		return CharsetUTF16BE, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return 0, fmt.Errorf("sink: unknown encoding %q: %w", name, err)
	}
	if enc == unicode.UTF8 {
		return CharsetUTF8, nil
	}
	return CharsetLegacy, nil
}

// Encode returns a writer that transcodes the UTF-8 written to it into the
// named charset. Characters the charset cannot represent are replaced with
// its substitution character. Close flushes any buffered tail; it does not
// close w.
func Encode(w io.Writer, name string) (io.WriteCloser, error) {
	cs, err := ParseCharset(name)
	if err != nil {
		return nil, err
	}
	var enc encoding.Encoding
	switch cs {
	case CharsetUTF8:
		return nopCloser{w}, nil
	case CharsetUTF16LE:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case CharsetUTF16BE:
		enc = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	default:
		if enc, err = htmlindex.Get(name); err != nil {
			return nil, fmt.Errorf("sink: unknown encoding %q: %w", name, err)
		}
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder())), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
