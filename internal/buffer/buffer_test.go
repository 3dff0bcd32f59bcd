package buffer

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

type unitSink struct{ units []uint16 }

func (s *unitSink) WriteUnits(p []uint16) (int, error) {
	s.units = append(s.units, p...)
	return len(p), nil
}

func (s *unitSink) String() string { return string(utf16.Decode(s.units)) }

// both runs fn against a fresh buffer of each width and returns the byte
// output and the UTF-16 output decoded back to a Go string.
func both(tb testing.TB, capacity int, sep rune, quote QuotePolicy, fn func(e Encoder)) (string, string) {
	tb.Helper()

	b := NewBytes(capacity, sep, quote)
	defer b.Release()
	var out bytes.Buffer
	fn(b)
	if err := b.Flush(&out); err != nil {
		tb.Fatalf("flush bytes: %v", err)
	}

	u := NewUnits(capacity, sep, quote)
	defer u.Release()
	var us unitSink
	fn(u)
	if err := u.Flush(&us); err != nil {
		tb.Fatalf("flush units: %v", err)
	}
	return out.String(), us.String()
}

func TestPrimitives(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	cases := []struct {
		name  string
		quote QuotePolicy
		fn    func(e Encoder)
		want  string
	}{
		{"int64 min", QuoteAlways, func(e Encoder) { e.Int64(math.MinInt64) }, "-9223372036854775808"},
		{"int64 max", QuoteAlways, func(e Encoder) { e.Int64(math.MaxInt64) }, "9223372036854775807"},
		{"int64 negative", QuoteAlways, func(e Encoder) { e.Int64(-42) }, "-42"},
		{"int64 zero", QuoteAlways, func(e Encoder) { e.Int64(0) }, "0"},
		{"uint64 max", QuoteAlways, func(e Encoder) { e.Uint64(math.MaxUint64) }, "18446744073709551615"},
		{"float64", QuoteAlways, func(e Encoder) { e.Float64(2.5) }, "2.5"},
		{"float32", QuoteAlways, func(e Encoder) { e.Float32(0.1) }, "0.1"},
		{"nan", QuoteAlways, func(e Encoder) { e.Float64(math.NaN()) }, "NaN"},
		{"bool", QuoteAlways, func(e Encoder) { e.Bool(true); e.Separator(); e.Bool(false) }, "true,false"},
		{"string quoted", QuoteAlways, func(e Encoder) { e.String("abc") }, `"abc"`},
		{"string bare", QuoteMinimal, func(e Encoder) { e.String("abc") }, "abc"},
		{"empty quoted", QuoteAlways, func(e Encoder) { e.String("") }, `""`},
		{"separator forces quote", QuoteMinimal, func(e Encoder) { e.String("b,c") }, `"b,c"`},
		{"newline forces quote", QuoteMinimal, func(e Encoder) { e.String("a\nb") }, "\"a\nb\""},
		{"cr forces quote", QuoteMinimal, func(e Encoder) { e.String("a\rb") }, "\"a\rb\""},
		{"quote doubled", QuoteMinimal, func(e Encoder) { e.String(`say "hi"`) }, `"say ""hi"""`},
		{"only quotes", QuoteAlways, func(e Encoder) { e.String(`""`) }, `""""""`},
		{"text", QuoteAlways, func(e Encoder) { e.Text([]byte("xyz")) }, `"xyz"`},
		{"nil text", QuoteMinimal, func(e Encoder) { e.Text(nil) }, ""},
		{"time offset", QuoteAlways, func(e Encoder) {
			e.TimeOffset(time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("", 3600)))
		}, `"2024-01-02T03:04:05+01:00"`},
		{"time utc", QuoteMinimal, func(e Encoder) {
			e.Time(time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("", 3600)))
		}, "2024-01-02T02:04:05Z"},
		{"uuid", QuoteAlways, func(e Encoder) { e.UUID(id) }, `"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`},
		{"uuid bare", QuoteMinimal, func(e Encoder) { e.UUID(id) }, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"record", QuoteAlways, func(e Encoder) {
			e.Int64(1)
			e.Separator()
			e.String("a")
			e.Terminator()
		}, "1,\"a\"\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotBytes, gotUnits := both(t, 1, ',', tc.quote, tc.fn)
			if gotBytes != tc.want {
				t.Fatalf("bytes: got %q want %q", gotBytes, tc.want)
			}
			if gotUnits != tc.want {
				t.Fatalf("units: got %q want %q", gotUnits, tc.want)
			}
		})
	}
}

func TestInt64RoundTrip(t *testing.T) {
	t.Parallel()

	values := []int64{math.MinInt64, math.MinInt64 + 1, -1, 0, 1, math.MaxInt64}
	for p := int64(1); p < math.MaxInt64/10; p *= 10 {
		values = append(values, p, -p, p-1, -(p - 1))
	}
	for _, v := range values {
		gotBytes, gotUnits := both(t, 1, ',', QuoteAlways, func(e Encoder) { e.Int64(v) })
		for _, got := range []string{gotBytes, gotUnits} {
			back, err := strconv.ParseInt(got, 10, 64)
			if err != nil || back != v {
				t.Fatalf("round trip %d: text %q parsed %d err=%v", v, got, back, err)
			}
		}
	}
}

func TestNonASCII(t *testing.T) {
	t.Parallel()

	s := "héllo, wörld 日本語 🎉"
	gotBytes, gotUnits := both(t, 1, ';', QuoteMinimal, func(e Encoder) { e.String(s) })
	if gotBytes != s {
		t.Fatalf("bytes: got %q want %q", gotBytes, s)
	}
	if gotUnits != s {
		t.Fatalf("units: got %q want %q", gotUnits, s)
	}
}

func TestSurrogatePairs(t *testing.T) {
	t.Parallel()

	u := NewUnits(1, ',', QuoteMinimal)
	defer u.Release()
	u.String("🎉")
	got := u.Written()
	if len(got) != 2 || !utf16.IsSurrogate(rune(got[0])) || !utf16.IsSurrogate(rune(got[1])) {
		t.Fatalf("want one surrogate pair, got %U", got)
	}
}

func TestInvalidUTF8Replaced(t *testing.T) {
	t.Parallel()

	gotBytes, gotUnits := both(t, 1, ',', QuoteMinimal, func(e Encoder) { e.String("a\xffb\xfe") })
	want := "a�b�"
	if gotBytes != want || gotUnits != want {
		t.Fatalf("got bytes=%q units=%q want %q", gotBytes, gotUnits, want)
	}
}

func TestMultiUnitSeparator(t *testing.T) {
	t.Parallel()

	gotBytes, gotUnits := both(t, 1, '😀', QuoteMinimal, func(e Encoder) {
		e.Int64(1)
		e.Separator()
		e.String("x😀y")
		e.Terminator()
	})
	want := "1😀\"x😀y\"\n"
	if gotBytes != want || gotUnits != want {
		t.Fatalf("got bytes=%q units=%q want %q", gotBytes, gotUnits, want)
	}
}

func TestGrowFromOneUnit(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1000)
	gotBytes, gotUnits := both(t, 1, ',', QuoteAlways, func(e Encoder) {
		e.String(long)
		e.Separator()
		e.Int64(7)
		e.Terminator()
	})
	want := `"` + long + `",7` + "\n"
	if gotBytes != want || gotUnits != want {
		t.Fatalf("unexpected output after growth (len bytes=%d units=%d)", len(gotBytes), len(gotUnits))
	}
}

func TestGrowQuoteHeavy(t *testing.T) {
	t.Parallel()

	s := strings.Repeat(`"`, 513)
	gotBytes, gotUnits := both(t, 1, ',', QuoteAlways, func(e Encoder) { e.String(s) })
	want := `"` + strings.Repeat(`""`, 513) + `"`
	if gotBytes != want || gotUnits != want {
		t.Fatalf("doubled quotes lost during growth")
	}
}

func TestGrowPolicy(t *testing.T) {
	t.Parallel()

	b := NewBytes(8, ',', QuoteAlways)
	defer b.Release()
	b.String("abc")
	before := b.Cap()
	b.Grow(1)
	if b.Cap() != before {
		t.Fatalf("Grow with free space changed capacity %d -> %d", before, b.Cap())
	}
	b.Grow(before)
	if b.Cap() < 2*before {
		t.Fatalf("capacity %d, want at least doubled from %d", b.Cap(), before)
	}
	if got := string(b.Written()); got != `"abc"` {
		t.Fatalf("pending span lost on growth: %q", got)
	}
}

func TestFlushResetsCursor(t *testing.T) {
	t.Parallel()

	b := NewBytes(16, ',', QuoteMinimal)
	defer b.Release()

	var out bytes.Buffer
	b.String("a")
	if err := b.Flush(&out); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len after flush = %d", b.Len())
	}
	b.String("b")
	if err := b.Flush(&out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "ab" {
		t.Fatalf("got %q", out.String())
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestFlushError(t *testing.T) {
	t.Parallel()

	b := NewBytes(16, ',', QuoteMinimal)
	defer b.Release()
	b.String("a")
	if err := b.Flush(failWriter{}); err == nil || err.Error() != "disk full" {
		t.Fatalf("want sink error, got %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("cursor not reset after failed flush")
	}
}

func TestUseAfterRelease(t *testing.T) {
	t.Parallel()

	for name, use := range map[string]func(b *Bytes){
		"string": func(b *Bytes) { b.String("x") },
		"int":    func(b *Bytes) { b.Int64(1) },
		"grow":   func(b *Bytes) { b.Grow(1) },
		"flush":  func(b *Bytes) { _ = b.Flush(&bytes.Buffer{}) },
	} {
		name, use := name, use
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b := NewBytes(16, ',', QuoteAlways)
			b.Release()
			b.Release()
			defer func() {
				if r := recover(); r != releasedMsg {
					t.Fatalf("recovered %v, want %q", r, releasedMsg)
				}
			}()
			use(b)
		})
	}
}

func TestCheckSeparator(t *testing.T) {
	t.Parallel()

	for _, r := range []rune{',', ';', '\t', '|', ' ', '😀', '§'} {
		if err := CheckSeparator(r); err != nil {
			t.Fatalf("CheckSeparator(%q): %v", r, err)
		}
	}
	for _, r := range []rune{'"', '\n', '\r', '0', 'e', 'Z', '.', '-', '+', ':', 0xD800, -1} {
		if err := CheckSeparator(r); !errors.Is(err, ErrInvalidSeparator) {
			t.Fatalf("CheckSeparator(%q) = %v, want ErrInvalidSeparator", r, err)
		}
	}
}

func TestPoolClasses(t *testing.T) {
	t.Parallel()

	var p Pool[byte]
	for _, n := range []int{0, 1, 2, 3, 1000, 1 << 20} {
		s := p.Rent(n)
		if len(s) < n {
			t.Fatalf("Rent(%d) returned %d", n, len(s))
		}
		if l := len(s); l&(l-1) != 0 {
			t.Fatalf("Rent(%d) returned non power of two %d", n, l)
		}
		p.Return(s)
	}
	big := p.Rent(1<<maxClass + 1)
	if len(big) != 1<<maxClass+1 {
		t.Fatalf("oversized rent returned %d", len(big))
	}
	p.Return(big)
	p.Return(make([]byte, 3))
}

func BenchmarkRecordBytes(b *testing.B) {
	buf := NewBytes(256, ',', QuoteAlways)
	defer buf.Release()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf.Int64(int64(i))
		buf.Separator()
		buf.String("name, with comma")
		buf.Separator()
		buf.Float64(3.25)
		buf.Separator()
		buf.TimeOffset(ts)
		buf.Terminator()
		if err := buf.Flush(io.Discard); err != nil {
			b.Fatal(err)
		}
	}
}
