// Command csvbench serializes a synthetic record set covering every cell kind
// and reports throughput for the UTF-8 and UTF-16 paths.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"recordcsv/internal/sink"
	"recordcsv/pkg/serializer"
)

// label has only a String method.
type label struct{ s string }

func (l label) String() string { return l.s }

type record struct {
	Int8    int8
	Uint8   uint8
	Int16   int16
	Int32   int32
	Int64   int64
	Uint16  uint16
	Uint32  uint32
	Uint64  uint64
	Float32 float32
	Float64 float64
	Amount  pgtype.Numeric
	Text    string
	At      time.Time
	OK      bool
	ID      uuid.UUID

	NInt      *int32
	NInt64    *int64
	NFloat    *float64
	NAmount   pgtype.Numeric
	NAt       *time.Time
	NOK       *bool
	Label     label
	NLabel    *label
	Untouched *label
}

var epoch = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

func populate(v int) record {
	f := func(i int) float64 { return float64(v+i*2) + float64(v+i)/100*(math.E-2) }
	i32 := int32(f(16))
	i64 := int64(f(17))
	fl := f(18)
	at := epoch.Add(time.Duration(f(20) * float64(24*time.Hour)))
	ok := v%2 == 0
	return record{
		Int8:    int8(v % 100),
		Uint8:   uint8(v % 200),
		Int16:   int16(f(2)),
		Int32:   int32(f(3)),
		Int64:   int64(f(4)) * 1_000_003,
		Uint16:  uint16(f(5)),
		Uint32:  uint32(f(6)),
		Uint64:  uint64(f(7)) << 20,
		Float32: float32(f(8)),
		Float64: f(9),
		Amount:  pgtype.Numeric{Int: big.NewInt(int64(f(10) * 10000)), Exp: -4, Valid: true},
		Text:    "value " + strconv.Itoa(v),
		At:      epoch.Add(time.Duration(f(12) * float64(24*time.Hour))),
		OK:      ok,
		ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(strconv.Itoa(v))),

		NInt:    &i32,
		NInt64:  &i64,
		NFloat:  &fl,
		NAmount: pgtype.Numeric{Int: big.NewInt(int64(v)), Exp: -2, Valid: v%3 != 0},
		NAt:     &at,
		NOK:     &ok,
		Label:   label{"here is a long string that should keep the ascii fast path fast, after all that's what matters?"},
		NLabel:  &label{"quoted, \"sometimes\""},
	}
}

func main() {
	var (
		rows    = flag.Int("n", 100, "distinct records")
		repeat  = flag.Int("repeat", 10000, "times the record set is repeated")
		outDir  = flag.String("out", os.TempDir(), "output directory")
		minimal = flag.Bool("minimal", false, "quote textual cells only when needed")
	)
	flag.Parse()

	data := make([]record, *rows)
	for i := range data {
		data[i] = populate(i)
	}
	seq := func(yield func(record) bool) {
		for r := 0; r < *repeat; r++ {
			for i := range data {
				if !yield(data[i]) {
					return
				}
			}
		}
	}

	quote := serializer.QuoteAlways
	if *minimal {
		quote = serializer.QuoteMinimal
	}
	s := serializer.New(serializer.WithQuote(quote))
	if err := s.Add(serializer.Map(func(r record) record { return r })); err != nil {
		log.Fatalf("register: %v", err)
	}
	total := int64(*rows) * int64(*repeat)
	log.Printf("csvbench: records=%s quote=%s", humanize.Comma(total), quote)

	run("utf-8", filepath.Join(*outDir, "csvbench-utf8.csv"), total, func(w io.Writer) error {
		return s.Write(w, seq)
	})
	run("utf-16le", filepath.Join(*outDir, "csvbench-utf16.csv"), total, func(w io.Writer) error {
		return s.Write(sink.NewUTF16Writer(w, false, true), seq)
	})
}

func run(name, path string, records int64, write func(io.Writer) error) {
	f, err := sink.Create(path, 0)
	if err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	d := sink.NewDigest(f)
	start := time.Now()
	werr := write(d)
	cerr := f.Close()
	elapsed := time.Since(start)
	if werr != nil || cerr != nil {
		log.Fatalf("%s: write=%v close=%v", name, werr, cerr)
	}
	fmt.Printf("%-9s %12s records  %10s  %10s  %14s rec/s  xxh3=%016x  %s\n",
		name,
		humanize.Comma(records),
		humanize.Bytes(uint64(d.Bytes())),
		elapsed.Truncate(time.Microsecond),
		humanize.Comma(int64(float64(records)/max(elapsed.Seconds(), 1e-9))),
		d.Sum64(),
		path,
	)
}
