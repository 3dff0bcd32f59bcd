package header

import (
	"encoding/csv"
	"slices"
	"strings"
	"testing"
	"unicode/utf16"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		names []string
		delim rune
		lower bool
		want  string
	}{
		{"camel", []string{"Id", "Name"}, ',', true, "id,name\n"},
		{"acronym keeps tail", []string{"IPAddress", "URL"}, ',', true, "iPAddress,uRL\n"},
		{"verbatim", []string{"Id", "Name"}, ',', false, "Id,Name\n"},
		{"custom delimiter", []string{"A", "B", "C"}, ';', true, "a;b;c\n"},
		{"non-ascii first rune", []string{"Ärger", "Ωmega"}, '\t', true, "ärger\tωmega\n"},
		{"single column", []string{"Only"}, ',', true, "only\n"},
		{"already lower", []string{"x"}, ',', true, "x\n"},
		{"no columns", nil, ',', true, "\n"},
		{"delimiter in name", []string{"Total, net", "Id"}, ',', true, "\"total, net\",id\n"},
		{"quote in name", []string{`say "hi"`}, ',', false, "\"say \"\"hi\"\"\"\n"},
		{"newline in name", []string{"a\nb", "c\rd"}, ';', false, "\"a\nb\";\"c\rd\"\n"},
		{"other delimiter not quoted", []string{"a,b"}, ';', false, "a,b\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			row := Build(tc.names, tc.delim, tc.lower)
			if got := string(row.Bytes); got != tc.want {
				t.Fatalf("bytes: got %q want %q", got, tc.want)
			}
			if got := string(utf16.Decode(row.Units)); got != tc.want {
				t.Fatalf("units: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestBuildReadsBackAsOneRecord(t *testing.T) {
	t.Parallel()

	names := []string{"total, net", `say "hi"`, "multi\nline", "plain"}
	row := Build(names, ',', false)
	r := csv.NewReader(strings.NewReader(string(row.Bytes)))
	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if len(got) != 1 || !slices.Equal(got[0], names) {
		t.Fatalf("got %q want %q", got, names)
	}
}
