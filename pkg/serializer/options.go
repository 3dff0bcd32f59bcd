package serializer

type options struct {
	delimiter     rune
	header        bool
	camelCase     bool
	quote         QuotePolicy
	initialBuffer int
}

func defaultOptions() options {
	return options{
		delimiter:     ',',
		header:        true,
		camelCase:     true,
		quote:         QuoteAlways,
		initialBuffer: 256,
	}
}

// Option configures a Serializer.
type Option func(*options)

// WithDelimiter sets the cell separator. It may be any character except the
// double quote, CR, LF, ASCII letters and digits, and '.', '-', '+' or ':'.
// An invalid delimiter makes every Add fail.
func WithDelimiter(r rune) Option {
	return func(o *options) { o.delimiter = r }
}

// WithHeader turns the header line on or off. It is on by default.
func WithHeader(on bool) Option {
	return func(o *options) { o.header = on }
}

// WithCamelCaseHeader lower-cases the first character of each header name. It
// is on by default.
func WithCamelCaseHeader(on bool) Option {
	return func(o *options) { o.camelCase = on }
}

// WithQuote sets when textual cells are quoted. QuoteAlways is the default.
func WithQuote(q QuotePolicy) Option {
	return func(o *options) { o.quote = q }
}

// WithInitialBufferSize sets the minimum initial size, in units, of the
// per-write buffer. The header length is used when it is larger.
func WithInitialBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialBuffer = n
		}
	}
}
