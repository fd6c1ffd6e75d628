package pipes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dlclark/regexp2"
	"github.com/dustin/go-humanize"
	"github.com/goodsign/monday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sambeau/tether/pkg/tether/values"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown

	patterns sync.Map // pattern -> *regexp2.Regexp
)

func (r *Registry) registerBuiltins() {
	builtins := map[string]Pipe{
		"uppercase": r.uppercase,
		"lowercase": r.lowercase,
		"titlecase": r.titlecase,
		"number":    r.number,
		"percent":   r.percent,
		"currency":  r.currency,
		"date":      r.date,
		"ago":       r.ago,
		"markdown":  markdownPipe,
		"bytes":     bytesPipe,
		"ordinal":   ordinalPipe,
		"comma":     commaPipe,
		"replace":   replacePipe,
		"match":     matchPipe,
		"json":      jsonPipe,
		"default":   defaultPipe,
		"join":      joinPipe,
	}
	for name, p := range builtins {
		r.pipes[name] = p
	}
}

func (r *Registry) tag(name string) (language.Tag, error) {
	tag, err := languageTag(r.opts.Locale)
	if err != nil {
		return language.Und, pipeError(name, "unknown locale "+strconv.Quote(r.opts.Locale))
	}
	return tag, nil
}

// ----------------------------------------------------------------------------
// Text
// ----------------------------------------------------------------------------

func (r *Registry) uppercase(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	tag, err := r.tag("uppercase")
	if err != nil {
		return nil, err
	}
	return cases.Upper(tag).String(values.ToString(input)), nil
}

func (r *Registry) lowercase(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	tag, err := r.tag("lowercase")
	if err != nil {
		return nil, err
	}
	return cases.Lower(tag).String(values.ToString(input)), nil
}

func (r *Registry) titlecase(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	tag, err := r.tag("titlecase")
	if err != nil {
		return nil, err
	}
	return cases.Title(tag).String(values.ToString(input)), nil
}

// ----------------------------------------------------------------------------
// Numbers
// ----------------------------------------------------------------------------

// number formats with locale grouping. An optional argument fixes the number
// of fraction digits.
func (r *Registry) number(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	f, err := toNumber("number", input)
	if err != nil {
		return nil, err
	}
	opts, err := fractionDigits("number", args)
	if err != nil {
		return nil, err
	}
	tag, err := r.tag("number")
	if err != nil {
		return nil, err
	}
	return message.NewPrinter(tag).Sprintf("%v", number.Decimal(f, opts...)), nil
}

// percent formats a ratio, so 0.25 becomes 25%.
func (r *Registry) percent(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	f, err := toNumber("percent", input)
	if err != nil {
		return nil, err
	}
	opts, err := fractionDigits("percent", args)
	if err != nil {
		return nil, err
	}
	tag, err := r.tag("percent")
	if err != nil {
		return nil, err
	}
	return message.NewPrinter(tag).Sprintf("%v", number.Percent(f, opts...)), nil
}

// currency formats an amount in the ISO currency named by the first
// argument (USD when omitted).
func (r *Registry) currency(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	f, err := toNumber("currency", input)
	if err != nil {
		return nil, err
	}
	code, err := stringArg("currency", args, 0, "USD")
	if err != nil {
		return nil, err
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, pipeError("currency", "unknown currency code "+strconv.Quote(code))
	}
	tag, err := r.tag("currency")
	if err != nil {
		return nil, err
	}
	return message.NewPrinter(tag).Sprintf("%v", currency.Symbol(unit.Amount(f))), nil
}

func fractionDigits(name string, args []any) ([]number.Option, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, nil
	}
	d, ok := values.ToInt(args[0])
	if !ok || d < 0 {
		return nil, pipeError(name, "fraction digits must be a non-negative integer, got "+values.Inspect(args[0]))
	}
	return []number.Option{number.MinFractionDigits(d), number.MaxFractionDigits(d)}, nil
}

func bytesPipe(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	n, ok := values.ToInt(input)
	if !ok || n < 0 {
		return nil, pipeError("bytes", "expected a non-negative integer, got "+values.Inspect(input))
	}
	unit, err := stringArg("bytes", args, 0, "si")
	if err != nil {
		return nil, err
	}
	if unit == "iec" {
		return humanize.IBytes(uint64(n)), nil
	}
	return humanize.Bytes(uint64(n)), nil
}

func ordinalPipe(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	n, ok := values.ToInt(input)
	if !ok {
		return nil, pipeError("ordinal", "expected an integer, got "+values.Inspect(input))
	}
	return humanize.Ordinal(n), nil
}

func commaPipe(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	if n, ok := values.ToInt(input); ok {
		return humanize.Comma(int64(n)), nil
	}
	f, err := toNumber("comma", input)
	if err != nil {
		return nil, err
	}
	return humanize.Commaf(f), nil
}

// ----------------------------------------------------------------------------
// Dates
// ----------------------------------------------------------------------------

// date formats a time in a named style (short, medium, long, full, iso) or
// a Go layout. A second argument overrides the locale.
func (r *Registry) date(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	style, err := stringArg("date", args, 0, "medium")
	if err != nil {
		return nil, err
	}
	locale, err := stringArg("date", args, 1, r.opts.Locale)
	if err != nil {
		return nil, err
	}
	t, err := toTime("date", input, locale)
	if err != nil {
		return nil, err
	}
	loc := mondayLocale(locale)
	return monday.Format(t, dateLayout(style, loc), loc), nil
}

// ago renders a time relative to now, e.g. "3 hours ago".
func (r *Registry) ago(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	t, err := toTime("ago", input, r.opts.Locale)
	if err != nil {
		return nil, err
	}
	return humanize.RelTime(t, r.opts.Now(), "ago", "from now"), nil
}

func toTime(name string, input any, locale string) (time.Time, error) {
	switch x := input.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x != nil {
			return *x, nil
		}
	case string:
		t, err := dateparse.ParseIn(x, time.UTC, dateparse.PreferMonthFirst(!dayFirst(locale)))
		if err != nil {
			return time.Time{}, pipeError(name, "cannot parse date "+strconv.Quote(x))
		}
		return t, nil
	}
	if values.IsNumber(input) {
		f, _ := values.ToFloat(input)
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), nil
	}
	return time.Time{}, pipeError(name, "expected a date, got "+values.TypeName(input))
}

// ----------------------------------------------------------------------------
// Markup and patterns
// ----------------------------------------------------------------------------

func markdownPipe(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(values.ToString(input)), &buf); err != nil {
		return nil, pipeError("markdown", err.Error())
	}
	return buf.String(), nil
}

func compilePattern(name, pattern string) (*regexp2.Regexp, error) {
	if cached, ok := patterns.Load(pattern); ok {
		return cached.(*regexp2.Regexp), nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, pipeError(name, "invalid pattern: "+err.Error())
	}
	actual, _ := patterns.LoadOrStore(pattern, re)
	return actual.(*regexp2.Regexp), nil
}

// replacePipe replaces every match of the pattern; `$1` style references
// are expanded in the replacement.
func replacePipe(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	if len(args) < 2 {
		return nil, pipeError("replace", "expects a pattern and a replacement")
	}
	pattern, err := stringArg("replace", args, 0, "")
	if err != nil {
		return nil, err
	}
	re, err := compilePattern("replace", pattern)
	if err != nil {
		return nil, err
	}
	out, err := re.Replace(values.ToString(input), values.ToString(args[1]), -1, -1)
	if err != nil {
		return nil, pipeError("replace", err.Error())
	}
	return out, nil
}

func matchPipe(input any, args ...any) (any, error) {
	if input == nil {
		return false, nil
	}
	if len(args) < 1 {
		return nil, pipeError("match", "expects a pattern")
	}
	pattern, err := stringArg("match", args, 0, "")
	if err != nil {
		return nil, err
	}
	re, err := compilePattern("match", pattern)
	if err != nil {
		return nil, err
	}
	ok, err := re.MatchString(values.ToString(input))
	if err != nil {
		return nil, pipeError("match", err.Error())
	}
	return ok, nil
}

// ----------------------------------------------------------------------------
// Structure
// ----------------------------------------------------------------------------

func jsonPipe(input any, args ...any) (any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, pipeError("json", err.Error())
	}
	return string(data), nil
}

// defaultPipe substitutes its argument for a nil or empty-string input.
func defaultPipe(input any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, pipeError("default", fmt.Sprintf("expects 1 argument, got %d", len(args)))
	}
	if input == nil || input == "" {
		return args[0], nil
	}
	return input, nil
}

func joinPipe(input any, args ...any) (any, error) {
	if input == nil {
		return nil, nil
	}
	sep, err := stringArg("join", args, 0, ", ")
	if err != nil {
		return nil, err
	}
	var parts []string
	switch x := input.(type) {
	case []any:
		parts = make([]string, len(x))
		for i, v := range x {
			parts[i] = values.ToString(v)
		}
	case *values.List:
		parts = make([]string, len(x.Elements))
		for i, v := range x.Elements {
			parts[i] = values.ToString(v)
		}
	case []string:
		parts = x
	default:
		return nil, pipeError("join", "expected a list, got "+values.TypeName(input))
	}
	return strings.Join(parts, sep), nil
}

// ----------------------------------------------------------------------------
// Arguments
// ----------------------------------------------------------------------------

func toNumber(name string, v any) (float64, error) {
	if f, ok := values.ToFloat(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	return 0, pipeError(name, "expected a number, got "+values.Inspect(v))
}

// stringArg returns args[i] as a string, or def when it is absent or nil.
func stringArg(name string, args []any, i int, def string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	s, ok := args[i].(string)
	if !ok {
		return "", pipeError(name, fmt.Sprintf("argument %d must be a string, got %s", i+1, values.TypeName(args[i])))
	}
	return s, nil
}
