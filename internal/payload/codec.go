// Package payload builds and picks apart the compact key-value text
// payloads carried by outbox events. Payloads round-trip through at least
// two encode boundaries and may arrive once-escaped inside an outer
// envelope, so extraction tolerates both the literal and the escaped key
// form and never treats malformed input as fatal: a lookup that finds no
// well-formed value simply reports absence and the caller substitutes a
// default.
package payload

import (
	"strconv"
	"strings"
)

// Escape encodes a value for embedding in a payload. The escape set is
// fixed: backslash, double quote, newline, carriage return, tab.
func Escape(input string) string {
	var b strings.Builder
	b.Grow(len(input) + 8)
	for _, ch := range []byte(input) {
		switch ch {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// Object accumulates key-value pairs into a brace-delimited payload.
type Object struct {
	b strings.Builder
	n int
}

// NewObject starts an empty payload object.
func NewObject() *Object {
	return &Object{}
}

func (o *Object) key(name string) {
	if o.n > 0 {
		o.b.WriteByte(',')
	}
	o.n++
	o.b.WriteByte('"')
	o.b.WriteString(name)
	o.b.WriteString(`":`)
}

// Str appends an escaped, quoted string value.
func (o *Object) Str(name, value string) *Object {
	o.key(name)
	o.b.WriteByte('"')
	o.b.WriteString(Escape(value))
	o.b.WriteByte('"')
	return o
}

// Uint appends an unsigned numeric value.
func (o *Object) Uint(name string, value uint64) *Object {
	o.key(name)
	o.b.WriteString(strconv.FormatUint(value, 10))
	return o
}

// Int appends a signed numeric value.
func (o *Object) Int(name string, value int64) *Object {
	o.key(name)
	o.b.WriteString(strconv.FormatInt(value, 10))
	return o
}

// Float appends a floating point value.
func (o *Object) Float(name string, value float64) *Object {
	o.key(name)
	o.b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	return o
}

// Flag appends a boolean as 0/1.
func (o *Object) Flag(name string, value bool) *Object {
	o.key(name)
	if value {
		o.b.WriteByte('1')
	} else {
		o.b.WriteByte('0')
	}
	return o
}

// Obj appends a nested object value.
func (o *Object) Obj(name string, nested *Object) *Object {
	o.key(name)
	o.b.WriteString(nested.String())
	return o
}

// String renders the object with enclosing braces.
func (o *Object) String() string {
	return "{" + o.b.String() + "}"
}

// Envelope wraps an event body in the standard outer envelope:
// {"event":<event>,<key>:{...},"timestamp":<ts>}.
func Envelope(event, key string, body *Object, timestamp int64) string {
	return NewObject().
		Str("event", event).
		Obj(key, body).
		Int("timestamp", timestamp).
		String()
}

// findKeyStart locates the position just past `"key":`, trying the
// literal form first and then the once-escaped form `\"key\":`.
func findKeyStart(source, key string) (int, bool) {
	needle := `"` + key + `":`
	if pos := strings.Index(source, needle); pos >= 0 {
		return pos + len(needle), true
	}
	needle = `\"` + key + `\":`
	if pos := strings.Index(source, needle); pos >= 0 {
		return pos + len(needle), true
	}
	return 0, false
}

// ExtractBlock returns the balanced brace-delimited span following a key.
// The scan tracks nesting depth outside string literals, in-string state,
// and a one-shot escape flag, so braces and quotes inside string values
// cannot miscount depth.
func ExtractBlock(source, key string) (string, bool) {
	pos, ok := findKeyStart(source, key)
	if !ok {
		return "", false
	}

	start := strings.IndexByte(source[pos:], '{')
	if start < 0 {
		return "", false
	}
	start += pos

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(source); i++ {
		ch := source[i]
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return source[start : i+1], true
			}
		}
	}
	return "", false
}

// ExtractString returns the unescaped string value for a key. The opener
// may be a bare quote or an escaped quote (once-nested payloads); the
// value ends at the matching quote form, so an escaped opener terminates
// on the next `\"` rather than a bare quote. Escaped n, r, t, backslash
// and quote map to their control characters; any other escaped character
// passes through literally.
func ExtractString(source, key string) (string, bool) {
	pos, ok := findKeyStart(source, key)
	if !ok {
		return "", false
	}

	for pos < len(source) && isSpace(source[pos]) {
		pos++
	}
	if pos >= len(source) {
		return "", false
	}

	escapedQuotes := false
	switch {
	case source[pos] == '\\' && pos+1 < len(source) && source[pos+1] == '"':
		escapedQuotes = true
		pos += 2
	case source[pos] == '"':
		pos++
	default:
		return "", false
	}

	var value strings.Builder
	escape := false
	for ; pos < len(source); pos++ {
		ch := source[pos]
		if escape {
			if ch == '"' && escapedQuotes {
				return value.String(), true
			}
			switch ch {
			case 'n':
				value.WriteByte('\n')
			case 'r':
				value.WriteByte('\r')
			case 't':
				value.WriteByte('\t')
			case '\\':
				value.WriteByte('\\')
			case '"':
				value.WriteByte('"')
			default:
				value.WriteByte(ch)
			}
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			return value.String(), true
		}
		value.WriteByte(ch)
	}
	return "", false
}

// ExtractNumber returns the trimmed text between a key and the next comma
// or closing brace.
func ExtractNumber(source, key string) (string, bool) {
	pos, ok := findKeyStart(source, key)
	if !ok {
		return "", false
	}
	for pos < len(source) && isSpace(source[pos]) {
		pos++
	}
	end := strings.IndexAny(source[pos:], ",}")
	if end < 0 {
		return "", false
	}
	out := strings.TrimSpace(source[pos : pos+end])
	return out, out != ""
}

// ExtractUint parses a numeric value as uint32.
func ExtractUint(source, key string) (uint32, bool) {
	text, ok := ExtractNumber(source, key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(parsed), true
}

// ExtractInt parses a numeric value as int64.
func ExtractInt(source, key string) (int64, bool) {
	text, ok := ExtractNumber(source, key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// StringOr returns the extracted string or a fallback when absent.
func StringOr(source, key, fallback string) string {
	if value, ok := ExtractString(source, key); ok && value != "" {
		return value
	}
	return fallback
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
