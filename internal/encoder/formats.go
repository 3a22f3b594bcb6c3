package encoder

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
)

// Options that filter parameter structs may expose to their encoder.
type (
	// ExtendedCharsEscaper is implemented by parameters that ask for
	// non-ASCII characters to be written as \uXXXX.
	ExtendedCharsEscaper interface{ EscapesExtendedChars() bool }
	// LineFeedConverter is implemented by parameters that ask for line
	// feeds and tabs to be written as \n and \t.
	LineFeedConverter interface{ ConvertsLFAndTab() bool }
	// ForwardSlashEscaper is implemented by parameters that ask for "/"
	// to be written as "\/".
	ForwardSlashEscaper interface{ EscapesForwardSlashes() bool }
)

// PropertiesEncoder escapes Java properties values.
type PropertiesEncoder struct {
	base
	escapeExtended bool
	convertLFTab   bool
	charset        encoding.Encoding
}

// NewPropertiesEncoder creates a PropertiesEncoder.
func NewPropertiesEncoder() *PropertiesEncoder {
	return &PropertiesEncoder{convertLFTab: true}
}

func (e *PropertiesEncoder) SetOptions(params any, enc, lineBreak string) {
	e.base.SetOptions(params, enc, lineBreak)
	if p, ok := params.(ExtendedCharsEscaper); ok {
		e.escapeExtended = p.EscapesExtendedChars()
	}
	if p, ok := params.(LineFeedConverter); ok {
		e.convertLFTab = p.ConvertsLFAndTab()
	}
	e.charset, _ = Lookup(enc)
}

func (e *PropertiesEncoder) Encode(text string, ctx Context) string {
	if ctx != ContextText {
		return e.expand(text)
	}
	var sb strings.Builder
	for _, r := range text {
		switch {
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t' && e.convertLFTab:
			sb.WriteString(`\t`)
		case r > 127 && (e.escapeExtended || !Representable(e.charset, r)):
			writeUEscape(&sb, r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func writeUEscape(sb *strings.Builder, r rune) {
	if r > 0xFFFF {
		r1, r2 := utf16Pair(r)
		fmt.Fprintf(sb, `\u%04x\u%04x`, r1, r2)
		return
	}
	fmt.Fprintf(sb, `\u%04x`, r)
}

func utf16Pair(r rune) (rune, rune) {
	r -= 0x10000
	return 0xD800 + (r>>10)&0x3FF, 0xDC00 + r&0x3FF
}

// JSONEncoder escapes JSON string content.
type JSONEncoder struct {
	base
	escapeSlash bool
}

// NewJSONEncoder creates a JSONEncoder.
func NewJSONEncoder() *JSONEncoder { return &JSONEncoder{escapeSlash: true} }

func (e *JSONEncoder) SetOptions(params any, enc, lineBreak string) {
	e.base.SetOptions(params, enc, lineBreak)
	if p, ok := params.(ForwardSlashEscaper); ok {
		e.escapeSlash = p.EscapesForwardSlashes()
	}
}

// Encode escapes text and inline code data alike: codes hold unescaped
// content.
func (e *JSONEncoder) Encode(text string, ctx Context) string {
	if ctx == ContextSkeleton {
		return e.expand(text)
	}
	var sb strings.Builder
	for _, r := range text {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '/':
			if e.escapeSlash {
				sb.WriteString(`\/`)
			} else {
				sb.WriteRune(r)
			}
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}

// HTMLEncoder escapes markup characters in text. Content keeps entity
// references as written, so only a bare "&" is escaped.
type HTMLEncoder struct{ base }

// NewHTMLEncoder creates an HTMLEncoder.
func NewHTMLEncoder() *HTMLEncoder { return &HTMLEncoder{} }

var entityRef = regexp.MustCompile(`^&(?:[a-zA-Z][a-zA-Z0-9]*|#[0-9]+|#[xX][0-9a-fA-F]+);`)

func (e *HTMLEncoder) Encode(text string, ctx Context) string {
	if ctx != ContextText {
		return e.expand(text)
	}
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '&':
			if entityRef.MatchString(text[i:]) {
				sb.WriteByte(c)
			} else {
				sb.WriteString("&amp;")
			}
		case '<':
			sb.WriteString("&lt;")
		case '\n':
			sb.WriteString(e.LineBreak())
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// poEscapeable lists the characters that may follow a backslash in a PO
// string.
const poEscapeable = `\"abfnrtv`

// POEncoder escapes quotes and backslashes that are not already part of an
// escape sequence. Content keeps its escapes as written in the file.
type POEncoder struct{ base }

// NewPOEncoder creates a POEncoder.
func NewPOEncoder() *POEncoder { return &POEncoder{} }

func (e *POEncoder) Encode(text string, ctx Context) string {
	if ctx != ContextText {
		return e.expand(text)
	}
	return EscapeIfNeeded(text)
}

// EscapeIfNeeded escapes a bare quote or a backslash that does not start a
// known escape sequence. Real line feeds become \n.
func EscapeIfNeeded(text string) string {
	var sb strings.Builder
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch r {
		case '\\':
			if i+1 < len(rs) && strings.ContainsRune(poEscapeable, rs[i+1]) {
				sb.WriteRune(r)
				sb.WriteRune(rs[i+1])
				i++
				continue
			}
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// UnescapePO turns the C escapes of a PO string back into characters.
// Unknown escapes are kept as written.
func UnescapePO(text string) string {
	if !strings.ContainsRune(text, '\\') {
		return text
	}
	var sb strings.Builder
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '\\' || i+1 == len(rs) {
			sb.WriteRune(rs[i])
			continue
		}
		i++
		switch rs[i] {
		case 'n':
			sb.WriteRune('\n')
		case 't':
			sb.WriteRune('\t')
		case 'r':
			sb.WriteRune('\r')
		case '"', '\\':
			sb.WriteRune(rs[i])
		default:
			sb.WriteRune('\\')
			sb.WriteRune(rs[i])
		}
	}
	return sb.String()
}

// Representable reports whether charset can encode r. A nil charset means
// a Unicode encoding.
func Representable(charset encoding.Encoding, r rune) bool {
	if charset == nil || !utf8.ValidRune(r) {
		return true
	}
	_, err := charset.NewEncoder().String(string(r))
	return err == nil
}
