package json

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"l10nkit/internal/encoder"
	"l10nkit/internal/filter"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

// Name is the configuration id of the filter.
const Name = "okf_json"

// Group types of containers.
const (
	GroupTypeObject = "x-json-object"
	GroupTypeList   = "x-json-list"
)

// Filter extracts string values of JSON documents. Comments (/* */,
// <!-- -->, # and //) and single-quoted strings are accepted.
type Filter struct {
	filter.Base
	params     *Params
	subfilters filter.SubfilterFactory
}

// New creates a JSON filter. Nil params means defaults.
func New(params *Params, log zerolog.Logger) (*Filter, error) {
	if params == nil {
		params = DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Filter{Base: filter.NewBase(log), params: params}, nil
}

func (f *Filter) Name() string     { return Name }
func (f *Filter) MimeType() string { return encoder.MimeJSON }
func (f *Filter) Parameters() any  { return f.params }

// SetSubfilterFactory enables delegation to the configured subfilter.
func (f *Filter) SetSubfilterFactory(sf filter.SubfilterFactory) { f.subfilters = sf }

// Open decodes doc and extracts all its events.
func (f *Filter) Open(ctx context.Context, doc *resource.RawDocument) error {
	dec, err := filter.DecodeDocument(doc)
	if err != nil {
		return fmt.Errorf("open json %s: %w", doc.URI, err)
	}

	b := filter.NewBuilder(encoder.MimeJSON, f.Log)
	b.Start(filter.NewStartDocument(doc, dec, Name, encoder.MimeJSON, f.params))

	p := &parser{ctx: ctx, f: f, b: b, doc: doc, text: dec.Text}
	if err := p.document(); err != nil {
		return fmt.Errorf("parse json %s: %w", doc.URI, err)
	}
	if err := b.End(); err != nil {
		return err
	}
	f.SetEvents(b.Events())
	return nil
}

// container is one open object or list.
type container struct {
	// key is the key the container is the value of, "" for none.
	key  string
	list bool
}

type parser struct {
	ctx     context.Context
	f       *Filter
	b       *filter.Builder
	doc     *resource.RawDocument
	text    string
	pos     int
	stack   []container
	key     *string
	section int
}

func (p *parser) errorf(format string, args ...any) error {
	return filter.NewParseError(p.text, p.pos, format, args...)
}

func (p *parser) document() error {
	if err := p.trivia(); err != nil {
		return err
	}
	if p.pos < len(p.text) {
		if err := p.value(); err != nil {
			return err
		}
	}
	if err := p.trivia(); err != nil {
		return err
	}
	if p.pos < len(p.text) {
		return p.errorf("unexpected %q after the top-level value", p.text[p.pos])
	}
	return nil
}

// trivia moves whitespace and comments to the skeleton.
func (p *parser) trivia() error {
	start := p.pos
	for p.pos < len(p.text) {
		rest := p.text[p.pos:]
		switch {
		case rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\f':
			p.pos++
		case strings.HasPrefix(rest, "/*"):
			n, err := p.blockComment(rest)
			if err != nil {
				return err
			}
			p.pos += n
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest, "-->")
			if end < 0 {
				return p.errorf("unterminated comment")
			}
			p.pos += end + 3
		case rest[0] == '#' || strings.HasPrefix(rest, "//"):
			p.pos = lineEnd(p.text, p.pos)
		default:
			p.b.AddSkeleton(p.text[start:p.pos])
			return nil
		}
	}
	p.b.AddSkeleton(p.text[start:p.pos])
	return nil
}

// blockComment returns the length of the possibly nested /* */ comment at
// the start of s.
func (p *parser) blockComment(s string) (int, error) {
	depth := 0
	for i := 0; i+1 < len(s); i++ {
		switch s[i : i+2] {
		case "/*":
			depth++
			i++
		case "*/":
			depth--
			i++
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, p.errorf("unterminated comment")
}

func (p *parser) value() error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	switch c := p.text[p.pos]; c {
	case '{':
		return p.container(false)
	case '[':
		return p.container(true)
	case '"', '\'':
		q := p.pos
		content, err := p.str()
		if err != nil {
			return err
		}
		return p.stringValue(p.text[q+1:p.pos-1], content, string(c), q)
	case '}', ']', ',', ':':
		return p.errorf("unexpected %q", c)
	default:
		sym := p.symbol()
		if sym == "" {
			return p.errorf("unexpected %q", c)
		}
		p.key = nil
		p.b.AddSkeleton(sym)
		return nil
	}
}

func (p *parser) container(list bool) error {
	open, close, typ := "{", "}", GroupTypeObject
	if list {
		open, close, typ = "[", "]", GroupTypeList
	}
	name := ""
	if p.key != nil {
		name = *p.key
	}
	p.key = nil
	p.pos++

	sg := p.b.StartGroup(name, typ, false)
	sg.Skeleton = resource.NewSkeleton(open)
	p.stack = append(p.stack, container{key: name, list: list})

	for {
		if err := p.trivia(); err != nil {
			return err
		}
		if p.pos >= len(p.text) {
			return p.errorf("unterminated %s", strings.TrimPrefix(typ, "x-json-"))
		}
		if p.text[p.pos] == close[0] {
			p.pos++
			break
		}
		if !list {
			if err := p.member(); err != nil {
				return err
			}
		} else if err := p.value(); err != nil {
			return err
		}
		if err := p.trivia(); err != nil {
			return err
		}
		if p.pos < len(p.text) && p.text[p.pos] == ',' {
			p.b.AddSkeleton(",")
			p.pos++
			continue
		}
		if p.pos < len(p.text) && p.text[p.pos] == close[0] {
			p.pos++
			break
		}
		return p.errorf("expected ',' or %q", close)
	}

	p.stack = p.stack[:len(p.stack)-1]
	p.b.AddSkeleton(close)
	return p.b.EndGroup()
}

// member reads a key, the colon and the value of one object entry.
func (p *parser) member() error {
	start := p.pos
	var key string
	switch p.text[p.pos] {
	case '"', '\'':
		k, err := p.str()
		if err != nil {
			return err
		}
		key = k.Text()
	default:
		key = p.symbol()
		if key == "" {
			return p.errorf("expected a key")
		}
	}
	p.b.AddSkeleton(p.text[start:p.pos])

	if err := p.trivia(); err != nil {
		return err
	}
	if p.pos >= len(p.text) || p.text[p.pos] != ':' {
		return p.errorf("expected ':' after key %q", key)
	}
	p.b.AddSkeleton(":")
	p.pos++
	if err := p.trivia(); err != nil {
		return err
	}
	if p.pos >= len(p.text) {
		return p.errorf("missing value for key %q", key)
	}
	p.key = &key
	return p.value()
}

func (p *parser) stringValue(raw string, content *resource.TextFragment, quote string, offset int) error {
	key := p.key
	p.key = nil
	params := p.f.params

	if !params.ExtractStandalone && key == nil {
		p.b.AddSkeleton(quote + raw + quote)
		return nil
	}
	name := p.keyPath(key)
	match := name
	if match == "" && key != nil {
		match = *key
	}
	extract := params.ExtractAllPairs
	if params.exceptions != nil && params.exceptions.MatchString(match) {
		extract = !extract
	}
	if !extract {
		p.b.AddSkeleton(quote + raw + quote)
		return nil
	}

	if params.Subfilter != "" && params.finder == nil && p.f.subfilters != nil && content.HasText(false) {
		return p.subfilter(name, content.Text(), quote)
	}
	if params.finder != nil {
		params.finder.Process(content)
	}
	p.b.AddTextUnit(filter.UnitSpec{
		Before:             quote,
		Content:            content,
		Raw:                raw,
		After:              quote,
		Name:               name,
		Properties:         map[string]string{resource.PropStart: strconv.Itoa(offset + 1)},
		PreserveWhitespace: true,
	})
	return nil
}

func (p *parser) subfilter(name, text, quote string) error {
	sub, err := p.f.subfilters(p.f.params.Subfilter)
	if err != nil {
		return fmt.Errorf("%w: subfilter %q: %v", filter.ErrInvalidConfig, p.f.params.Subfilter, err)
	}
	p.section++
	dpID := p.b.ReserveDocumentPartID()
	res, err := filter.RunSubfilter(p.ctx, sub, text, dpID, p.section, p.doc)
	if err != nil {
		return err
	}
	res.NameUnits(name)
	p.b.AddSubfilterOutput(dpID, res, quote, quote)
	return nil
}

// keyPath names a value. Values of a list take the key of the list unless
// the full path is used.
func (p *parser) keyPath(key *string) string {
	params := p.f.params
	if !params.UseKeyAsName {
		return ""
	}
	if !params.UseFullKeyPath {
		if n := len(p.stack); n > 0 && p.stack[n-1].list {
			return p.stack[n-1].key
		}
		if key == nil {
			return ""
		}
		return *key
	}

	var sb strings.Builder
	for _, c := range p.stack {
		if c.key != "" {
			sb.WriteString("/" + c.key)
		}
	}
	if key != nil && *key != "" {
		sb.WriteString("/" + *key)
	}
	path := sb.String()
	if !params.UseLeadingSlashOnKeyPath {
		path = strings.TrimPrefix(path, "/")
	}
	return path
}

// symbol reads a bare token: number, true, false, null or an unquoted
// key.
func (p *parser) symbol() string {
	start := p.pos
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if strings.IndexByte(" \t\n\f{}[],:\"'#", c) >= 0 ||
			strings.HasPrefix(p.text[p.pos:], "//") || strings.HasPrefix(p.text[p.pos:], "/*") {
			break
		}
		p.pos++
	}
	return p.text[start:p.pos]
}

// str reads the string literal at pos and returns its unescaped content.
// Unknown escapes are logged and replaced by the escaped character.
func (p *parser) str() (*resource.TextFragment, error) {
	q := p.text[p.pos]
	start := p.pos
	var sb strings.Builder
	for i := start + 1; i < len(p.text); i++ {
		c := p.text[i]
		switch {
		case c == q:
			p.pos = i + 1
			return resource.NewTextFragment(sb.String()), nil
		case c == '\n':
			p.pos = start
			return nil, p.errorf("unterminated string")
		case c != '\\':
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(p.text) {
			break
		}
		i++
		switch e := p.text[i]; e {
		case '"', '\\', '/', '\'':
			sb.WriteByte(e)
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'u':
			r, n, ok := decodeU(p.text[i-1:])
			if !ok {
				p.f.Log.Warn().Str("doc", p.doc.URI).Int("offset", i-1).Msg("Invalid \\u escape, kept as-is")
				sb.WriteString(`\u`)
				continue
			}
			sb.WriteRune(r)
			i += n - 2
		default:
			p.f.Log.Warn().Str("doc", p.doc.URI).Int("offset", i-1).Str("escape", string(e)).
				Msg("Unknown escape sequence")
			sb.WriteByte(e)
		}
	}
	p.pos = start
	return nil, p.errorf("unterminated string")
}

// decodeU decodes \uHHHH, with a following low surrogate, at the start of
// s. It returns the rune and the number of bytes read.
func decodeU(s string) (rune, int, bool) {
	v, ok := hex4(s)
	if !ok {
		return 0, 0, false
	}
	r := rune(v)
	if utf16.IsSurrogate(r) {
		if v2, ok := hex4(s[6:]); ok {
			if dec := utf16.DecodeRune(r, rune(v2)); dec != unicode.ReplacementChar {
				return dec, 12, true
			}
		}
	}
	return r, 6, true
}

func hex4(s string) (uint64, bool) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:6], 16, 32)
	return v, err == nil
}

func lineEnd(text string, pos int) int {
	if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(text)
}
