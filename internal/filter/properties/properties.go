package properties

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"l10nkit/internal/encoder"
	"l10nkit/internal/filter"
	"l10nkit/internal/resource"
	"l10nkit/internal/textutil"

	"github.com/rs/zerolog"
)

// Name is the configuration id of the filter.
const Name = "okf_properties"

// Filter extracts values of Java-style properties files.
type Filter struct {
	filter.Base
	params     *Params
	subfilters filter.SubfilterFactory
}

// New creates a properties filter. Nil params means defaults.
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
func (f *Filter) MimeType() string { return encoder.MimeProperties }
func (f *Filter) Parameters() any  { return f.params }

// SetSubfilterFactory enables delegation to the configured subfilter.
func (f *Filter) SetSubfilterFactory(sf filter.SubfilterFactory) { f.subfilters = sf }

// Open decodes doc and extracts all its events.
func (f *Filter) Open(ctx context.Context, doc *resource.RawDocument) error {
	dec, err := filter.DecodeDocument(doc)
	if err != nil {
		return fmt.Errorf("open properties %s: %w", doc.URI, err)
	}

	b := filter.NewBuilder(encoder.MimeProperties, f.Log)
	b.Start(filter.NewStartDocument(doc, dec, Name, encoder.MimeProperties, f.params))

	p := &parser{
		f:    f,
		b:    b,
		doc:  doc,
		text: dec.Text,
		dirs: filter.NewDirectives(f.params.DirectivesConfig),
	}
	if err := p.run(ctx); err != nil {
		return fmt.Errorf("parse properties %s: %w", doc.URI, err)
	}
	if err := b.End(); err != nil {
		return err
	}
	f.SetEvents(b.Events())
	return nil
}

type parser struct {
	f       *Filter
	b       *filter.Builder
	doc     *resource.RawDocument
	text    string
	dirs    *filter.Directives
	note    []string
	section int
}

func (p *parser) run(ctx context.Context) error {
	text := p.text
	pos := 0
	for pos < len(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineEnd := lineEndAt(text, pos)
		line := text[pos:lineEnd]
		nl := ""
		if lineEnd < len(text) {
			nl = "\n"
		}
		trimmed := strings.TrimLeft(line, " \t\f")

		if trimmed == "" {
			p.b.AddSkeleton(line + nl)
			p.note = nil
			pos = lineEnd + len(nl)
			continue
		}
		if body, ok := p.comment(trimmed); ok {
			p.dirs.Process(body)
			if p.f.params.CommentsAreNotes {
				p.note = append(p.note, body)
			}
			p.b.AddSkeleton(line + nl)
			pos = lineEnd + len(nl)
			continue
		}

		// Extend the entry over continuation lines.
		end := lineEnd
		for oddTrailingBackslashes(text[pos:end]) && end < len(text) {
			end = lineEndAt(text, end+1)
		}
		nl = ""
		if end < len(text) {
			nl = "\n"
		}
		if err := p.entry(ctx, pos, text[pos:end], len(line)-len(trimmed), nl); err != nil {
			return err
		}
		p.note = nil
		pos = end + len(nl)
	}
	return nil
}

func (p *parser) comment(trimmed string) (string, bool) {
	switch {
	case trimmed[0] == '#' || trimmed[0] == '!':
		return trimmed[1:], true
	case p.f.params.ExtraComments && trimmed[0] == ';':
		return trimmed[1:], true
	case p.f.params.ExtraComments && strings.HasPrefix(trimmed, "//"):
		return trimmed[2:], true
	}
	return "", false
}

// entry handles one logical key/value line starting at offset.
func (p *parser) entry(ctx context.Context, offset int, entry string, lead int, nl string) error {
	// Key ends at the first unescaped separator or whitespace.
	keyEnd := len(entry)
	escaped := false
	for i := lead; i < len(entry); i++ {
		c := entry[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '=' || c == ':' || isSpace(c) {
			keyEnd = i
			break
		}
	}
	key := entry[lead:keyEnd]

	valueStart := keyEnd
	checkSep := true
	for valueStart < len(entry) {
		c := entry[valueStart]
		if checkSep && (c == '=' || c == ':') {
			checkSep = false
			valueStart++
			continue
		}
		if !isSpace(c) {
			break
		}
		valueStart++
	}
	before, value := entry[:valueStart], entry[valueStart:]

	if !p.extract(key) {
		p.b.AddSkeleton(entry + nl)
		return nil
	}

	content := p.unescape(value)
	params := p.f.params

	if params.Subfilter != "" && p.f.subfilters != nil && content.HasText(false) {
		return p.subfilter(ctx, key, content.Text(), before, nl)
	}
	if params.finder != nil {
		params.finder.Process(content)
	}

	props := map[string]string{resource.PropStart: strconv.Itoa(offset + valueStart)}
	if len(p.note) > 0 {
		props[resource.PropNote] = strings.Join(p.note, "\n")
	}
	spec := filter.UnitSpec{
		Before:             before,
		Content:            content,
		Raw:                value,
		After:              nl,
		Name:               key,
		Properties:         props,
		PreserveWhitespace: true,
	}
	if params.IDLikeResname {
		spec.ID = idLike(key)
	}
	p.b.AddTextUnit(spec)
	return nil
}

// extract applies the extraction gates. Directives win over the key
// condition.
func (p *parser) extract(key string) bool {
	if p.dirs.IsWithin() {
		return p.dirs.IsLocalizable(true)
	}
	if re := p.f.params.keyCondition; re != nil {
		if p.f.params.ExtractOnlyMatchingKey {
			return re.MatchString(key)
		}
		return !re.MatchString(key)
	}
	return p.dirs.LocalizeOutside()
}

func (p *parser) subfilter(ctx context.Context, key, text, before, after string) error {
	sub, err := p.f.subfilters(p.f.params.Subfilter)
	if err != nil {
		return fmt.Errorf("%w: subfilter %q: %v", filter.ErrInvalidConfig, p.f.params.Subfilter, err)
	}
	p.section++
	dpID := p.b.ReserveDocumentPartID()
	res, err := filter.RunSubfilter(ctx, sub, text, dpID, p.section, p.doc)
	if err != nil {
		return err
	}
	res.NameUnits(key)
	p.b.AddSubfilterOutput(dpID, res, before, after)
	return nil
}

// unescape builds the content of a value. Line continuations become
// line-break codes holding the backslash, the line feed and the indent of
// the next line.
func (p *parser) unescape(value string) *resource.TextFragment {
	tf := resource.NewTextFragment("")
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			tf.Append(sb.String())
			sb.Reset()
		}
	}

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i+1 >= len(value) {
			sb.WriteByte(c)
			continue
		}
		next := value[i+1]
		switch {
		case next == '\n':
			j := i + 2
			for j < len(value) && isSpace(value[j]) {
				j++
			}
			flush()
			tf.AppendCode(resource.TagPlaceholder, resource.CodeTypeLineBreak, value[i:j])
			i = j - 1
		case next == 'u':
			r, n, ok := decodeU(value[i:])
			if !ok {
				p.f.Log.Warn().Str("doc", p.doc.URI).Str("sequence", textutil.Truncate(value[i:], 6)).
					Msg("Invalid \\u escape, kept as-is")
				sb.WriteString(`\u`)
				i++
				continue
			}
			sb.WriteRune(r)
			i += n - 1
		case (next == 'n' || next == 't') && p.f.params.ConvertLFandTab:
			if next == 'n' {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte('\t')
			}
			i++
		default:
			sb.WriteByte(c)
			sb.WriteByte(next)
			i++
		}
	}
	flush()
	return tf
}

var hex4 = regexp.MustCompile(`^\\u([0-9a-fA-F]{4})`)

// decodeU decodes \uHHHH (and a following low surrogate) at the start of s.
func decodeU(s string) (rune, int, bool) {
	m := hex4.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	v, _ := strconv.ParseUint(m[1], 16, 32)
	r := rune(v)
	if utf16.IsSurrogate(r) {
		if m2 := hex4.FindStringSubmatch(s[6:]); m2 != nil {
			v2, _ := strconv.ParseUint(m2[1], 16, 32)
			if dec := utf16.DecodeRune(r, rune(v2)); dec != unicode.ReplacementChar {
				return dec, 12, true
			}
		}
	}
	return r, 6, true
}

func lineEndAt(text string, pos int) int {
	if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(text)
}

func oddTrailingBackslashes(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\f' }

var notIDChar = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

func idLike(key string) string {
	return notIDChar.ReplaceAllString(key, "_")
}
