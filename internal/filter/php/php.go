package php

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"l10nkit/internal/encoder"
	"l10nkit/internal/filter"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

// Name is the configuration id of the filter.
const Name = "okf_phpcontent"

// Unit types, after the kind of strings a unit is made of.
const (
	TypeSingleQuoted = "x-singlequoted"
	TypeDoubleQuoted = "x-doublequoted"
	TypeHeredoc      = "x-heredoc"
	TypeNowdoc       = "x-nowdoc"
	TypeMixed        = "x-mixed"
)

const mixedNote = "This entry is a concatenation of different types of strings: beware when moving codes or variables."

// Filter extracts the strings of PHP code. The strings of one statement
// are joined into a single unit; the code between them becomes inline
// codes. String content is kept as written, escapes included.
type Filter struct {
	filter.Base
	params *Params
}

// New creates a PHP content filter. Nil params means defaults.
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
func (f *Filter) MimeType() string { return encoder.MimePHP }
func (f *Filter) Parameters() any  { return f.params }

// Open decodes doc and extracts all its events.
func (f *Filter) Open(ctx context.Context, doc *resource.RawDocument) error {
	dec, err := filter.DecodeDocument(doc)
	if err != nil {
		return fmt.Errorf("open php %s: %w", doc.URI, err)
	}

	b := filter.NewBuilder(encoder.MimePHP, f.Log)
	b.Start(filter.NewStartDocument(doc, dec, Name, encoder.MimePHP, f.params))

	s := &scanner{
		f:    f,
		b:    b,
		text: dec.Text,
		dirs: filter.NewDirectives(f.params.DirectivesConfig),
	}
	s.reset()
	if err := s.run(ctx); err != nil {
		return fmt.Errorf("parse php %s: %w", doc.URI, err)
	}
	if err := b.End(); err != nil {
		return err
	}
	f.SetEvents(b.Events())
	return nil
}

// scanner walks the code. Text from start on is not yet emitted; cursor is
// where the next skeleton or inline code span of the pending unit begins.
type scanner struct {
	f    *Filter
	b    *filter.Builder
	text string
	dirs *filter.Directives

	start  int
	cursor int
	skel   strings.Builder
	frag   *resource.TextFragment
	typ    string
	first  int
	// last is the last significant code character before the current one.
	last byte
}

func (s *scanner) reset() {
	s.skel.Reset()
	s.frag = resource.NewTextFragment("")
	s.typ = ""
	s.cursor = s.start
}

func (s *scanner) run(ctx context.Context) error {
	text := s.text
	for i := 0; i < len(text); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		c := text[i]
		switch {
		case strings.HasPrefix(text[i:], "//") || (c == '#' && !strings.HasPrefix(text[i:], "#[")):
			end := lineEnd(text, i)
			s.dirs.Process(text[i:end])
			i = end - 1
			continue
		case strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return filter.NewParseError(text, i, "unterminated comment")
			}
			s.dirs.Process(text[i+2 : i+2+end])
			i += end + 3
			continue
		case c == '\\':
			i++
		case c == '\'' || c == '"':
			end, err := s.quoted(i)
			if err != nil {
				return err
			}
			typ := TypeSingleQuoted
			if c == '"' {
				typ = TypeDoubleQuoted
			}
			s.addString(i, end, typ)
			i = end
		case strings.HasPrefix(text[i:], "<<<"):
			next, err := s.heredoc(i)
			if err != nil {
				return err
			}
			i = next - 1
			continue
		case c == ';' || c == ',' || c == '=':
			s.endStatement(i)
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			s.last = c
		}
	}
	s.endStatement(len(text))
	s.b.AddSkeleton(text[s.start:])
	return nil
}

// quoted returns the position of the quote closing the string at q.
func (s *scanner) quoted(q int) (int, error) {
	for i := q + 1; i < len(s.text); i++ {
		switch s.text[i] {
		case '\\':
			i++
		case s.text[q]:
			return i, nil
		}
	}
	return 0, filter.NewParseError(s.text, q, "unterminated string")
}

// heredoc handles the heredoc or nowdoc opened at pos and returns the
// position after its closing identifier.
func (s *scanner) heredoc(pos int) (int, error) {
	i := pos + 3
	for i < len(s.text) && (s.text[i] == ' ' || s.text[i] == '\t') {
		i++
	}
	lineStart := lineEnd(s.text, i)
	if lineStart >= len(s.text) {
		return 0, filter.NewParseError(s.text, pos, "unterminated heredoc")
	}
	word := strings.TrimSpace(s.text[i:lineStart])
	typ := TypeHeredoc
	key := strings.Trim(word, `"`)
	if strings.HasPrefix(word, "'") {
		typ, key = TypeNowdoc, strings.Trim(word, "'")
	}
	if key == "" {
		return 0, filter.NewParseError(s.text, pos, "missing heredoc identifier")
	}

	// Content runs from after the opening line to the line break before
	// the line holding the closing identifier.
	for nl := lineStart; nl < len(s.text); {
		next := lineEnd(s.text, nl+1)
		line := strings.TrimLeft(s.text[nl+1:next], " \t")
		if strings.HasPrefix(line, key) && !isIdentChar(line[len(key):]) {
			s.addString(lineStart, nl, typ)
			return next - len(line) + len(key), nil
		}
		nl = next
	}
	return 0, filter.NewParseError(s.text, pos, "unterminated heredoc %q", key)
}

func isIdentChar(rest string) bool {
	if rest == "" {
		return false
	}
	c := rest[0]
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// addString adds the string whose delimiters are at open and close to the
// pending unit. Array indexes and empty strings stay in the code.
func (s *scanner) addString(open, close int, typ string) {
	if s.last == '[' || close <= open+1 {
		return
	}
	content := s.text[open+1 : close]

	pre := s.text[s.cursor : open+1]
	tf := resource.NewTextFragment(content)
	if s.f.params.finder != nil {
		s.f.params.finder.Process(tf)
	}

	if s.frag.IsEmpty() {
		s.first = open + 1
		s.skel.WriteString(pre)
		if !tf.HasText(true) {
			// Only codes: the string is code as well.
			s.skel.WriteString(content)
			s.cursor = close
			return
		}
	} else {
		s.frag.AppendCode(resource.TagPlaceholder, resource.CodeTypeCode, pre)
	}
	s.frag.AppendFragment(tf)
	switch {
	case s.typ == "":
		s.typ = typ
	case s.typ != typ:
		s.typ = TypeMixed
	}
	s.cursor = close
}

// endStatement emits the pending unit when it holds text that directives
// allow to extract. The statement ends before pos.
func (s *scanner) endStatement(pos int) {
	extract := s.frag.HasText(false)
	if extract {
		if s.dirs.IsWithin() {
			extract = s.dirs.IsLocalizable(true)
		} else {
			extract = s.dirs.LocalizeOutside()
		}
	}
	if !extract {
		s.reset()
		return
	}

	s.b.AddSkeleton(s.skel.String())
	spec := filter.UnitSpec{
		Content:    s.frag,
		After:      s.text[s.cursor:pos],
		Type:       s.typ,
		Properties: map[string]string{resource.PropStart: strconv.Itoa(s.first)},
	}
	if s.typ == TypeMixed {
		spec.Properties[resource.PropNote] = mixedNote
	}
	s.b.AddTextUnit(spec)
	s.start = pos
	s.reset()
}

func lineEnd(text string, pos int) int {
	if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(text)
}
