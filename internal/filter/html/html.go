package html

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"l10nkit/internal/encoder"
	"l10nkit/internal/filter"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
	nethtml "golang.org/x/net/html"
)

// Name is the configuration id of the filter.
const Name = "okf_html"

// TypeAttribute prefixes the type of units extracted from attributes.
const TypeAttribute = "x-attr-"

// voidElements never have an end tag; inline ones become placeholders.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

var attrValue = regexp.MustCompile(`(?i)\s([a-z][a-z0-9_:-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// Filter extracts the text flow of HTML documents. Inline elements become
// codes, everything else stays in the skeleton. Entity references are kept
// as written in the extracted text.
type Filter struct {
	filter.Base
	params *Params
}

// New creates an HTML filter. Nil params means defaults.
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
func (f *Filter) MimeType() string { return encoder.MimeHTML }
func (f *Filter) Parameters() any  { return f.params }

// Open decodes doc and extracts all its events.
func (f *Filter) Open(ctx context.Context, doc *resource.RawDocument) error {
	dec, err := filter.DecodeDocument(doc)
	if err != nil {
		return fmt.Errorf("open html %s: %w", doc.URI, err)
	}

	b := filter.NewBuilder(encoder.MimeHTML, f.Log)
	b.Start(filter.NewStartDocument(doc, dec, Name, encoder.MimeHTML, f.params))

	s := &scanner{params: f.params, b: b}
	s.reset()
	if err := s.run(ctx, dec.Text); err != nil {
		return fmt.Errorf("parse html %s: %w", doc.URI, err)
	}
	if err := b.End(); err != nil {
		return err
	}
	f.SetEvents(b.Events())
	return nil
}

type scanner struct {
	params *Params
	b      *filter.Builder

	// The pending text flow and its source text.
	frag *resource.TextFragment
	raw  strings.Builder

	blocks []string
	pre    int
	// rawText is set inside script and style.
	rawText bool
}

func (s *scanner) reset() {
	s.frag = resource.NewTextFragment("")
	s.raw.Reset()
}

func (s *scanner) run(ctx context.Context, text string) error {
	z := nethtml.NewTokenizer(strings.NewReader(text))
	for n := 0; ; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				s.flush()
				return nil
			}
			return fmt.Errorf("%w: %v", filter.ErrBadInput, z.Err())
		}
		raw := string(z.Raw())

		switch tt {
		case nethtml.TextToken:
			if s.rawText {
				s.b.AddSkeleton(raw)
				continue
			}
			s.frag.Append(raw)
			s.raw.WriteString(raw)
		case nethtml.StartTagToken, nethtml.EndTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			s.tag(tt, string(name), raw)
		case nethtml.CommentToken:
			if s.raw.Len() > 0 {
				s.frag.AppendCode(resource.TagPlaceholder, "comment", raw)
				s.raw.WriteString(raw)
				continue
			}
			s.b.AddSkeleton(raw)
		default:
			s.flush()
			s.b.AddSkeleton(raw)
		}
	}
}

func (s *scanner) tag(tt nethtml.TokenType, name, raw string) {
	if s.params.inline[name] {
		tagType := resource.TagPlaceholder
		switch {
		case voidElements[name] || tt == nethtml.SelfClosingTagToken:
		case tt == nethtml.StartTagToken:
			tagType = resource.TagOpening
		default:
			tagType = resource.TagClosing
		}
		s.frag.AppendCode(tagType, name, raw)
		s.raw.WriteString(raw)
		return
	}

	s.flush()
	switch tt {
	case nethtml.StartTagToken:
		s.attributes(name, raw)
		if voidElements[name] {
			return
		}
		s.blocks = append(s.blocks, name)
		switch name {
		case "pre", "textarea":
			s.pre++
		case "script", "style":
			s.rawText = true
		}
	case nethtml.EndTagToken:
		s.b.AddSkeleton(raw)
		for i := len(s.blocks) - 1; i >= 0; i-- {
			if s.blocks[i] == name {
				s.blocks = s.blocks[:i]
				break
			}
		}
		switch name {
		case "pre", "textarea":
			if s.pre > 0 {
				s.pre--
			}
		case "script", "style":
			s.rawText = false
		}
	default:
		s.attributes(name, raw)
	}
}

// attributes writes a start tag to the skeleton, extracting the values of
// translatable attributes as units.
func (s *scanner) attributes(name, raw string) {
	prev := 0
	for _, m := range attrValue.FindAllStringSubmatchIndex(raw, -1) {
		attr := strings.ToLower(raw[m[2]:m[3]])
		if !s.params.attrs[attr] {
			continue
		}
		vs, ve := m[4], m[5]
		if vs < 0 {
			vs, ve = m[6], m[7]
		}
		s.b.AddSkeleton(raw[prev:vs])
		s.b.AddTextUnit(filter.UnitSpec{
			Content: resource.NewTextFragment(raw[vs:ve]),
			Name:    name + "@" + attr,
			Type:    TypeAttribute + attr,
		})
		prev = ve
	}
	s.b.AddSkeleton(raw[prev:])
}

// flush emits the pending text flow. Surrounding whitespace stays in the
// skeleton; a flow without text goes there entirely.
func (s *scanner) flush() {
	if s.raw.Len() == 0 {
		return
	}
	defer s.reset()
	if s.params.finder != nil {
		s.params.finder.Process(s.frag)
	}
	if !s.frag.HasText(false) {
		s.b.AddSkeleton(s.raw.String())
		return
	}

	coded := []rune(s.frag.CodedText())
	start, end := 0, len(coded)
	for start < end && unicode.IsSpace(coded[start]) {
		start++
	}
	for end > start && unicode.IsSpace(coded[end-1]) {
		end--
	}
	spec := filter.UnitSpec{
		Before:             string(coded[:start]),
		After:              string(coded[end:]),
		Content:            s.frag.SubFragment(start, end),
		PreserveWhitespace: s.pre > 0,
	}
	if n := len(s.blocks); n > 0 {
		spec.Type = s.blocks[n-1]
	}
	s.b.AddTextUnit(spec)
}
