package po

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"l10nkit/internal/encoder"
	"l10nkit/internal/filter"
	"l10nkit/internal/resource"
	"l10nkit/internal/textutil"

	"github.com/rs/zerolog"
)

// Name is the configuration id of the filter.
const Name = "okf_po"

// Filter extracts gettext PO files. The msgid strings stay in the
// skeleton; each msgstr is written back from the unit's target.
type Filter struct {
	filter.Base
	params *Params
}

// New creates a PO filter. Nil params means defaults.
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
func (f *Filter) MimeType() string { return encoder.MimePO }
func (f *Filter) Parameters() any  { return f.params }

// Open decodes doc and extracts all its events.
func (f *Filter) Open(ctx context.Context, doc *resource.RawDocument) error {
	dec, err := filter.DecodeDocument(doc)
	if err != nil {
		return fmt.Errorf("open po %s: %w", doc.URI, err)
	}

	stmts, err := scan(dec.Text)
	if err != nil {
		return fmt.Errorf("parse po %s: %w", doc.URI, err)
	}

	b := filter.NewBuilder(encoder.MimePO, f.Log)
	sd := filter.NewStartDocument(doc, dec, Name, encoder.MimePO, f.params)
	sd.IsMultilingual = true
	b.Start(sd)

	p := &parser{f: f, b: b, target: doc.TargetLocale}
	for _, e := range group(stmts) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.emit(e); err != nil {
			return fmt.Errorf("parse po %s: %w", doc.URI, err)
		}
	}
	if err := b.End(); err != nil {
		return err
	}
	f.SetEvents(b.Events())
	return nil
}

// span is the content of one string literal, as offsets into the raw text
// of its statement.
type span struct{ start, end int }

type statement struct {
	// keyword is "msgctxt", "msgid", "msgid_plural", "msgstr" or
	// "msgstr[N]"; "#" for comments and "" for blank lines.
	keyword string
	raw     string
	strs    []span
}

func (s *statement) text() string {
	var sb strings.Builder
	for _, sp := range s.strs {
		sb.WriteString(s.raw[sp.start:sp.end])
	}
	return sb.String()
}

var keywordRe = regexp.MustCompile(`^(msgctxt|msgid_plural|msgid|msgstr(?:\[[0-9]+\])?)[ \t]*"`)

// scan splits text into statements. A keyword statement spans its
// continuation string lines.
func scan(text string) ([]*statement, error) {
	var out []*statement
	pos := 0
	for pos < len(text) {
		end := lineEnd(text, pos)
		line := text[pos:end]
		trimmed := strings.TrimLeft(line, " \t")

		switch {
		case trimmed == "":
			out = append(out, &statement{raw: text[pos:end]})
		case trimmed[0] == '#':
			out = append(out, &statement{keyword: "#", raw: text[pos:end]})
		default:
			m := keywordRe.FindStringSubmatchIndex(trimmed)
			if m == nil {
				return nil, filter.NewParseError(text, pos, "unexpected line %q", textutil.Truncate(line, 40))
			}
			st := &statement{keyword: trimmed[m[2]:m[3]]}
			start := pos
			q := pos + len(line) - len(trimmed) + m[1] - 1
			for {
				sp, err := readString(text, q)
				if err != nil {
					return nil, err
				}
				st.strs = append(st.strs, span{sp.start - start, sp.end - start})
				end = lineEnd(text, sp.end)
				if strings.TrimSpace(text[sp.end+1:end]) != "" {
					return nil, filter.NewParseError(text, sp.end+1, "unexpected text after string")
				}
				if end >= len(text) {
					break
				}
				nextEnd := lineEnd(text, end+1)
				t := strings.TrimLeft(text[end+1:nextEnd], " \t")
				if !strings.HasPrefix(t, `"`) {
					break
				}
				q = nextEnd - len(t)
			}
			st.raw = text[start:end]
			out = append(out, st)
		}
		pos = end
		if pos < len(text) {
			// The line feed ends the statement.
			out[len(out)-1].raw += "\n"
			pos++
		}
	}
	return out, nil
}

// readString reads the string literal whose opening quote is at q.
func readString(text string, q int) (span, error) {
	for i := q + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return span{q + 1, i}, nil
		case '\n':
			return span{}, filter.NewParseError(text, q, "unterminated string")
		}
	}
	return span{}, filter.NewParseError(text, q, "unterminated string")
}

func lineEnd(text string, pos int) int {
	if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(text)
}

// entry is a run of statements ending with the msgstr of one message.
type entry struct {
	stmts []*statement
}

// group cuts statements into entries. Blank lines and comments after a
// msgstr start the next entry.
func group(stmts []*statement) []*entry {
	var out []*entry
	cur := &entry{}
	seenStr := false
	for _, st := range stmts {
		isStr := strings.HasPrefix(st.keyword, "msgstr")
		if seenStr && !isStr {
			out = append(out, cur)
			cur = &entry{}
			seenStr = false
		}
		cur.stmts = append(cur.stmts, st)
		seenStr = seenStr || isStr
	}
	if len(cur.stmts) > 0 {
		out = append(out, cur)
	}
	return out
}

type parser struct {
	f          *Filter
	b          *filter.Builder
	target     resource.LocaleID
	seenHeader bool
}

var languageHeader = regexp.MustCompile(`(?m)Language: *([^\\\n]+)`)

func (p *parser) emit(e *entry) error {
	var (
		preamble strings.Builder
		msgid    *statement
		plural   *statement
		msgctxt  *statement
		strs     []*statement
		notes    []string
		fuzzy    bool
	)
	for _, st := range e.stmts {
		switch {
		case strings.HasPrefix(st.keyword, "msgstr"):
			strs = append(strs, st)
			continue
		case st.keyword == "#":
			c := strings.TrimRight(st.raw, "\n")
			switch {
			case strings.HasPrefix(c, "#,"):
				fuzzy = fuzzy || strings.Contains(c, "fuzzy")
			case strings.HasPrefix(c, "#."), strings.HasPrefix(c, "# "):
				notes = append(notes, strings.TrimSpace(c[2:]))
			}
		case st.keyword == "msgid":
			msgid = st
		case st.keyword == "msgid_plural":
			plural = st
		case st.keyword == "msgctxt":
			msgctxt = st
		}
		preamble.WriteString(st.raw)
	}

	if msgid == nil || len(strs) == 0 {
		for _, st := range e.stmts {
			p.b.AddSkeleton(st.raw)
		}
		return nil
	}
	if msgid.text() == "" && msgctxt == nil {
		if !p.seenHeader {
			p.header(strs[0].text())
		}
		for _, st := range e.stmts {
			p.b.AddSkeleton(st.raw)
		}
		return nil
	}
	if p.target.IsEmpty() {
		p.target = "und"
	}

	var ctxText string
	if msgctxt != nil {
		ctxText = msgctxt.text()
	}
	note := strings.Join(notes, "\n")
	if p.f.params.IncludeMsgContextInNote && ctxText != "" {
		if note != "" {
			note = ctxText + ": " + note
		} else {
			note = ctxText
		}
	}

	if plural == nil {
		p.b.AddSkeleton(preamble.String())
		p.unit(msgid.text(), strs[0], ctxText, note, fuzzy)
		return nil
	}

	sg := p.b.StartGroup("", resource.GroupTypePlurals, false)
	sg.Skeleton = resource.NewSkeleton(preamble.String())
	for i, st := range strs {
		src := msgid.text()
		if i > 0 {
			src = plural.text()
		}
		p.unit(src, st, ctxText, note, fuzzy)
	}
	return p.b.EndGroup()
}

func (p *parser) header(msgstr string) {
	p.seenHeader = true
	if !p.target.IsEmpty() {
		return
	}
	if m := languageHeader.FindStringSubmatch(msgstr); m != nil {
		p.target = resource.NewLocaleID(strings.TrimSpace(m[1]))
	}
}

// unit adds the unit of one msgstr statement. Line joins between string
// literals become codes so the layout round-trips.
func (p *parser) unit(source string, st *statement, ctxText, note string, fuzzy bool) {
	strs := st.strs
	// A leading empty literal is the usual first line of a wrapped string.
	if len(strs) > 1 && strs[0].start == strs[0].end {
		strs = strs[1:]
	}
	first, last := strs[0], strs[len(strs)-1]

	target := resource.NewTextFragment("")
	for i, sp := range strs {
		if i > 0 {
			target.AppendCode(resource.TagPlaceholder, resource.CodeTypeLineBreak, st.raw[strs[i-1].end:sp.start])
		}
		target.Append(st.raw[sp.start:sp.end])
	}

	skel := resource.NewSkeleton(st.raw[:first.start])
	skel.AddTargetPlaceholder(p.target)
	skel.Append(st.raw[last.end:])

	src := resource.NewTextFragment(source)
	if finder := p.f.params.finder; finder != nil {
		finder.Process(src)
		finder.Process(target)
	}

	spec := filter.UnitSpec{
		Skeleton:   skel,
		Content:    src,
		Properties: map[string]string{},
	}
	if note != "" {
		spec.Properties[resource.PropNote] = note
	}
	if ctxText != "" {
		spec.Properties[resource.PropContext] = ctxText
	}
	if p.f.params.MakeID {
		spec.Name = textutil.Hash(ctxText + "\x04" + source)[:16]
	} else if ctxText != "" {
		spec.Name = ctxText
	}
	hasTarget := target.Len() > 0
	if hasTarget {
		spec.Targets = map[resource.LocaleID]*resource.TextFragment{p.target: target}
	}

	tu := p.b.AddTextUnit(spec)
	if !hasTarget {
		return
	}
	approved := "yes"
	if fuzzy {
		approved = "no"
	}
	tu.SetProperty(resource.PropApproved, approved)
	tc := tu.Target(p.target)
	tc.Properties = map[string]string{resource.PropApproved: approved}
	if p.f.params.ProtectApproved && !fuzzy {
		tu.Translatable = false
	}
}
