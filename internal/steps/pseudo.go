package steps

import (
	"context"
	"strings"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"
)

var accented = map[rune]rune{
	'a': 'à', 'b': 'ƀ', 'c': 'ç', 'd': 'ð', 'e': 'é', 'f': 'ƒ', 'g': 'ĝ', 'h': 'ĥ', 'i': 'î', 'j': 'ĵ',
	'k': 'ķ', 'l': 'ļ', 'm': 'ɱ', 'n': 'ñ', 'o': 'ö', 'p': 'þ', 'q': 'ǫ', 'r': 'ŕ', 's': 'š', 't': 'ţ',
	'u': 'û', 'v': 'ṽ', 'w': 'ŵ', 'x': 'ẋ', 'y': 'ý', 'z': 'ž',
	'A': 'À', 'B': 'Ɓ', 'C': 'Ç', 'D': 'Ð', 'E': 'É', 'F': 'Ƒ', 'G': 'Ĝ', 'H': 'Ĥ', 'I': 'Î', 'J': 'Ĵ',
	'K': 'Ķ', 'L': 'Ļ', 'M': 'Ṁ', 'N': 'Ñ', 'O': 'Ö', 'P': 'Þ', 'Q': 'Ǫ', 'R': 'Ŕ', 'S': 'Š', 'T': 'Ţ',
	'U': 'Û', 'V': 'Ṽ', 'W': 'Ŵ', 'X': 'Ẋ', 'Y': 'Ý', 'Z': 'Ž',
}

// PseudoOptions configures a Pseudo step.
type PseudoOptions struct {
	// Locale is the target filled. Defaults to the target locale of the
	// documents.
	Locale resource.LocaleID
	// Expansion lengthens each text by this fraction of its letters, with
	// tildes, to show truncation problems. 0.3 adds 30%.
	Expansion float64
	// Brackets wraps each text in [ and ].
	Brackets bool
}

// Pseudo fills targets with an accented copy of the source. Codes and
// their ids are kept.
type Pseudo struct {
	pipeline.BaseStep
	opts PseudoOptions
	loc  resource.LocaleID
}

// NewPseudo creates the step.
func NewPseudo(opts PseudoOptions) *Pseudo {
	s := &Pseudo{opts: opts, loc: opts.Locale}
	s.StepName = "pseudo-translation"
	s.Handlers = pipeline.Handlers{
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.loc = pick(opts.Locale, e.RawDocument().TargetLocale)
			return e, nil
		},
		TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.translate(e.TextUnit())
			return e, nil
		},
	}
	return s
}

func (s *Pseudo) translate(tu *resource.TextUnit) {
	if !tu.Translatable || tu.IsEmpty() || s.loc.IsEmpty() {
		return
	}
	src := tu.Source
	tc := src.Clone()
	for _, seg := range tc.Segments() {
		seg.Content = PseudoFragment(seg.Content, s.opts)
	}
	tc.Properties = nil
	tu.SetTarget(s.loc, tc)
}

// PseudoFragment returns an accented copy of frag.
func PseudoFragment(frag *resource.TextFragment, opts PseudoOptions) *resource.TextFragment {
	out := frag.Clone()
	coded := []rune(out.CodedText())
	var sb strings.Builder
	letters := 0
	for i := 0; i < len(coded); i++ {
		r := coded[i]
		if resource.IsMarker(r) {
			sb.WriteRune(r)
			sb.WriteRune(coded[i+1])
			i++
			continue
		}
		if a, ok := accented[r]; ok {
			r = a
			letters++
		}
		sb.WriteRune(r)
	}
	text := sb.String()
	if n := int(float64(letters) * opts.Expansion); n > 0 {
		text += strings.Repeat("~", n)
	}
	if opts.Brackets {
		text = "[" + text + "]"
	}
	out.SetCodedText(text, out.Codes())
	return out
}
