package html

import (
	"l10nkit/internal/codefinder"
	"l10nkit/internal/filter"
)

// Params configures the HTML filter.
type Params struct {
	filter.InlineCodes `yaml:",inline"`

	// InlineElements are kept inside units as inline codes. Every other
	// element breaks the text flow.
	InlineElements []string `yaml:"inlineElements"`
	// TranslatableAttributes are extracted from the start tags of
	// non-inline elements.
	TranslatableAttributes []string `yaml:"translatableAttributes"`

	finder *codefinder.Finder
	inline map[string]bool
	attrs  map[string]bool
}

// DefaultInlineElements lists the phrasing elements kept inside units.
var DefaultInlineElements = []string{
	"a", "abbr", "acronym", "b", "bdi", "bdo", "big", "br", "cite", "code", "del", "dfn", "em",
	"font", "i", "img", "ins", "kbd", "mark", "q", "s", "samp", "small", "span", "strike",
	"strong", "sub", "sup", "time", "tt", "u", "var", "wbr",
}

// DefaultParams returns the default parameters.
func DefaultParams() *Params {
	return &Params{
		InlineElements:         DefaultInlineElements,
		TranslatableAttributes: []string{"alt", "title", "placeholder", "summary", "label"},
	}
}

// Validate builds the element and attribute sets and compiles the code
// finder rules.
func (p *Params) Validate() error {
	if len(p.InlineElements) == 0 {
		p.InlineElements = DefaultInlineElements
	}
	p.inline = make(map[string]bool, len(p.InlineElements))
	for _, e := range p.InlineElements {
		p.inline[e] = true
	}
	p.attrs = make(map[string]bool, len(p.TranslatableAttributes))
	for _, a := range p.TranslatableAttributes {
		if a == "" {
			return filter.ConfigError("translatableAttributes: empty name")
		}
		p.attrs[a] = true
	}
	f, err := p.InlineCodes.Compile()
	if err != nil {
		return err
	}
	p.finder = f
	return nil
}
