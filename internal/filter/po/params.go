package po

import (
	"l10nkit/internal/codefinder"
	"l10nkit/internal/filter"
)

// Params configures the PO filter.
type Params struct {
	filter.InlineCodes `yaml:",inline"`

	// IncludeMsgContextInNote prefixes the note with the msgctxt value.
	IncludeMsgContextInNote bool `yaml:"includeMsgContextInNote"`
	// ProtectApproved makes entries with a non-fuzzy translation
	// non-translatable.
	ProtectApproved bool `yaml:"protectApproved"`
	// MakeID names each unit with a hash of its context and msgid.
	MakeID bool `yaml:"makeID"`

	finder *codefinder.Finder
}

// DefaultParams returns the default parameters.
func DefaultParams() *Params {
	return &Params{
		InlineCodes: filter.InlineCodes{UseCodeFinder: true},
	}
}

// Validate compiles the code finder rules.
func (p *Params) Validate() error {
	f, err := p.InlineCodes.Compile()
	if err != nil {
		return err
	}
	p.finder = f
	return nil
}
