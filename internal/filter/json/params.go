package json

import (
	"regexp"

	"l10nkit/internal/codefinder"
	"l10nkit/internal/filter"
)

// Params configures the JSON filter.
type Params struct {
	filter.InlineCodes `yaml:",inline"`

	// ExtractStandalone extracts strings that have no key, such as list
	// items.
	ExtractStandalone bool `yaml:"extractIsolatedStrings"`
	// ExtractAllPairs extracts every key/value string. Keys matching
	// Exceptions flip the decision.
	ExtractAllPairs bool   `yaml:"extractAllPairs"`
	Exceptions      string `yaml:"exceptions"`

	UseKeyAsName             bool `yaml:"useKeyAsName"`
	UseFullKeyPath           bool `yaml:"useFullKeyPath"`
	UseLeadingSlashOnKeyPath bool `yaml:"useLeadingSlashOnKeyPath"`
	EscapeForwardSlashes     bool `yaml:"escapeForwardSlashes"`

	// Subfilter is the configuration id of a filter run over each
	// extracted value. It is ignored when the code finder is on.
	Subfilter string `yaml:"subfilter"`

	exceptions *regexp.Regexp
	finder     *codefinder.Finder
}

// DefaultParams returns the default parameters.
func DefaultParams() *Params {
	return &Params{
		ExtractAllPairs:          true,
		UseKeyAsName:             true,
		UseLeadingSlashOnKeyPath: true,
		EscapeForwardSlashes:     true,
	}
}

// Validate compiles the exceptions pattern and code finder rules.
func (p *Params) Validate() error {
	p.exceptions = nil
	if p.Exceptions != "" {
		re, err := regexp.Compile(p.Exceptions)
		if err != nil {
			return filter.ConfigError("exceptions: %v", err)
		}
		p.exceptions = re
	}
	f, err := p.InlineCodes.Compile()
	if err != nil {
		return err
	}
	p.finder = f
	return nil
}

func (p *Params) EscapesForwardSlashes() bool { return p.EscapeForwardSlashes }
