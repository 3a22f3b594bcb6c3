package php

import (
	"l10nkit/internal/codefinder"
	"l10nkit/internal/filter"
)

// Params configures the PHP content filter.
type Params struct {
	filter.InlineCodes      `yaml:",inline"`
	filter.DirectivesConfig `yaml:",inline"`

	finder *codefinder.Finder
}

// DefaultRules protect PHP variables and escape sequences in strings.
var DefaultRules = append([]codefinder.Rule{
	{Name: "php-complex-var", Pattern: `\{\$[^{}]+\}`},                // {$user->name}
	{Name: "php-var", Pattern: `\$[a-zA-Z_][a-zA-Z0-9_]*(?:->\w+)*`}, // $name, $obj->field
	{Name: "php-escape", Pattern: `\\[nrtvef$\\"']`, Type: "fmt"},     // \n, \$
}, codefinder.DefaultRules...)

// DefaultParams returns the default parameters.
func DefaultParams() *Params {
	return &Params{
		InlineCodes:      filter.InlineCodes{UseCodeFinder: true, CodeFinder: DefaultRules},
		DirectivesConfig: filter.DirectivesConfig{UseLD: true, LocalizeOutside: true},
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
