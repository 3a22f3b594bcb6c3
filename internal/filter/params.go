package filter

import (
	"l10nkit/internal/codefinder"
)

// InlineCodes is the parameter part that drives the inline code finder.
type InlineCodes struct {
	UseCodeFinder bool              `yaml:"useCodeFinder"`
	CodeFinder    []codefinder.Rule `yaml:"codeFinderRules"`
}

// Compile returns the configured finder, nil when disabled. An empty rule
// list means the default rules.
func (ic InlineCodes) Compile() (*codefinder.Finder, error) {
	if !ic.UseCodeFinder {
		return nil, nil
	}
	rules := ic.CodeFinder
	if len(rules) == 0 {
		rules = codefinder.DefaultRules
	}
	f, err := codefinder.New(rules)
	if err != nil {
		return nil, ConfigError("code finder: %v", err)
	}
	return f, nil
}

// Validator is implemented by every filter parameter struct.
type Validator interface {
	// Validate checks the parameters and compiles their patterns.
	Validate() error
}
