package properties

import (
	"regexp"

	"l10nkit/internal/codefinder"
	"l10nkit/internal/filter"
)

// Params configures the properties filter.
type Params struct {
	filter.InlineCodes      `yaml:",inline"`
	filter.DirectivesConfig `yaml:",inline"`

	UseKeyCondition        bool   `yaml:"useKeyCondition"`
	ExtractOnlyMatchingKey bool   `yaml:"extractOnlyMatchingKey"`
	KeyCondition           string `yaml:"keyCondition"`
	// ExtraComments also treats lines starting with ";" or "//" as comments.
	ExtraComments       bool `yaml:"extraComments"`
	CommentsAreNotes    bool `yaml:"commentsAreNotes"`
	EscapeExtendedChars bool `yaml:"escapeExtendedChars"`
	ConvertLFandTab     bool `yaml:"convertLFandTab"`
	// IDLikeResname uses the key as the unit id.
	IDLikeResname bool `yaml:"idLikeResname"`
	// Subfilter is the configuration id of a filter run over each value.
	Subfilter string `yaml:"subfilter"`

	keyCondition *regexp.Regexp
	finder       *codefinder.Finder
}

// DefaultParams returns the default parameters.
func DefaultParams() *Params {
	return &Params{
		DirectivesConfig:       filter.DirectivesConfig{UseLD: true, LocalizeOutside: true},
		ExtractOnlyMatchingKey: true,
		KeyCondition:           ".*text.*",
		CommentsAreNotes:       true,
		EscapeExtendedChars:    true,
		ConvertLFandTab:        true,
	}
}

// Validate compiles the key condition and code finder rules.
func (p *Params) Validate() error {
	p.keyCondition = nil
	if p.UseKeyCondition {
		if p.KeyCondition == "" {
			return filter.ConfigError("keyCondition is required when useKeyCondition is set")
		}
		re, err := regexp.Compile("^(?:" + p.KeyCondition + ")$")
		if err != nil {
			return filter.ConfigError("keyCondition: %v", err)
		}
		p.keyCondition = re
	}
	f, err := p.InlineCodes.Compile()
	if err != nil {
		return err
	}
	p.finder = f
	return nil
}

func (p *Params) EscapesExtendedChars() bool { return p.EscapeExtendedChars }
func (p *Params) ConvertsLFAndTab() bool     { return p.ConvertLFandTab }
