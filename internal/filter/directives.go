package filter

import "strings"

// Directive markers recognized in comments.
const (
	dirSkip      = "_skip"
	dirBeginSkip = "_bskip"
	dirEndSkip   = "_eskip"
	dirText      = "_text"
	dirBeginText = "_btext"
	dirEndText   = "_etext"
)

// DirectivesConfig is the parameter part for localization directives.
type DirectivesConfig struct {
	UseLD           bool `yaml:"useLD"`
	LocalizeOutside bool `yaml:"localizeOutside"`
}

// Directives tracks localization directives found in comments: _skip and
// _text apply to the next item, _bskip/_eskip and _btext/_etext delimit a
// scope.
type Directives struct {
	cfg      DirectivesConfig
	nextSkip bool
	nextText bool
	inSkip   bool
	inText   bool
}

// NewDirectives creates a tracker. Defaults make everything localizable.
func NewDirectives(cfg DirectivesConfig) *Directives {
	return &Directives{cfg: cfg}
}

// Reset clears all scopes.
func (d *Directives) Reset() {
	d.nextSkip, d.nextText, d.inSkip, d.inText = false, false, false, false
}

// Process reads the directives in a comment.
func (d *Directives) Process(comment string) {
	if !d.cfg.UseLD {
		return
	}
	for _, f := range strings.FieldsFunc(comment, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '*' || r == '/' || r == '#'
	}) {
		switch strings.ToLower(f) {
		case dirSkip:
			d.nextSkip, d.nextText = true, false
		case dirText:
			d.nextText, d.nextSkip = true, false
		case dirBeginSkip:
			d.inSkip, d.inText = true, false
		case dirEndSkip:
			d.inSkip = false
		case dirBeginText:
			d.inText, d.inSkip = true, false
		case dirEndText:
			d.inText = false
		}
	}
}

// IsWithin reports whether a directive currently applies.
func (d *Directives) IsWithin() bool {
	return d.cfg.UseLD && (d.nextSkip || d.nextText || d.inSkip || d.inText)
}

// IsLocalizable reports whether the next item should be extracted. When
// consume is true a one-shot directive is used up.
func (d *Directives) IsLocalizable(consume bool) bool {
	if !d.cfg.UseLD {
		return true
	}
	switch {
	case d.nextSkip:
		if consume {
			d.nextSkip = false
		}
		return false
	case d.nextText:
		if consume {
			d.nextText = false
		}
		return true
	case d.inSkip:
		return false
	case d.inText:
		return true
	}
	return d.cfg.LocalizeOutside
}

// LocalizeOutside reports whether items outside any directive scope are
// extracted.
func (d *Directives) LocalizeOutside() bool {
	return !d.cfg.UseLD || d.cfg.LocalizeOutside
}
