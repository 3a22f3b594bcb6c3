package resource

import (
	"strings"

	"golang.org/x/text/language"
)

// LocaleID is a BCP-47 language tag in canonical form, e.g. "fr-CA".
type LocaleID string

// NewLocaleID parses a tag, accepting POSIX forms like "pt_BR".
// An unparseable tag is kept lowercased as-is.
func NewLocaleID(tag string) LocaleID {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	norm := strings.ReplaceAll(tag, "_", "-")
	if i := strings.IndexAny(norm, ".@"); i >= 0 {
		norm = norm[:i]
	}
	t, err := language.Parse(norm)
	if err != nil {
		return LocaleID(strings.ToLower(norm))
	}
	return LocaleID(t.String())
}

// Language returns the primary language subtag.
func (l LocaleID) Language() string {
	s := string(l)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		return strings.ToLower(s[:i])
	}
	return strings.ToLower(s)
}

// POSIX returns the locale in ll_CC form.
func (l LocaleID) POSIX() string {
	return strings.ReplaceAll(string(l), "-", "_")
}

// IsEmpty reports whether no locale is set.
func (l LocaleID) IsEmpty() bool { return l == "" }

func (l LocaleID) String() string { return string(l) }
