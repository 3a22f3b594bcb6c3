package resource

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrCodeMismatch is returned when generic text names a code that the
// reference fragment does not have.
var ErrCodeMismatch = errors.New("code mismatch")

var genericTag = regexp.MustCompile(`<(/?)(\d+)(/?)>`)

// ToGeneric renders the fragment with letter-coded tags: <1> and </1> for
// paired codes, <1/> for placeholders and unmatched pair ends.
func ToGeneric(tf *TextFragment) string {
	var sb strings.Builder
	for i := 0; i < len(tf.text); i++ {
		r := tf.text[i]
		if !IsMarker(r) {
			sb.WriteRune(r)
			continue
		}
		c := tf.codes[CodeIndex(tf.text[i+1])]
		i++
		switch r {
		case MarkerOpening:
			fmt.Fprintf(&sb, "<%d>", c.ID)
		case MarkerClosing:
			fmt.Fprintf(&sb, "</%d>", c.ID)
		default:
			fmt.Fprintf(&sb, "<%d/>", c.ID)
		}
	}
	return sb.String()
}

// FromGeneric parses letter-coded text back into a fragment, taking the
// code data from ref.
func FromGeneric(s string, ref *TextFragment) (*TextFragment, error) {
	type key struct {
		id  int
		tag TagType
	}
	byKey := make(map[key]*Code)
	if ref != nil {
		for _, c := range ref.codes {
			byKey[key{c.ID, c.TagType}] = c
		}
	}

	out := &TextFragment{}
	last := 0
	for _, m := range genericTag.FindAllStringSubmatchIndex(s, -1) {
		out.Append(s[last:m[0]])
		last = m[1]

		id, _ := strconv.Atoi(s[m[4]:m[5]])
		closing := m[3] > m[2]
		isolated := m[7] > m[6]

		var c *Code
		switch {
		case closing:
			c = byKey[key{id, TagClosing}]
		case isolated:
			if c = byKey[key{id, TagPlaceholder}]; c == nil {
				// Unmatched pair end rendered as isolated.
				if c = byKey[key{id, TagOpening}]; c == nil {
					c = byKey[key{id, TagClosing}]
				}
			}
		default:
			c = byKey[key{id, TagOpening}]
		}
		if c == nil {
			return nil, fmt.Errorf("generic tag %q: %w", s[m[0]:m[1]], ErrCodeMismatch)
		}
		out.AppendCodeObject(c.Clone())
	}
	out.Append(s[last:])
	out.BalanceMarkers()
	return out, nil
}
