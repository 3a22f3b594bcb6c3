package resource

import (
	"strings"
	"unicode"
)

// Marker characters used in coded text. Each marker is followed by one
// index character (indexBase + position in the code list).
const (
	MarkerOpening  = '\uE101'
	MarkerClosing  = '\uE102'
	MarkerIsolated = '\uE103'

	indexBase = 0xE110
)

// TagType tells whether a code opens, closes or stands alone.
type TagType int

const (
	TagPlaceholder TagType = iota
	TagOpening
	TagClosing
)

func (t TagType) String() string {
	switch t {
	case TagOpening:
		return "opening"
	case TagClosing:
		return "closing"
	default:
		return "placeholder"
	}
}

func (t TagType) marker() rune {
	switch t {
	case TagOpening:
		return MarkerOpening
	case TagClosing:
		return MarkerClosing
	default:
		return MarkerIsolated
	}
}

// Well-known code types.
const (
	CodeTypeLineBreak = "lb"
	CodeTypeReference = "ref"
	CodeTypeVariable  = "var"
	CodeTypeFormat    = "fmt"
	CodeTypeCode      = "code"
)

// Code is an inline, non-editable span inside a fragment.
type Code struct {
	ID      int
	TagType TagType
	Type    string
	// Data is the literal original text of the code.
	Data string
	// Reference is set when Data holds a reference marker to another resource.
	Reference bool
}

// Clone returns a copy of the code.
func (c *Code) Clone() *Code {
	cc := *c
	return &cc
}

// IsMarker reports whether r is one of the three marker characters.
func IsMarker(r rune) bool {
	return r == MarkerOpening || r == MarkerClosing || r == MarkerIsolated
}

// TextFragment is coded text: characters interleaved with marker pairs that
// index into an ordered code list.
type TextFragment struct {
	text   []rune
	codes  []*Code
	lastID int
	open   []int // ids of unmatched opening codes, innermost last
}

// NewTextFragment creates a fragment holding plain text.
func NewTextFragment(text string) *TextFragment {
	return &TextFragment{text: []rune(text)}
}

// NewCodedFragment creates a fragment from coded text and its code list.
func NewCodedFragment(coded string, codes []*Code) *TextFragment {
	tf := &TextFragment{}
	tf.SetCodedText(coded, codes)
	return tf
}

// SetCodedText replaces the content of the fragment.
func (tf *TextFragment) SetCodedText(coded string, codes []*Code) {
	tf.text = []rune(coded)
	tf.codes = codes
	tf.open = nil
	tf.lastID = 0
	for _, c := range codes {
		if c.ID > tf.lastID {
			tf.lastID = c.ID
		}
	}
}

// CodedText returns the text with marker pairs in place of codes.
func (tf *TextFragment) CodedText() string { return string(tf.text) }

// Codes returns the code list in storage order.
func (tf *TextFragment) Codes() []*Code { return tf.codes }

// Len returns the length of the coded text in runes.
func (tf *TextFragment) Len() int { return len(tf.text) }

// IsEmpty reports whether the fragment has no text and no code.
func (tf *TextFragment) IsEmpty() bool { return len(tf.text) == 0 }

// HasCode reports whether at least one code is present.
func (tf *TextFragment) HasCode() bool { return len(tf.codes) > 0 }

// Append adds plain text at the end.
func (tf *TextFragment) Append(text string) {
	tf.text = append(tf.text, []rune(text)...)
}

// AppendRune adds one character at the end.
func (tf *TextFragment) AppendRune(r rune) {
	tf.text = append(tf.text, r)
}

// AppendCode adds a new code at the end and returns it. A closing code takes
// the id of the innermost unmatched opening code.
func (tf *TextFragment) AppendCode(tagType TagType, typ, data string) *Code {
	c := &Code{TagType: tagType, Type: typ, Data: data}
	switch tagType {
	case TagOpening:
		tf.lastID++
		c.ID = tf.lastID
		tf.open = append(tf.open, c.ID)
	case TagClosing:
		if n := len(tf.open); n > 0 {
			c.ID = tf.open[n-1]
			tf.open = tf.open[:n-1]
		} else {
			tf.lastID++
			c.ID = tf.lastID
		}
	default:
		tf.lastID++
		c.ID = tf.lastID
	}
	tf.appendMarker(c)
	return c
}

// AppendCodeObject adds c as-is, keeping its id.
func (tf *TextFragment) AppendCodeObject(c *Code) {
	if c.ID > tf.lastID {
		tf.lastID = c.ID
	}
	tf.appendMarker(c)
}

func (tf *TextFragment) appendMarker(c *Code) {
	tf.text = append(tf.text, c.TagType.marker(), rune(indexBase+len(tf.codes)))
	tf.codes = append(tf.codes, c)
}

// AppendFragment appends a copy of other. Code ids of the appended part are
// shifted past the ids already in use so pairs stay distinct.
func (tf *TextFragment) AppendFragment(other *TextFragment) {
	if other == nil {
		return
	}
	shift := tf.lastID
	for i := 0; i < len(other.text); i++ {
		r := other.text[i]
		if IsMarker(r) && i+1 < len(other.text) {
			c := other.codes[int(other.text[i+1])-indexBase].Clone()
			c.ID += shift
			tf.AppendCodeObject(c)
			i++
			continue
		}
		tf.text = append(tf.text, r)
	}
}

// CodeAt returns the code whose marker starts at rune position pos.
func (tf *TextFragment) CodeAt(pos int) *Code {
	if pos < 0 || pos+1 >= len(tf.text) || !IsMarker(tf.text[pos]) {
		return nil
	}
	return tf.codes[int(tf.text[pos+1])-indexBase]
}

// CodeIndex returns the position in the code list encoded by an index
// character.
func CodeIndex(r rune) int { return int(r) - indexBase }

// IndexChar returns the index character for position i of a code list.
func IndexChar(i int) rune { return rune(indexBase + i) }

// Text returns the plain text with codes removed.
func (tf *TextFragment) Text() string {
	var sb strings.Builder
	for i := 0; i < len(tf.text); i++ {
		if IsMarker(tf.text[i]) {
			i++
			continue
		}
		sb.WriteRune(tf.text[i])
	}
	return sb.String()
}

// String returns the text with each code replaced by its original data.
func (tf *TextFragment) String() string {
	var sb strings.Builder
	for i := 0; i < len(tf.text); i++ {
		if IsMarker(tf.text[i]) && i+1 < len(tf.text) {
			sb.WriteString(tf.codes[CodeIndex(tf.text[i+1])].Data)
			i++
			continue
		}
		sb.WriteRune(tf.text[i])
	}
	return sb.String()
}

// HasText reports whether the fragment holds text outside codes. When
// whitespaceIsText is false, whitespace alone does not count.
func (tf *TextFragment) HasText(whitespaceIsText bool) bool {
	for i := 0; i < len(tf.text); i++ {
		r := tf.text[i]
		if IsMarker(r) {
			i++
			continue
		}
		if whitespaceIsText || !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (tf *TextFragment) Clone() *TextFragment {
	out := &TextFragment{
		text:   append([]rune(nil), tf.text...),
		codes:  make([]*Code, len(tf.codes)),
		lastID: tf.lastID,
		open:   append([]int(nil), tf.open...),
	}
	for i, c := range tf.codes {
		out.codes[i] = c.Clone()
	}
	return out
}

// SubFragment copies the coded text in [start, end) with its codes. The
// bounds must not split a marker pair.
func (tf *TextFragment) SubFragment(start, end int) *TextFragment {
	out := &TextFragment{}
	for i := start; i < end; i++ {
		r := tf.text[i]
		if IsMarker(r) && i+1 < end {
			out.AppendCodeObject(tf.codes[CodeIndex(tf.text[i+1])].Clone())
			i++
			continue
		}
		out.text = append(out.text, r)
	}
	return out
}

// Insert splices plain text at rune position pos.
func (tf *TextFragment) Insert(pos int, text string) {
	rs := []rune(text)
	tail := append([]rune(nil), tf.text[pos:]...)
	tf.text = append(append(tf.text[:pos], rs...), tail...)
}

// ReplaceWithCode replaces the plain text in [start, end) with a new code.
// Index characters are rebuilt so the code list stays in marker order.
func (tf *TextFragment) ReplaceWithCode(start, end int, c *Code) {
	if c.ID > tf.lastID {
		tf.lastID = c.ID
	}
	head := append([]rune(nil), tf.text[:start]...)
	tail := append([]rune(nil), tf.text[end:]...)
	tf.text = append(append(head, c.TagType.marker(), 0), tail...)
	// Rebuild code list in marker order.
	old := tf.codes
	tf.codes = make([]*Code, 0, len(old)+1)
	for i := 0; i < len(tf.text); i++ {
		if !IsMarker(tf.text[i]) {
			continue
		}
		if i == start {
			tf.text[i+1] = IndexChar(len(tf.codes))
			tf.codes = append(tf.codes, c)
		} else {
			prev := old[CodeIndex(tf.text[i+1])]
			tf.text[i+1] = IndexChar(len(tf.codes))
			tf.codes = append(tf.codes, prev)
		}
		i++
	}
}

// NextID returns an unused code id.
func (tf *TextFragment) NextID() int {
	tf.lastID++
	return tf.lastID
}

// RenumberCodes assigns ids starting at base in first-appearance order.
// Opening and closing codes that shared an id still share the new one.
// It returns the next unused id.
func (tf *TextFragment) RenumberCodes(base int) int {
	return tf.RenumberShared(make(map[int]int), base)
}

// RenumberShared renumbers like RenumberCodes with an old-to-new id map
// kept by the caller, so a pair split over several fragments keeps one id
// when they are renumbered in order with the same map.
func (tf *TextFragment) RenumberShared(ids map[int]int, next int) int {
	for i := 0; i < len(tf.text); i++ {
		if !IsMarker(tf.text[i]) {
			continue
		}
		c := tf.codes[CodeIndex(tf.text[i+1])]
		if id, ok := ids[c.ID]; ok && c.TagType == TagClosing {
			c.ID = id
		} else {
			ids[c.ID] = next
			c.ID = next
			next++
		}
		i++
	}
	tf.lastID = 0
	for _, c := range tf.codes {
		tf.lastID = max(tf.lastID, c.ID)
	}
	tf.open = nil
	return next
}

// BalanceMarkers retypes pair-typed codes whose partner is missing from the
// fragment as isolated markers, and pair-types them again once both ends
// are present. Code tag types are not changed.
func (tf *TextFragment) BalanceMarkers() {
	opening := make(map[int]int)
	closing := make(map[int]int)
	for i := 0; i < len(tf.text); i++ {
		if !IsMarker(tf.text[i]) {
			continue
		}
		c := tf.codes[CodeIndex(tf.text[i+1])]
		switch c.TagType {
		case TagOpening:
			opening[c.ID] = i
		case TagClosing:
			closing[c.ID] = i
		}
		i++
	}
	for id, pos := range opening {
		if _, ok := closing[id]; ok {
			tf.text[pos] = MarkerOpening
		} else {
			tf.text[pos] = MarkerIsolated
		}
	}
	for id, pos := range closing {
		if _, ok := opening[id]; ok {
			tf.text[pos] = MarkerClosing
		} else {
			tf.text[pos] = MarkerIsolated
		}
	}
}

// Runs calls fn for each plain-text run between codes with its rune
// position in the coded text.
func (tf *TextFragment) Runs(fn func(start int, run string)) {
	start := 0
	for i := 0; i <= len(tf.text); i++ {
		if i == len(tf.text) || IsMarker(tf.text[i]) {
			if i > start {
				fn(start, string(tf.text[start:i]))
			}
			i++
			start = i + 1
		}
	}
}
