package filter

import (
	"errors"
	"fmt"
	"strings"

	"l10nkit/internal/encoder"
	"l10nkit/internal/resource"
)

// Decoded is a raw document ready for scanning. Text uses "\n" only.
type Decoded struct {
	Text      string
	Encoding  string
	HasBOM    bool
	LineBreak string
}

// DecodeDocument converts doc to UTF-8, strips a BOM and normalizes line
// breaks to "\n", remembering the first style seen.
func DecodeDocument(doc *resource.RawDocument) (*Decoded, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrIO)
	}
	text, bom, enc, err := encoder.Decode(doc.Content, doc.Encoding)
	if err != nil {
		if errors.Is(err, encoder.ErrUnknownCharset) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	lb := DetectLineBreak(text)
	return &Decoded{
		Text:      NormalizeLineBreaks(text),
		Encoding:  enc,
		HasBOM:    bom,
		LineBreak: lb,
	}, nil
}

// DetectLineBreak returns the first line break style in text, "\n" when
// there is none.
func DetectLineBreak(text string) string {
	i := strings.IndexAny(text, "\r\n")
	if i < 0 {
		return "\n"
	}
	if text[i] == '\n' {
		return "\n"
	}
	if i+1 < len(text) && text[i+1] == '\n' {
		return "\r\n"
	}
	return "\r"
}

// NormalizeLineBreaks converts "\r\n" and "\r" to "\n".
func NormalizeLineBreaks(text string) string {
	if !strings.ContainsRune(text, '\r') {
		return text
	}
	return strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
}

// NewStartDocument fills a StartDocument from a decoded document.
func NewStartDocument(doc *resource.RawDocument, dec *Decoded, filterID, mime string, params any) *resource.StartDocument {
	return &resource.StartDocument{
		ID:         "sd1",
		Name:       doc.URI,
		Encoding:   dec.Encoding,
		HasBOM:     dec.HasBOM,
		Locale:     doc.SourceLocale,
		LineBreak:  dec.LineBreak,
		MimeType:   mime,
		FilterID:   filterID,
		Params:     params,
		WriterHint: "generic",
	}
}
