package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnknownCharset is returned for encoding names the index does not know.
var ErrUnknownCharset = errors.New("unknown charset")

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// Lookup returns the encoding for an IANA name. UTF-8 and the empty name
// return nil, meaning no transcoding.
func Lookup(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "utf-8" || n == "utf8" {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownCharset)
	}
	if enc == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownCharset)
	}
	return enc, nil
}

// Decode converts content in the named encoding to a UTF-8 string. A
// leading BOM is stripped and reported; it overrides the declared name.
func Decode(content []byte, name string) (text string, hasBOM bool, detected string, err error) {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return string(content[len(bomUTF8):]), true, "UTF-8", nil
	case bytes.HasPrefix(content, []byte{0xFF, 0xFE}), bytes.HasPrefix(content, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(content)
		if err != nil {
			return "", true, "UTF-16", fmt.Errorf("decode UTF-16: %w", err)
		}
		return string(out), true, "UTF-16", nil
	}

	enc, err := Lookup(name)
	if err != nil {
		return "", false, name, err
	}
	if name == "" {
		name = "UTF-8"
	}
	if enc == nil {
		return string(content), false, name, nil
	}
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", false, name, fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), false, name, nil
}

// Encode converts UTF-8 text to the named encoding, adding a BOM when
// asked for a Unicode encoding.
func Encode(text, name string, bom bool) ([]byte, error) {
	upper := strings.ToUpper(name)
	if strings.HasPrefix(upper, "UTF-16") {
		e := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		if bom {
			e = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
		}
		if upper == "UTF-16BE" {
			e = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
		}
		return e.NewEncoder().Bytes([]byte(text))
	}

	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		if bom {
			return append(append([]byte(nil), bomUTF8...), text...), nil
		}
		return []byte(text), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return out, nil
}
