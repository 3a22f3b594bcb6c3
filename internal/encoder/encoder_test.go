package encoder

import (
	"bytes"
	"errors"
	"testing"
)

type propsParams struct{ escape, lf bool }

func (p propsParams) EscapesExtendedChars() bool { return p.escape }
func (p propsParams) ConvertsLFAndTab() bool     { return p.lf }

func TestPropertiesEncoder(t *testing.T) {
	e := NewPropertiesEncoder()
	e.SetOptions(propsParams{escape: true, lf: true}, "UTF-8", "\r\n")

	if got := e.Encode("é\tx\ny", ContextText); got != `\u00e9\tx\ny` {
		t.Errorf("Encode = %q", got)
	}
	if got := e.Encode("a\nb", ContextSkeleton); got != "a\r\nb" {
		t.Errorf("skeleton = %q", got)
	}
	if got := e.Encode("😀", ContextText); got != `\ud83d\ude00` {
		t.Errorf("surrogates = %q", got)
	}
}

func TestPropertiesEncoderCharset(t *testing.T) {
	e := NewPropertiesEncoder()
	e.SetOptions(propsParams{lf: true}, "ISO-8859-1", "\n")
	if got := e.Encode("é日", ContextText); got != `é\u65e5` {
		t.Errorf("Encode = %q", got)
	}
}

type jsonParams struct{ slash bool }

func (p jsonParams) EscapesForwardSlashes() bool { return p.slash }

func TestJSONEncoder(t *testing.T) {
	e := NewJSONEncoder()
	e.SetOptions(jsonParams{slash: false}, "", "\n")
	if got := e.Encode("a \"b\" \\ /c\n\x01", ContextText); got != `a \"b\" \\ /c\n\u0001` {
		t.Errorf("Encode = %q", got)
	}
	if got := e.Encode(`<a href="x">`, ContextInline); got != `<a href=\"x\">` {
		t.Errorf("inline = %q", got)
	}
	e.SetOptions(jsonParams{slash: true}, "", "\n")
	if got := e.Encode("a/b", ContextText); got != `a\/b` {
		t.Errorf("slash = %q", got)
	}
}

func TestEscapeIfNeeded(t *testing.T) {
	cases := map[string]string{
		`say "hi"`:  `say \"hi\"`,
		`keep \n`:   `keep \n`,
		`keep \"`:   `keep \"`,
		`lone \q`:   `lone \\q`,
		"real\nlf":  `real\nlf`,
		`trailing\`: `trailing\\`,
	}
	for in, want := range cases {
		if got := EscapeIfNeeded(in); got != want {
			t.Errorf("EscapeIfNeeded(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTMLEncoder(t *testing.T) {
	e := NewHTMLEncoder()
	if got := e.Encode("a < b & c&nbsp;d &#233;", ContextText); got != "a &lt; b &amp; c&nbsp;d &#233;" {
		t.Errorf("Encode = %q", got)
	}
	if got := e.Encode("<b>", ContextInline); got != "<b>" {
		t.Errorf("inline = %q", got)
	}
}

func TestManagerFallsBackToDefault(t *testing.T) {
	m := NewManager()
	m.SetDefaultOptions(nil, "UTF-8", "\r\n")
	e := m.Encoder("application/x-unknown")
	if _, ok := e.(*DefaultEncoder); !ok {
		t.Fatalf("got %T", e)
	}
	if e.Encode("a\nb", ContextText) != "a\r\nb" {
		t.Error("line break not expanded")
	}
	if m.Encoder("application/x-unknown") != e {
		t.Error("encoder not reused within a document")
	}
}

func TestDecodeEncode(t *testing.T) {
	text, bom, name, err := Decode([]byte("\xEF\xBB\xBFhé"), "ISO-8859-1")
	if err != nil || !bom || name != "UTF-8" || text != "hé" {
		t.Fatalf("Decode = %q %v %q %v", text, bom, name, err)
	}

	latin := []byte{'h', 0xE9}
	text, _, _, err = Decode(latin, "ISO-8859-1")
	if err != nil || text != "hé" {
		t.Fatalf("Decode latin = %q %v", text, err)
	}
	out, err := Encode(text, "ISO-8859-1", false)
	if err != nil || !bytes.Equal(out, latin) {
		t.Errorf("Encode latin = %v %v", out, err)
	}

	out, _ = Encode("x", "UTF-8", true)
	if !bytes.Equal(out, []byte("\xEF\xBB\xBFx")) {
		t.Errorf("BOM not written: %v", out)
	}

	if _, _, _, err := Decode(nil, "no-such-charset"); !errors.Is(err, ErrUnknownCharset) {
		t.Errorf("err = %v, want ErrUnknownCharset", err)
	}
}
