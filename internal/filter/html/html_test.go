package html

import (
	"context"
	"testing"

	"l10nkit/internal/filter"
	"l10nkit/internal/filter/json"
	"l10nkit/internal/resource"
	"l10nkit/internal/writer"

	"github.com/rs/zerolog"
)

func newFilter(t *testing.T, params *Params) *Filter {
	t.Helper()
	f, err := New(params, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func extract(t *testing.T, f filter.Filter, uri, input string) []resource.Event {
	t.Helper()
	doc := &resource.RawDocument{URI: uri, Content: []byte(input), Encoding: "UTF-8", SourceLocale: "en", TargetLocale: "fr"}
	if err := f.Open(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	events, err := filter.Drain(f)
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func units(events []resource.Event) []*resource.TextUnit {
	var out []*resource.TextUnit
	for _, e := range events {
		if tu := e.TextUnit(); tu != nil {
			out = append(out, tu)
		}
	}
	return out
}

func render(t *testing.T, events []resource.Event, loc resource.LocaleID) string {
	t.Helper()
	out, err := writer.Render(writer.NewGenericWriter(writer.Options{Locale: loc}), events)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

const page = "<!DOCTYPE html>\n<html>\n<head><title>My page</title>\n<style>p { color: red; }</style></head>\n" +
	"<body>\n<p>Hello <b>bold</b> world!</p>\n<p title=\"Tip\">Caf&eacute; &amp; bar<br/>next</p>\n" +
	"<!-- note -->\n<script>var s = \"<p>not text</p>\";</script>\n<ul><li> One </li><li><img src=\"x.png\"></li></ul>\n</body>\n</html>\n"

func TestRoundTrip(t *testing.T) {
	events := extract(t, newFilter(t, nil), "page.html", page)
	if got := render(t, events, ""); got != page {
		t.Errorf("output = %q, want %q", got, page)
	}
}

func TestUnits(t *testing.T) {
	tus := units(extract(t, newFilter(t, nil), "page.html", page))
	want := []struct{ text, typ string }{
		{"My page", "title"},
		{"Hello bold world!", "p"},
		{"Tip", TypeAttribute + "title"},
		{"Caf&eacute; &amp; barnext", "p"},
		{"One", "li"},
	}
	if len(tus) != len(want) {
		t.Fatalf("got %d units, want %d", len(tus), len(want))
	}
	for i, w := range want {
		if got := tus[i].Source.FirstContent().Text(); got != w.text || tus[i].Type != w.typ {
			t.Errorf("unit %d = %q (%s), want %q (%s)", i, got, tus[i].Type, w.text, w.typ)
		}
	}

	codes := tus[1].Source.FirstContent().Codes()
	if len(codes) != 2 || codes[0].TagType != resource.TagOpening || codes[1].TagType != resource.TagClosing || codes[0].ID != codes[1].ID {
		t.Errorf("codes of bold unit = %v", codes)
	}
	if codes := tus[3].Source.FirstContent().Codes(); len(codes) != 1 || codes[0].Data != "<br/>" {
		t.Errorf("codes of break unit = %v", codes)
	}
	if tus[2].Name != "p@title" {
		t.Errorf("attribute unit name = %q", tus[2].Name)
	}
}

func TestTranslatedOutput(t *testing.T) {
	fr := resource.LocaleID("fr")
	events := extract(t, newFilter(t, nil), "t.html", "<p>Tom and Jerry</p>")
	units(events)[0].SetTarget(fr, resource.NewTextContainer(resource.NewTextFragment("Tom &amp; Jerry & <3")))
	if got, want := render(t, events, fr), "<p>Tom &amp; Jerry &amp; &lt;3</p>"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPreformatted(t *testing.T) {
	tus := units(extract(t, newFilter(t, nil), "t.html", "<pre>a  b\n c</pre><p>x</p>"))
	if len(tus) != 2 || !tus[0].PreserveWhitespace || tus[1].PreserveWhitespace {
		t.Errorf("units = %v", tus)
	}
}

func TestCodeFinder(t *testing.T) {
	params := DefaultParams()
	params.UseCodeFinder = true
	tus := units(extract(t, newFilter(t, params), "t.html", "<p>You have %d items</p>"))
	if len(tus) != 1 || len(tus[0].Source.FirstContent().Codes()) != 1 {
		t.Errorf("units = %v", tus)
	}
}

func TestAsSubfilter(t *testing.T) {
	params := json.DefaultParams()
	params.Subfilter = Name
	params.EscapeForwardSlashes = false
	jf, err := json.New(params, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	jf.SetSubfilterFactory(func(string) (filter.Filter, error) {
		return New(nil, zerolog.Nop())
	})

	input := `{"body": "<p>Hello <b>you</b></p>"}`
	events := extract(t, jf, "t.json", input)
	tus := units(events)
	if len(tus) != 1 || tus[0].ID != "dp1_ssf1_1" || tus[0].Name != "body_1" {
		t.Fatalf("units = %v", tus)
	}
	if got := render(t, events, ""); got != input {
		t.Errorf("output = %q, want %q", got, input)
	}

	fr := resource.LocaleID("fr")
	tus[0].SetTarget(fr, resource.NewTextContainer(resource.NewTextFragment("Salut \"toi\"")))
	if got, want := render(t, events, fr), `{"body": "<p>Salut \"toi\"</p>"}`; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
