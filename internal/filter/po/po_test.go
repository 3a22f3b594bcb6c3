package po

import (
	"context"
	"errors"
	"testing"

	"l10nkit/internal/filter"
	"l10nkit/internal/resource"
	"l10nkit/internal/writer"

	"github.com/rs/zerolog"
)

const sample = `# Translation of demo.
msgid ""
msgstr ""
"Language: fr\n"
"Plural-Forms: nplurals=2; plural=(n > 1);\n"

#. translators: view menu
#: src/view.c:30
msgid "_Icons"
msgstr "_Icônes"

#, fuzzy
msgctxt "menu"
msgid "Open"
msgstr ""
"Ouvrir "
"le fichier"

msgid "Untranslated"
msgstr ""

msgid "one file"
msgid_plural "%d files"
msgstr[0] "un fichier"
msgstr[1] "%d fichiers"
`

func extract(t *testing.T, params *Params, input string, trg resource.LocaleID) []resource.Event {
	t.Helper()
	f, err := New(params, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	doc := &resource.RawDocument{URI: "test.po", Content: []byte(input), Encoding: "UTF-8", SourceLocale: "en", TargetLocale: trg}
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

func TestRoundTrip(t *testing.T) {
	events := extract(t, nil, sample, "")
	out, err := writer.Render(writer.NewGenericWriter(writer.Options{}), events)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != sample {
		t.Errorf("round trip differs:\n%s", out)
	}
}

func TestUnits(t *testing.T) {
	events := extract(t, &Params{}, sample, "")
	tus := units(events)
	if len(tus) != 5 {
		t.Fatalf("got %d units, want 5", len(tus))
	}
	fr := resource.LocaleID("fr")

	if tus[0].Source.FirstContent().Text() != "_Icons" || tus[0].Property(resource.PropNote) != "translators: view menu" {
		t.Errorf("unit 1 = %q note %q", tus[0].Source.FirstContent().Text(), tus[0].Property(resource.PropNote))
	}
	if got := tus[0].Target(fr).FirstContent().Text(); got != "_Icônes" {
		t.Errorf("unit 1 target = %q (language header not used?)", got)
	}

	open := tus[1]
	if open.Property(resource.PropContext) != "menu" || open.Property(resource.PropApproved) != "no" {
		t.Errorf("unit 2 props = %v", open.Properties)
	}
	tgt := open.Target(fr).FirstContent()
	if tgt.Text() != "Ouvrir le fichier" || len(tgt.Codes()) != 1 {
		t.Errorf("unit 2 target = %q with %d codes", tgt.Text(), len(tgt.Codes()))
	}

	if tus[2].HasTarget(fr) {
		t.Error("empty msgstr produced a target")
	}

	var group *resource.StartGroup
	for _, e := range events {
		if sg := e.StartGroup(); sg != nil {
			group = sg
		}
	}
	if group == nil || group.Type != resource.GroupTypePlurals {
		t.Fatalf("plural group = %+v", group)
	}
	if tus[3].Source.FirstContent().Text() != "one file" || tus[4].Source.FirstContent().Text() != "%d files" {
		t.Errorf("plural sources = %q, %q", tus[3].Source.FirstContent().Text(), tus[4].Source.FirstContent().Text())
	}
}

func TestTranslatedOutput(t *testing.T) {
	input := "msgid \"Untranslated\"\nmsgstr \"\"\n"
	de := resource.LocaleID("de")
	events := extract(t, nil, input, de)
	tu := units(events)[0]
	tu.SetTarget(de, resource.NewTextContainer(resource.NewTextFragment(`Nicht "übersetzt"`)))

	out, err := writer.Render(writer.NewGenericWriter(writer.Options{Locale: de}), events)
	if err != nil {
		t.Fatal(err)
	}
	if want := "msgid \"Untranslated\"\nmsgstr \"Nicht \\\"übersetzt\\\"\"\n"; string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestMsgContextInNote(t *testing.T) {
	input := "#. first\nmsgctxt \"A\"\nmsgid \"Hello\"\nmsgstr \"\"\n"
	tus := units(extract(t, &Params{IncludeMsgContextInNote: true}, input, "fr"))
	if got := tus[0].Property(resource.PropNote); got != "A: first" {
		t.Errorf("note = %q", got)
	}
}

func TestMalformed(t *testing.T) {
	f, err := New(nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	for _, input := range []string{
		"msgid \"open\nmsgstr \"\"\n",
		"msgid \"a\"\nbogus\n",
	} {
		err := f.Open(context.Background(), &resource.RawDocument{URI: "bad.po", Content: []byte(input)})
		if !errors.Is(err, filter.ErrBadInput) {
			t.Errorf("%q: err = %v, want ErrBadInput", input, err)
		}
	}
}
