package php

import (
	"context"
	"errors"
	"testing"

	"l10nkit/internal/filter"
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

func extract(t *testing.T, f *Filter, input string) []resource.Event {
	t.Helper()
	doc := &resource.RawDocument{URI: "test.php", Content: []byte(input), Encoding: "UTF-8", SourceLocale: "en", TargetLocale: "fr"}
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

func TestConcatenation(t *testing.T) {
	input := `$a='t1' . $b . ' t2';`
	events := extract(t, newFilter(t, nil), input)
	tus := units(events)
	if len(tus) != 1 {
		t.Fatalf("got %d units, want 1", len(tus))
	}
	tf := tus[0].Source.FirstContent()
	if got := tf.String(); got != `t1' . $b . ' t2` {
		t.Errorf("content = %q", got)
	}
	if len(tf.Codes()) != 1 || tf.Codes()[0].Data != `' . $b . '` {
		t.Errorf("codes = %v", tf.Codes())
	}
	if tus[0].Type != TypeSingleQuoted {
		t.Errorf("type = %q", tus[0].Type)
	}
	if got := render(t, events, ""); got != input {
		t.Errorf("output = %q, want %q", got, input)
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"script":  "<?php\n// page strings\n$title = \"Welcome, $user!\";\n$arr = array('title' => 'My page', 'n' => 3);\necho $title;\n?>\n",
		"heredoc": "<?php\n$text = <<<EOT\nHello $name\n  second line\nEOT;\n",
		"nowdoc":  "<?php\n$raw = <<<'TXT'\n  Raw text\n  TXT;\n",
		"escapes": `$s = 'It\'s here'; $d = "Tab\there";`,
		"comment": "/* _bskip */ $a = 'x'; /* _eskip */\n$b = 'y';\n",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			events := extract(t, newFilter(t, nil), input)
			if got := render(t, events, ""); got != input {
				t.Errorf("output = %q, want %q", got, input)
			}
		})
	}
}

func TestHeredoc(t *testing.T) {
	tus := units(extract(t, newFilter(t, nil), "$text = <<<EOT\nHello $name\nEOT;\n$raw = <<<'TXT'\nPlain\nTXT;\n"))
	if len(tus) != 2 {
		t.Fatalf("got %d units, want 2", len(tus))
	}
	if tus[0].Type != TypeHeredoc || tus[0].Source.FirstContent().String() != "Hello $name" {
		t.Errorf("heredoc unit = %q (%s)", tus[0].Source.FirstContent().String(), tus[0].Type)
	}
	if !tus[0].Source.FirstContent().HasCode() {
		t.Error("variable in heredoc is not a code")
	}
	if tus[1].Type != TypeNowdoc || tus[1].Source.FirstContent().Text() != "Plain" {
		t.Errorf("nowdoc unit = %q (%s)", tus[1].Source.FirstContent().Text(), tus[1].Type)
	}
}

func TestSkippedStrings(t *testing.T) {
	input := "$a['key'] = 'Value';\n$b = '%s';\n$c = '';\n"
	tus := units(extract(t, newFilter(t, nil), input))
	if len(tus) != 1 || tus[0].Source.FirstContent().Text() != "Value" {
		t.Errorf("units = %v", tus)
	}
}

func TestArrayPairs(t *testing.T) {
	tus := units(extract(t, newFilter(t, nil), "$arr = array('title' => 'My page');"))
	if len(tus) != 2 || tus[0].Source.FirstContent().Text() != "title" || tus[1].Source.FirstContent().Text() != "My page" {
		t.Errorf("units = %v", tus)
	}
}

func TestDirectives(t *testing.T) {
	input := "// _skip\n$a = 'one';\n$b = 'two';\n# _bskip\n$c = 'three';\n# _eskip\n$d = 'four';\n"
	var got []string
	for _, tu := range units(extract(t, newFilter(t, nil), input)) {
		got = append(got, tu.Source.FirstContent().Text())
	}
	if len(got) != 2 || got[0] != "two" || got[1] != "four" {
		t.Errorf("extracted %v, want [two four]", got)
	}

	params := DefaultParams()
	params.UseLD = false
	if n := len(units(extract(t, newFilter(t, params), input))); n != 4 {
		t.Errorf("directives off: %d units, want 4", n)
	}
}

func TestMixedNote(t *testing.T) {
	tus := units(extract(t, newFilter(t, nil), `$m = 'single' . "double";`))
	if len(tus) != 1 {
		t.Fatalf("got %d units, want 1", len(tus))
	}
	if tus[0].Type != TypeMixed || tus[0].Property(resource.PropNote) != mixedNote {
		t.Errorf("type = %q, note = %q", tus[0].Type, tus[0].Property(resource.PropNote))
	}
}

func TestTranslatedOutput(t *testing.T) {
	fr := resource.LocaleID("fr")
	events := extract(t, newFilter(t, nil), "<?php $a = 'Hello'; ?>")
	units(events)[0].SetTarget(fr, resource.NewTextContainer(resource.NewTextFragment("Bonjour")))
	if got, want := render(t, events, fr), "<?php $a = 'Bonjour'; ?>"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestMalformed(t *testing.T) {
	for _, input := range []string{
		`$a = 'oops;`,
		"$t = <<<EOT\nnever closed\n",
		"/* open",
	} {
		err := newFilter(t, nil).Open(context.Background(), &resource.RawDocument{URI: "bad.php", Content: []byte(input)})
		if !errors.Is(err, filter.ErrBadInput) {
			t.Errorf("%q: err = %v, want ErrBadInput", input, err)
		}
	}
}
