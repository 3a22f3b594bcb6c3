package writer

import (
	"errors"
	"strings"
	"testing"

	"l10nkit/internal/encoder"
	"l10nkit/internal/resource"
)

func unit(id, text string, before, after string) *resource.TextUnit {
	tu := resource.NewTextUnit(id, resource.NewTextFragment(text))
	tu.MimeType = encoder.MimeDefault
	tu.Skeleton = resource.NewSkeleton(before)
	tu.Skeleton.AddContentPlaceholder("")
	tu.Skeleton.Append(after)
	return tu
}

func doc(lb string, events ...resource.Event) []resource.Event {
	sd := &resource.StartDocument{ID: "sd1", Name: "test", Encoding: "UTF-8", LineBreak: lb, MimeType: encoder.MimeDefault}
	out := []resource.Event{resource.StartDocumentEvent(sd)}
	out = append(out, events...)
	return append(out, resource.EndDocumentEvent(&resource.Ending{ID: "sd1"}))
}

func TestGenericWriterTargets(t *testing.T) {
	fr := resource.NewLocaleID("fr")
	tu1 := unit("1", "Hello", "a=", "\n")
	tu1.SetTarget(fr, resource.NewTextContainer(resource.NewTextFragment("Bonjour")))
	tu2 := unit("2", "World", "b=", "\n")

	events := doc("\r\n",
		resource.DocumentPartEvent(&resource.DocumentPart{ID: "dp1", Skeleton: resource.NewSkeleton("# top\n")}),
		resource.TextUnitEvent(tu1),
		resource.TextUnitEvent(tu2),
	)
	out, err := Render(NewGenericWriter(Options{Locale: fr}), events)
	if err != nil {
		t.Fatal(err)
	}
	if want := "# top\r\na=Bonjour\r\nb=World\r\n"; string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestGenericWriterSubfilterReference(t *testing.T) {
	inner := unit("dp1_ssf1_1", "Hi", "<b>", "</b>")
	inner.MimeType = encoder.MimeHTML
	events := doc("\n",
		resource.StartSubfilterEvent(&resource.StartSubfilter{ID: "dp1_ssf1", MimeType: encoder.MimeHTML, Referent: true}),
		resource.TextUnitEvent(inner),
		resource.EndSubfilterEvent(&resource.Ending{ID: "dp1_ssf1", Skeleton: resource.NewSkeleton("\n")}),
		resource.DocumentPartEvent(&resource.DocumentPart{ID: "dp1", Skeleton: func() *resource.Skeleton {
			s := resource.NewSkeleton("k=")
			s.AddReference("dp1_ssf1")
			s.Append(";")
			return s
		}()}),
	)
	enc := encoder.NewManager()
	enc.Register(encoder.MimeDefault, func() encoder.Encoder { return encoder.NewPropertiesEncoder() })
	out, err := Render(NewGenericWriter(Options{Encoders: enc}), events)
	if err != nil {
		t.Fatal(err)
	}
	// The nested line break is escaped by the parent encoder.
	if want := `k=<b>Hi</b>\n;`; string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestGenericWriterUnresolvedReference(t *testing.T) {
	s := resource.NewSkeleton("x")
	s.AddReference("missing")
	events := doc("\n", resource.DocumentPartEvent(&resource.DocumentPart{ID: "dp1", Skeleton: s}))
	_, err := Render(NewGenericWriter(Options{}), events)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Errorf("err = %v, want ErrUnresolvedReference", err)
	}
}

func TestGenericWriterTargetOnly(t *testing.T) {
	fr := resource.NewLocaleID("fr")
	tu := resource.NewTextUnit("1", resource.NewTextFragment("source"))
	tu.Skeleton = resource.NewSkeleton(`msgid "source"` + "\n" + `msgstr "`)
	tu.Skeleton.AddTargetPlaceholder(fr)
	tu.Skeleton.Append("\"\n")

	out, err := Render(NewGenericWriter(Options{}), doc("\n", resource.TextUnitEvent(tu)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(out), "msgstr \"\"\n") {
		t.Errorf("missing target should stay empty: %q", out)
	}

	tu.SetTarget(fr, resource.NewTextContainer(resource.NewTextFragment("cible")))
	out, err = Render(NewGenericWriter(Options{}), doc("\n", resource.TextUnitEvent(tu)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(out), "msgstr \"cible\"\n") {
		t.Errorf("target not written: %q", out)
	}
}

func TestGenericWriterReferenceInCode(t *testing.T) {
	ref := unit("r1", "title", "", "")
	ref.Referent = true
	tf := resource.NewTextFragment("see ")
	tf.AppendCode(resource.TagPlaceholder, resource.CodeTypeReference, `<img alt="`+resource.ReferenceMarker("r1")+`">`)
	tu := resource.NewTextUnit("1", tf)
	tu.Skeleton = &resource.Skeleton{}
	tu.Skeleton.AddContentPlaceholder("")

	out, err := Render(NewGenericWriter(Options{}), doc("\n", resource.TextUnitEvent(ref), resource.TextUnitEvent(tu)))
	if err != nil {
		t.Fatal(err)
	}
	if want := `see <img alt="title">`; string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestGenericWriterBOM(t *testing.T) {
	events := doc("\n", resource.DocumentPartEvent(&resource.DocumentPart{ID: "dp1", Skeleton: resource.NewSkeleton("x")}))
	events[0].StartDocument().HasBOM = true
	out, err := Render(NewGenericWriter(Options{}), events)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "\xEF\xBB\xBFx" {
		t.Errorf("output = %q", out)
	}
}

func pluralEvents(n int) []resource.Event {
	events := []resource.Event{resource.StartGroupEvent(&resource.StartGroup{ID: "g1", Type: resource.GroupTypePlurals})}
	for i := 0; i < n; i++ {
		tu := resource.NewTextUnit(string(rune('1'+i)), resource.NewTextFragment([]string{"one file", "%d files"}[i]))
		events = append(events, resource.TextUnitEvent(tu))
	}
	events = append(events, resource.EndGroupEvent(&resource.Ending{ID: "g1"}))
	return doc("\n", events...)
}

func TestPOWriterPluralGroupNeedsTwoEntries(t *testing.T) {
	_, err := Render(NewPOWriter(POOptions{Options: Options{Locale: "fr"}}), pluralEvents(1))
	if !errors.Is(err, ErrPluralGroup) {
		t.Fatalf("err = %v, want ErrPluralGroup", err)
	}

	out, err := Render(NewPOWriter(POOptions{Options: Options{Locale: "fr"}}), pluralEvents(2))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"msgid \"one file\"\nmsgid_plural \"%d files\"\nmsgstr[0] \"\"\nmsgstr[1] \"\"\n",
		`"Plural-Forms: nplurals=2; plural=(n > 1);\n"`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestPOWriterPluralContext(t *testing.T) {
	events := pluralEvents(2)
	for _, e := range events {
		if tu := e.TextUnit(); tu != nil {
			tu.SetProperty(resource.PropContext, "inbox")
		}
	}
	out, err := Render(NewPOWriter(POOptions{Options: Options{Locale: "fr"}}), events)
	if err != nil {
		t.Fatal(err)
	}
	want := "msgctxt \"inbox\"\nmsgid \"one file\"\nmsgid_plural \"%d files\"\n"
	if !strings.Contains(string(out), want) {
		t.Errorf("output lacks %q:\n%s", want, out)
	}
	if n := strings.Count(string(out), "msgctxt"); n != 1 {
		t.Errorf("%d msgctxt lines:\n%s", n, out)
	}
}

func TestPOWriterMergeMode(t *testing.T) {
	fr := resource.NewLocaleID("fr")
	tf := resource.NewTextFragment("Hello ")
	tf.AppendCode(resource.TagOpening, "b", "<b>")
	tf.Append("you")
	tf.AppendCode(resource.TagClosing, "b", "</b>")
	tu := resource.NewTextUnit("7", tf)
	tu.CreateTarget(fr, true)

	events := doc("\n",
		resource.StartGroupEvent(&resource.StartGroup{ID: "g1"}),
		resource.TextUnitEvent(tu),
		resource.EndGroupEvent(&resource.Ending{ID: "g1"}),
	)
	out, err := Render(NewPOWriter(POOptions{Options: Options{Locale: fr}, ForMerge: true, TransFuzzy: true}), events)
	if err != nil {
		t.Fatal(err)
	}
	want := "#, fuzzy\nmsgctxt \"okpCtx:gp=g1:tu=7\"\nmsgid \"Hello <1>you</1>\"\nmsgstr \"Hello <1>you</1>\"\n"
	if !strings.Contains(string(out), want) {
		t.Errorf("output lacks %q:\n%s", want, out)
	}
}

func TestPOWriterWrap(t *testing.T) {
	tu := resource.NewTextUnit("1", resource.NewTextFragment("line one\nline two"))
	out, err := Render(NewPOWriter(POOptions{Wrap: true}), doc("\n", resource.TextUnitEvent(tu)))
	if err != nil {
		t.Fatal(err)
	}
	want := "msgid \"\"\n\"line one\\n\"\n\"line two\"\n"
	if !strings.Contains(string(out), want) {
		t.Errorf("output lacks %q:\n%s", want, out)
	}
}

func TestPluralForms(t *testing.T) {
	cases := map[string]string{
		"pt-BR":     "nplurals=2; plural=(n > 1);",
		"ja":        "nplurals=1; plural=0;",
		"not-a-tag": defaultPluralForms,
	}
	for tag, want := range cases {
		if got := PluralForms(resource.NewLocaleID(tag)); got != want {
			t.Errorf("PluralForms(%s) = %q, want %q", tag, got, want)
		}
	}
}
