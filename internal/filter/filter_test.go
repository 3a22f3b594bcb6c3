package filter

import (
	"errors"
	"testing"

	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

func TestBuilderFoldsEmptyUnits(t *testing.T) {
	b := NewBuilder("text/plain", zerolog.Nop())
	b.Start(&resource.StartDocument{ID: "sd1"})
	b.AddSkeleton("k=")
	if tu := b.AddTextUnit(UnitSpec{Content: resource.NewTextFragment(" \t"), Raw: ` \t`}); tu != nil {
		t.Fatal("whitespace-only unit was emitted")
	}
	b.AddSkeleton("\nv=")
	tu := b.AddTextUnit(UnitSpec{Content: resource.NewTextFragment("text"), After: "\n"})
	if tu == nil || tu.ID != "1" {
		t.Fatalf("unit = %+v", tu)
	}
	if got := tu.Skeleton.String(); got != "k= \\t\nv=[#$$self$]\n" {
		t.Errorf("skeleton = %q", got)
	}
	if err := b.End(); err != nil {
		t.Fatal(err)
	}
	if n := len(b.Events()); n != 3 {
		t.Errorf("events = %d, want 3", n)
	}
}

func TestBuilderGroups(t *testing.T) {
	b := NewBuilder("text/plain", zerolog.Nop())
	b.Start(&resource.StartDocument{ID: "sd1"})
	b.AddSkeleton("{")
	sg := b.StartGroup("outer", "", false)
	b.AddSkeleton("}")
	if err := b.EndGroup(); err != nil {
		t.Fatal(err)
	}
	if err := b.EndGroup(); !errors.Is(err, ErrBadInput) {
		t.Errorf("extra EndGroup: err = %v", err)
	}
	if err := b.End(); err != nil {
		t.Fatal(err)
	}

	kinds := []resource.EventKind{
		resource.KindStartDocument, resource.KindDocumentPart, resource.KindStartGroup,
		resource.KindEndGroup, resource.KindEndDocument,
	}
	events := b.Events()
	if len(events) != len(kinds) {
		t.Fatalf("events = %v", events)
	}
	for i, k := range kinds {
		if events[i].Kind() != k {
			t.Errorf("event %d = %s, want %s", i, events[i].Kind(), k)
		}
	}
	if sg.ParentID != "sd1" || events[3].Ending().Skeleton.String() != "}" {
		t.Errorf("group parent %q, ending %q", sg.ParentID, events[3].Ending().Skeleton)
	}
}

func TestBuilderUnclosedGroup(t *testing.T) {
	b := NewBuilder("text/plain", zerolog.Nop())
	b.Start(&resource.StartDocument{ID: "sd1"})
	b.StartGroup("", "", false)
	if err := b.End(); !errors.Is(err, ErrBadInput) {
		t.Errorf("err = %v, want ErrBadInput", err)
	}
}

func TestDirectives(t *testing.T) {
	d := NewDirectives(DirectivesConfig{UseLD: true, LocalizeOutside: true})
	if d.IsWithin() || !d.IsLocalizable(true) {
		t.Fatal("outside scope should be localizable")
	}
	d.Process("# _skip")
	if !d.IsWithin() || d.IsLocalizable(true) {
		t.Error("_skip not applied")
	}
	if d.IsWithin() {
		t.Error("_skip not consumed")
	}
	d.Process("/* _bskip */")
	if d.IsLocalizable(true) || d.IsLocalizable(true) {
		t.Error("_bskip scope not kept")
	}
	d.Process("_eskip")
	d.Process("_btext")
	if !d.IsLocalizable(true) {
		t.Error("_btext scope ignored")
	}

	off := NewDirectives(DirectivesConfig{UseLD: true, LocalizeOutside: false})
	if off.IsLocalizable(true) || off.LocalizeOutside() {
		t.Error("LocalizeOutside=false ignored")
	}
	none := NewDirectives(DirectivesConfig{})
	none.Process("_skip")
	if !none.IsLocalizable(true) {
		t.Error("disabled directives must not skip")
	}
}

func TestDecodeDocument(t *testing.T) {
	dec, err := DecodeDocument(&resource.RawDocument{Content: []byte("a\r\nb\r\n")})
	if err != nil {
		t.Fatal(err)
	}
	if dec.Text != "a\nb\n" || dec.LineBreak != "\r\n" {
		t.Errorf("decoded %q lb %q", dec.Text, dec.LineBreak)
	}
	if _, err := DecodeDocument(&resource.RawDocument{Encoding: "x-none"}); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("err = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestParseErrorLine(t *testing.T) {
	err := error(NewParseError("a\nb\nc", 4, "unterminated %s", "string"))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 3 {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, ErrBadInput) {
		t.Error("ParseError does not match ErrBadInput")
	}
}
