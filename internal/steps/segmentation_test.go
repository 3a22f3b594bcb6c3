package steps

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"l10nkit/internal/resource"
)

var defaultRule = regexp.MustCompile(DefaultBreakPattern)

func sample() *resource.TextFragment {
	f := resource.NewTextFragment("One ")
	f.AppendCode(resource.TagOpening, "b", "<b>")
	f.Append("two. Three")
	f.AppendCode(resource.TagClosing, "b", "</b>")
	f.Append(" four. ")
	f.AppendCode(resource.TagOpening, "i", "<i>")
	f.Append("five")
	f.AppendCode(resource.TagClosing, "i", "</i>")
	f.Append(". Six ")
	f.AppendCode(resource.TagPlaceholder, "br", "<br/>")
	f.Append(" seven.")
	return f
}

func TestSplit(t *testing.T) {
	segs := Split(sample(), defaultRule)
	want := []struct {
		generic string
		group   int
	}{
		{"One <1/>two. ", 0},
		{"Three<1/> four. ", 0},
		{"<1>five</1>. ", 2},
		{"Six <1/> seven.", 3},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d", len(segs), len(want))
	}
	for i, w := range want {
		if got := resource.ToGeneric(segs[i].Content); got != w.generic {
			t.Errorf("segment %d = %q, want %q", i, got, w.generic)
		}
		if segs[i].Group != w.group {
			t.Errorf("segment %d group = %d, want %d", i, segs[i].Group, w.group)
		}
	}
}

func TestSplitKeepsTrailingText(t *testing.T) {
	segs := Split(resource.NewTextFragment("No break here"), defaultRule)
	if len(segs) != 1 || segs[0].Content.CodedText() != "No break here" {
		t.Fatalf("segments = %+v", segs)
	}
	segs = Split(resource.NewTextFragment("Done.  "), defaultRule)
	if len(segs) != 1 {
		t.Fatalf("trailing whitespace split: %d segments", len(segs))
	}
}

func TestSegmentationAndJoin(t *testing.T) {
	s, err := NewSegmentation(SegmentationOptions{})
	if err != nil {
		t.Fatal(err)
	}
	tu := resource.NewTextUnit("1", sample())
	if _, err := s.HandleEvent(context.Background(), resource.TextUnitEvent(tu)); err != nil {
		t.Fatal(err)
	}
	if !tu.Source.IsSegmented() || len(tu.Source.Segments()) != 4 {
		t.Fatalf("not segmented: %d", len(tu.Source.Segments()))
	}

	// A target built per segment, with the codes moved around.
	var tsegs []*resource.Segment
	for _, seg := range tu.Source.Segments() {
		c := seg.Content.Clone()
		tsegs = append(tsegs, &resource.Segment{ID: seg.ID, Group: seg.Group, Content: c})
	}
	tsegs[2].Content, _ = resource.FromGeneric("Cinq <1>ici</1>. ", tu.Source.Segments()[2].Content)
	tc := resource.NewTextContainer(nil)
	tc.SetSegments(tsegs)
	tu.SetTarget("fr", tc)

	Join(tu)
	if tu.Source.IsSegmented() {
		t.Fatal("still segmented")
	}
	if got := resource.ToGeneric(tu.Source.FirstContent()); got != "One <1>two. Three</1> four. <2>five</2>. Six <3/> seven." {
		t.Errorf("source = %q", got)
	}
	if got := tu.Source.FirstContent().String(); got != sample().String() {
		t.Errorf("source data = %q", got)
	}
	if got := resource.ToGeneric(tu.Target("fr").FirstContent()); got != "One <1>two. Three</1> four. Cinq <2>ici</2>. Six <3/> seven." {
		t.Errorf("target = %q", got)
	}
}

func TestSegmentationInvalidPattern(t *testing.T) {
	if _, err := NewSegmentation(SegmentationOptions{BreakPattern: "(["}); err == nil {
		t.Fatal("expected an error")
	}
}

// randomFragment builds sentences with properly nested code pairs and
// placeholders.
func randomFragment(r *rand.Rand) *resource.TextFragment {
	f := resource.NewTextFragment("")
	var open int
	for i := 0; i < 40; i++ {
		switch n := r.Intn(10); {
		case n < 4:
			f.Append("word ")
		case n < 6:
			f.Append("end. ")
		case n < 8:
			f.AppendCode(resource.TagOpening, "x", "<x>")
			open++
		case n < 9 && open > 0:
			f.AppendCode(resource.TagClosing, "x", "</x>")
			open--
		default:
			f.AppendCode(resource.TagPlaceholder, "ph", "<ph/>")
		}
	}
	for ; open > 0; open-- {
		f.AppendCode(resource.TagClosing, "x", "</x>")
	}
	f.Append("last.")
	return f
}

func TestJoinRestoresFirstAppearanceIDs(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		orig := randomFragment(r)
		want := orig.Clone()
		want.RenumberCodes(1)

		tu := resource.NewTextUnit("1", orig.Clone())
		tu.Source.SetSegments(Split(tu.Source.FirstContent(), defaultRule))
		Join(tu)

		got := tu.Source.FirstContent()
		if resource.ToGeneric(got) != resource.ToGeneric(want) {
			t.Fatalf("case %d:\ngot  %s\nwant %s", i, resource.ToGeneric(got), resource.ToGeneric(want))
		}
		if got.String() != orig.String() {
			t.Fatalf("case %d: data changed", i)
		}
		if strings.Count(resource.ToGeneric(got), "/>") != strings.Count(resource.ToGeneric(want), "/>") {
			t.Fatalf("case %d: pairing changed", i)
		}
	}
}
