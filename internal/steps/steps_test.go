package steps

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/registry"
	"l10nkit/internal/resource"
	"l10nkit/internal/terminology"
	"l10nkit/internal/writer"

	"github.com/rs/zerolog"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// memOutput collects written documents by URI.
type memOutput struct {
	mu   sync.Mutex
	docs map[string]*bytes.Buffer
}

func newMemOutput() *memOutput { return &memOutput{docs: make(map[string]*bytes.Buffer)} }

func (m *memOutput) open(doc *resource.RawDocument) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &bytes.Buffer{}
	m.docs[doc.URI] = b
	return nopCloser{b}, nil
}

func (m *memOutput) get(uri string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.docs[uri]; b != nil {
		return b.String()
	}
	return ""
}

func rawDoc(uri, content string) *resource.RawDocument {
	return &resource.RawDocument{URI: uri, Content: []byte(content), Encoding: "UTF-8", SourceLocale: "en", TargetLocale: "fr"}
}

func run(t *testing.T, docs []*resource.RawDocument, steps ...pipeline.Step) *pipeline.Report {
	t.Helper()
	p := pipeline.New(zerolog.Nop(), steps...)
	rep, err := p.Execute(context.Background(), docs)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return rep
}

func TestExtractAndWriteRoundTrip(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	out := newMemOutput()
	docs := []*resource.RawDocument{
		rawDoc("a.properties", "# comment\ntitle = Hello world\nbody=Line one. Line two.\n"),
		rawDoc("b.json", `{"menu": {"open": "Open", "close": "Close"}, "n": 3}`),
		rawDoc("c.php", `<?php $msg = 'Good morning'; ?>`),
	}
	rep := run(t, docs,
		NewExtraction(reg, zerolog.Nop()),
		NewWriterStep(WriterOptions{Output: out.open}))
	if rep.Succeeded != 3 {
		t.Fatalf("succeeded = %d, failures = %v", rep.Succeeded, rep.Err())
	}
	for _, d := range docs {
		if got := out.get(d.URI); got != string(d.Content) {
			t.Errorf("%s:\ngot  %q\nwant %q", d.URI, got, d.Content)
		}
	}
}

func TestUnknownExtensionFailsDocumentOnly(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	out := newMemOutput()
	p := pipeline.New(zerolog.Nop(),
		NewExtraction(reg, zerolog.Nop()),
		NewWriterStep(WriterOptions{Output: out.open}))
	rep, err := p.Execute(context.Background(), []*resource.RawDocument{
		rawDoc("x.bin", "data"),
		rawDoc("ok.json", `{"a": "b"}`),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rep.Succeeded != 1 || len(rep.Failures) != 1 || rep.Failures[0].URI != "x.bin" {
		t.Fatalf("report = %+v", rep)
	}
	if out.get("ok.json") != `{"a": "b"}` {
		t.Errorf("ok.json = %q", out.get("ok.json"))
	}
}

func TestPseudoTranslation(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	out := newMemOutput()
	run(t, []*resource.RawDocument{rawDoc("p.json", `{"a": "Hello", "b": "OK 42"}`)},
		NewExtraction(reg, zerolog.Nop()),
		NewPseudo(PseudoOptions{Brackets: true}),
		NewWriterStep(WriterOptions{Output: out.open}))
	want := `{"a": "[Ĥéļļö]", "b": "[ÖĶ 42]"}`
	if got := out.get("p.json"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPseudoKeepsCodes(t *testing.T) {
	f := resource.NewTextFragment("Hi ")
	f.AppendCode(resource.TagOpening, "b", "<b>")
	f.Append("you")
	f.AppendCode(resource.TagClosing, "b", "</b>")
	got := PseudoFragment(f, PseudoOptions{Expansion: 0.5})
	if got.String() != "Ĥî <b>ýöû</b>~~" {
		t.Errorf("String = %q", got.String())
	}
	if len(got.Codes()) != 2 || got.Codes()[1].ID != f.Codes()[1].ID {
		t.Errorf("codes changed: %+v", got.Codes())
	}
}

// listRegistry extracts JSON list items too.
func listRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(zerolog.Nop())
	if err := reg.Add("okf_json@lists", []byte("extractIsolatedStrings: true\n")); err != nil {
		t.Fatal(err)
	}
	if err := reg.MapExtension(".json", "okf_json@lists"); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestMergeFromPO(t *testing.T) {
	reg := listRegistry(t)
	original := `{"greeting": "Hello", "items": ["One", "Two"], "quote": "Say \"hi\""}`

	// A translated merge-mode PO file: pseudo-translate, then write PO.
	po := newMemOutput()
	run(t, []*resource.RawDocument{rawDoc("m.json", original)},
		NewExtraction(reg, zerolog.Nop()),
		NewPseudo(PseudoOptions{}),
		NewWriterStep(WriterOptions{PO: &writer.POOptions{ForMerge: true}, Output: po.open}))
	poText := po.get("m.json")
	if !strings.Contains(poText, `msgctxt "okpCtx:`) {
		t.Fatalf("no crumbs in PO:\n%s", poText)
	}

	f, err := reg.Create("okf_po")
	if err != nil {
		t.Fatal(err)
	}
	tr, err := LoadTranslations(context.Background(), f, rawDoc("m.po", poText))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 4 {
		t.Fatalf("translations = %d, want 4", tr.Len())
	}

	merged := newMemOutput()
	run(t, []*resource.RawDocument{rawDoc("m.json", original)},
		NewExtraction(reg, zerolog.Nop()),
		NewMerge(tr, MergeOptions{}),
		NewWriterStep(WriterOptions{Output: merged.open}))

	direct := newMemOutput()
	run(t, []*resource.RawDocument{rawDoc("m.json", original)},
		NewExtraction(reg, zerolog.Nop()),
		NewPseudo(PseudoOptions{}),
		NewWriterStep(WriterOptions{Output: direct.open}))

	if merged.get("m.json") != direct.get("m.json") {
		t.Errorf("merged:\n%s\nwant:\n%s", merged.get("m.json"), direct.get("m.json"))
	}
	for _, want := range []string{`"Ĥéļļö"`, `["Öñé", "Ţŵö"]`} {
		if !strings.Contains(merged.get("m.json"), want) {
			t.Errorf("%s not merged: %s", want, merged.get("m.json"))
		}
	}
}

func TestMergeCountsPerDocument(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	po := newMemOutput()
	run(t, []*resource.RawDocument{rawDoc("a.json", `{"a": "One", "b": "Two"}`)},
		NewExtraction(reg, zerolog.Nop()),
		NewPseudo(PseudoOptions{}),
		NewWriterStep(WriterOptions{PO: &writer.POOptions{ForMerge: true}, Output: po.open}))

	f, err := reg.Create("okf_po")
	if err != nil {
		t.Fatal(err)
	}
	tr, err := LoadTranslations(context.Background(), f, rawDoc("a.po", po.get("a.json")))
	if err != nil {
		t.Fatal(err)
	}

	merge := NewMerge(tr, MergeOptions{})
	out := newMemOutput()
	run(t, []*resource.RawDocument{
		rawDoc("a.json", `{"a": "One", "b": "Two"}`),
		rawDoc("b.json", `{"a": "One", "b": "Two"}`),
	},
		NewExtraction(reg, zerolog.Nop()),
		merge,
		NewWriterStep(WriterOptions{Output: out.open}))

	if merged, missed := merge.Counts(); merged != 2 || missed != 0 {
		t.Errorf("counts = %d merged, %d missed; want 2, 0", merged, missed)
	}
	if got := out.get("b.json"); got != `{"a": "Öñé", "b": "Ţŵö"}` {
		t.Errorf("b.json = %s", got)
	}
}

func TestInconsistencyCheck(t *testing.T) {
	var report bytes.Buffer
	s := NewInconsistencyCheck(InconsistencyOptions{Output: &report})
	ctx := context.Background()

	unit := func(id, src, trg string) resource.Event {
		tu := resource.NewTextUnit(id, resource.NewTextFragment(src))
		tu.SetTarget("fr", resource.NewTextContainer(resource.NewTextFragment(trg)))
		return resource.TextUnitEvent(tu)
	}
	events := []resource.Event{
		resource.BatchEvent(resource.KindStartBatch, &resource.BatchMarker{RunID: "r1", Index: -1}),
		resource.RawDocumentEvent(rawDoc("a.json", "")),
		unit("1", "Open", "Ouvrir"),
		unit("2", "Open", "Ouvrez"),
		unit("3", "Close", "Fermer"),
		unit("4", "Shut", "Fermer"),
		unit("5", "Save", "Enregistrer"),
		unit("6", "Save", "Enregistrer"),
		resource.BatchEvent(resource.KindEndBatch, &resource.BatchMarker{RunID: "r1", Index: -1}),
	}
	for _, e := range events {
		if _, err := s.HandleEvent(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	rep := s.Report()
	if rep == nil || len(rep.Items) != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Items[0].Kind != SourceInconsistency || rep.Items[0].Text != "Open" || len(rep.Items[0].Occurrences) != 2 {
		t.Errorf("source item = %+v", rep.Items[0])
	}
	if rep.Items[1].Kind != TargetInconsistency || rep.Items[1].Text != "Fermer" {
		t.Errorf("target item = %+v", rep.Items[1])
	}
	if !strings.Contains(report.String(), "run: r1") || !strings.Contains(report.String(), "kind: source") {
		t.Errorf("yaml report:\n%s", report.String())
	}
}

func TestTermsStep(t *testing.T) {
	g := terminology.NewMemory(
		terminology.Term{Source: "file", Target: "fichier", SourceLocale: "en", TargetLocale: "fr"},
		terminology.Term{Source: "folder", Target: "dossier", SourceLocale: "en", TargetLocale: "fr"},
	)
	s := NewTerms(g, TermsOptions{SourceLocale: "en", TargetLocale: "fr"})
	tu := resource.NewTextUnit("1", resource.NewTextFragment("Move the file to a folder"))
	if err := s.ProcessUnit(context.Background(), tu); err != nil {
		t.Fatal(err)
	}
	if got := tu.Property(resource.PropTerms); got != "file=fichier\nfolder=dossier" {
		t.Errorf("terms = %q", got)
	}
}
