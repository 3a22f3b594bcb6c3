package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/registry"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

var errRejected = errors.New("unit rejected")

// rejecting fails the document holding a unit with the given text and
// records the texts of the units it sees.
func rejecting(text string, seen *[]string) *pipeline.BaseStep {
	return &pipeline.BaseStep{
		StepName: "reject",
		Handlers: pipeline.Handlers{
			TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
				got := e.TextUnit().Source.Unsegmented().Text()
				*seen = append(*seen, got)
				if got == text {
					return resource.Event{}, errRejected
				}
				return e, nil
			},
		},
	}
}

func TestFailedDocumentKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.json")
	if err := os.WriteFile(first, []byte("previous good output\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := rawDoc("a.json", `{"x": "fine", "y": "boom", "z": "after"}`)
	a.OutputPath = first
	b := rawDoc("b.json", `{"x": "next"}`)
	b.OutputPath = filepath.Join(dir, "b.json")

	var seen []string
	rep := run(t, []*resource.RawDocument{a, b},
		NewExtraction(registry.New(zerolog.Nop()), zerolog.Nop()),
		rejecting("boom", &seen),
		NewWriterStep(WriterOptions{}))

	if rep.Succeeded != 1 || len(rep.Failures) != 1 || rep.Failures[0].URI != "a.json" {
		t.Fatalf("report = %+v", rep)
	}
	if !errors.Is(rep.Err(), errRejected) {
		t.Errorf("err = %v", rep.Err())
	}
	want := []string{"fine", "boom", "next"}
	if len(seen) != len(want) {
		t.Fatalf("units seen = %q, want %q", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("units seen = %q, want %q", seen, want)
		}
	}

	got, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "previous good output\n" {
		t.Errorf("a.json = %q", got)
	}
	got, err = os.ReadFile(b.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"x": "next"}` {
		t.Errorf("b.json = %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("files left = %q", names)
	}
}

func TestFileOutputCommitsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.txt")
	doc := &resource.RawDocument{URI: "out.txt", OutputPath: path}

	out, err := FileOutput(doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Write([]byte("draft")); err != nil {
		t.Fatal(err)
	}
	if err := out.(Discarder).Discard(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("discarded output exists: %v", err)
	}

	out, err = FileOutput(doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Write([]byte("final")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("output visible before close: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "final" {
		t.Errorf("output = %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("%d files in output dir", len(entries))
	}
}
