package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"l10nkit/internal/filter"
	"l10nkit/internal/filter/json"
	"l10nkit/internal/filter/properties"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

func TestForPath(t *testing.T) {
	r := New(zerolog.Nop())
	cases := map[string]string{
		"a/b/messages.properties": properties.Name,
		"strings.JSON":            json.Name,
		"fr.po":                   "okf_po",
		"index.htm":               "okf_html",
	}
	for path, want := range cases {
		if got, ok := r.ForPath(path); !ok || got != want {
			t.Errorf("ForPath(%q) = %q, %v; want %q", path, got, ok, want)
		}
	}
	if _, ok := r.ForPath("image.png"); ok {
		t.Error("png mapped to a filter")
	}
}

func TestCreateBuiltins(t *testing.T) {
	r := New(zerolog.Nop())
	for _, id := range r.IDs() {
		f, err := r.Create(id)
		if err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
		if f.Name() != id {
			t.Errorf("Create(%s).Name() = %s", id, f.Name())
		}
	}
	if _, err := r.Create("okf_xml"); !errors.Is(err, filter.ErrInvalidConfig) {
		t.Errorf("unknown id: err = %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"okf_json@paths.yml": "useFullKeyPath: true\nuseLeadingSlashOnKeyPath: false\n",
		"okf_properties.yml": "useKeyCondition: true\nkeyCondition: \"title.*\"\n",
		"notes.txt":          "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := New(zerolog.Nop())
	if err := r.LoadDir(dir); err != nil {
		t.Fatal(err)
	}
	c, ok := r.Lookup("okf_json@paths")
	if !ok || c.Filter != json.Name || c.Path == "" {
		t.Fatalf("custom config = %+v, %v", c, ok)
	}

	f, err := r.Create("okf_json@paths")
	if err != nil {
		t.Fatal(err)
	}
	p := f.Parameters().(*json.Params)
	if !p.UseFullKeyPath || p.UseLeadingSlashOnKeyPath || !p.ExtractAllPairs {
		t.Errorf("params = %+v", p)
	}

	pf, err := r.Create(properties.Name)
	if err != nil {
		t.Fatal(err)
	}
	if pp := pf.Parameters().(*properties.Params); !pp.UseKeyCondition || pp.KeyCondition != "title.*" {
		t.Errorf("properties params = %+v", pp)
	}
}

func TestInvalidConfigs(t *testing.T) {
	r := New(zerolog.Nop())
	cases := map[string]string{
		"okf_json@bad":       "exceptions: \"[a-\"\n",
		"okf_json@unknown":   "noSuchField: true\n",
		"okf_xml@x":          "",
		"okf_properties@cf":  "useCodeFinder: true\ncodeFinderRules:\n  - name: broken\n    pattern: \"(\"\n",
		"okf_html@emptyattr": "translatableAttributes: [\"\"]\n",
	}
	for id, raw := range cases {
		if err := r.Add(id, []byte(raw)); !errors.Is(err, filter.ErrInvalidConfig) {
			t.Errorf("Add(%s): err = %v, want ErrInvalidConfig", id, err)
		}
	}
	if _, ok := r.Lookup("okf_json@bad"); ok {
		t.Error("invalid config registered")
	}
}

func TestSubfilterThroughRegistry(t *testing.T) {
	r := New(zerolog.Nop())
	if err := r.Add("okf_json@html", []byte("subfilter: okf_html\nescapeForwardSlashes: false\n")); err != nil {
		t.Fatal(err)
	}
	f, err := r.Create("okf_json@html")
	if err != nil {
		t.Fatal(err)
	}
	doc := &resource.RawDocument{URI: "t.json", Content: []byte(`{"k": "<p>Hi <b>there</b></p>"}`), Encoding: "UTF-8"}
	if err := f.Open(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	events, err := filter.Drain(f)
	if err != nil {
		t.Fatal(err)
	}
	var kinds []resource.EventKind
	for _, e := range events {
		if e.Kind() == resource.KindStartSubfilter || e.Kind() == resource.KindTextUnit {
			kinds = append(kinds, e.Kind())
		}
	}
	if len(kinds) != 2 || kinds[0] != resource.KindStartSubfilter || kinds[1] != resource.KindTextUnit {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestMapExtension(t *testing.T) {
	r := New(zerolog.Nop())
	if err := r.MapExtension(".strings", "okf_nope"); !errors.Is(err, filter.ErrInvalidConfig) {
		t.Errorf("err = %v", err)
	}
	if err := r.MapExtension(".STRINGS", properties.Name); err != nil {
		t.Fatal(err)
	}
	if id, ok := r.ForPath("Localizable.strings"); !ok || id != properties.Name {
		t.Errorf("ForPath = %q, %v", id, ok)
	}
}
