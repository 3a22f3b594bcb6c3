package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/registry"
	"l10nkit/internal/resource"
	"l10nkit/internal/steps"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("FILTER_CONFIG_DIR", "")
	t.Setenv("TM_PATH", filepath.Join(dir, "tm.db"))
	t.Setenv("SOURCE_LOCALE", "en")
	t.Setenv("TARGET_LOCALE", "fr")
	t.Setenv("WORKER_COUNT", "2")
	log.Logger = zerolog.Nop()
	return dir
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var sampleTree = map[string]string{
	"app.properties":     "# Labels\nsave=Save\ncancel=Cancel changes\n",
	"web/strings.json":   `{"title": "Settings", "items": ["Open", "Close"]}`,
	"web/page.html":      "<html><body><p>Hello <b>world</b></p></body></html>",
	"web/notes.markdown": "not a known format",
}

func TestRoundtripCommand(t *testing.T) {
	dir := setEnv(t)
	in, out := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	writeTree(t, in, sampleTree)

	if _, err := execute(t, "roundtrip", in, out); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"app.properties", "web/strings.json", "web/page.html"} {
		got := readFile(t, filepath.Join(out, filepath.FromSlash(name)))
		if got != sampleTree[name] {
			t.Errorf("%s:\n%s\nwant:\n%s", name, got, sampleTree[name])
		}
	}
	if _, err := os.Stat(filepath.Join(out, "web", "notes.markdown")); err == nil {
		t.Error("unknown format written")
	}
}

func TestExtractThenMerge(t *testing.T) {
	dir := setEnv(t)
	in, poDir, out := filepath.Join(dir, "in"), filepath.Join(dir, "po"), filepath.Join(dir, "out")
	writeTree(t, in, map[string]string{"app.properties": sampleTree["app.properties"]})

	if _, err := execute(t, "extract", in, poDir); err != nil {
		t.Fatal(err)
	}
	poText := readFile(t, filepath.Join(poDir, "app.properties.po"))
	if !strings.Contains(poText, `msgid "Cancel changes"`) || !strings.Contains(poText, "msgctxt") {
		t.Fatalf("po:\n%s", poText)
	}

	translated := strings.Replace(poText, "msgid \"Save\"\nmsgstr \"\"", "msgid \"Save\"\nmsgstr \"Enregistrer\"", 1)
	if translated == poText {
		t.Fatalf("no Save entry in:\n%s", poText)
	}
	if err := os.WriteFile(filepath.Join(poDir, "app.properties.po"), []byte(translated), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "merge", in, poDir, out); err != nil {
		t.Fatal(err)
	}
	want := "# Labels\nsave=Enregistrer\ncancel=Cancel changes\n"
	if got := readFile(t, filepath.Join(out, "app.properties")); got != want {
		t.Errorf("merged:\n%s\nwant:\n%s", got, want)
	}
}

func TestMergeWithoutTranslationsFails(t *testing.T) {
	dir := setEnv(t)
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"app.properties": "a=b\n"})

	_, err := execute(t, "merge", in, filepath.Join(dir, "po"), filepath.Join(dir, "out"))
	if err == nil || !strings.Contains(err.Error(), "1 of 1 documents failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestScanCommand(t *testing.T) {
	dir := setEnv(t)
	writeTree(t, dir, map[string]string{"app.properties": sampleTree["app.properties"]})

	out, err := execute(t, "scan", "--units", filepath.Join(dir, "app.properties"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2 units\t3 words") || !strings.Contains(out, "Cancel changes") {
		t.Errorf("scan output:\n%s", out)
	}
}

func TestPseudoCommand(t *testing.T) {
	dir := setEnv(t)
	in, out := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	writeTree(t, in, map[string]string{"strings.json": `{"a": "Hello"}`})

	if _, err := execute(t, "pseudo", in, out); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(out, "strings.json")); got != `{"a": "[Ĥéļļö]"}` {
		t.Errorf("pseudo = %s", got)
	}
}

func TestTMImportLookupAndLeverage(t *testing.T) {
	dir := setEnv(t)
	bilingual := filepath.Join(dir, "tm")
	writeTree(t, bilingual, map[string]string{"fr.po": "msgid \"\"\nmsgstr \"\"\n\"Content-Type: text/plain; charset=UTF-8\\n\"\n\nmsgid \"Save\"\nmsgstr \"Enregistrer\"\n\nmsgid \"Settings\"\nmsgstr \"Paramètres\"\n"})

	if _, err := execute(t, "tm", "import", bilingual); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "tm", "stats")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2 entries") {
		t.Fatalf("stats = %q", out)
	}

	out, err = execute(t, "tm", "lookup", "Save")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1.00") || !strings.Contains(out, "Enregistrer") {
		t.Errorf("lookup:\n%s", out)
	}

	in, target := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	writeTree(t, in, map[string]string{"app.json": `{"save": "Save", "title": "Settings", "other": "Unknown"}`})
	if _, err := execute(t, "leverage", "--threshold", "1", in, target); err != nil {
		t.Fatal(err)
	}
	want := `{"save": "Enregistrer", "title": "Paramètres", "other": "Unknown"}`
	if got := readFile(t, filepath.Join(target, "app.json")); got != want {
		t.Errorf("leveraged = %s, want %s", got, want)
	}
}

func TestCheckCommand(t *testing.T) {
	dir := setEnv(t)
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"fr.po": "msgid \"Open file\"\nmsgstr \"Ouvrir le fichier\"\n\nmsgctxt \"menu\"\nmsgid \"Open file\"\nmsgstr \"Ouvrez le fichier\"\n"})
	glossary := filepath.Join(dir, "terms.tsv")
	writeTree(t, dir, map[string]string{"terms.tsv": "file\tfichier\n"})

	out, err := execute(t, "check", "--glossary", glossary, in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "file=fichier") {
		t.Errorf("no term hit in:\n%s", out)
	}
	if !strings.Contains(out, "Ouvrez le fichier") || !strings.Contains(out, "source") {
		t.Errorf("no inconsistency in:\n%s", out)
	}
}

func TestFiltersCommand(t *testing.T) {
	setEnv(t)
	out, err := execute(t, "filters")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"okf_json", ".json", "okf_po", ".pot", "built-in"} {
		if !strings.Contains(out, want) {
			t.Errorf("filters output lacks %q:\n%s", want, out)
		}
	}
}

func TestRunEachRecordsFailures(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	docs := []*resource.RawDocument{
		{URI: "ok.json", Content: []byte(`{"a": "b"}`), SourceLocale: "en"},
		{URI: "bad.txt", Content: []byte("x"), SourceLocale: "en"},
	}
	var built int
	err := runEach(context.Background(), docs, 1, func(*resource.RawDocument) ([]pipeline.Step, error) {
		built++
		return []pipeline.Step{steps.NewExtraction(reg, zerolog.Nop())}, nil
	})
	if err == nil || !strings.Contains(err.Error(), "1 of 2 documents failed") {
		t.Fatalf("err = %v", err)
	}
	if built != 2 {
		t.Errorf("built %d pipelines", built)
	}
}
