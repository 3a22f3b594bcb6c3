package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"l10nkit/internal/registry"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog/log"
)

// Walker traverses directories and picks the filter configuration of each
// file from the registry's extension map.
type Walker struct {
	reg *registry.Registry
	// ConfigID forces one configuration for every file, whatever its
	// extension.
	ConfigID string
}

// NewWalker creates a Walker over the extensions known to reg.
func NewWalker(reg *registry.Registry) *Walker {
	return &Walker{reg: reg}
}

// FileEntry represents a discovered file ready for processing.
type FileEntry struct {
	Path     string
	Rel      string
	Ext      string
	ConfigID string
}

// Walk discovers all supported files under root. A root naming a single
// file yields that file alone. Hidden directories are skipped.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		entry, ok := w.entry(filepath.Dir(root), root)
		if !ok {
			return nil, fmt.Errorf("no filter configuration for %s", root)
		}
		return []FileEntry{entry}, nil
	}

	var entries []FileEntry

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}

		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if entry, ok := w.entry(root, path); ok {
			entries = append(entries, entry)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered files")
	return entries, nil
}

func (w *Walker) entry(root, path string) (FileEntry, bool) {
	id := w.ConfigID
	if id == "" {
		var ok bool
		if id, ok = w.reg.ForPath(path); !ok {
			return FileEntry{}, false
		}
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return FileEntry{
		Path:     path,
		Rel:      filepath.ToSlash(rel),
		Ext:      strings.ToLower(filepath.Ext(path)),
		ConfigID: id,
	}, true
}

// DocumentOptions describes how discovered files become raw documents.
type DocumentOptions struct {
	SourceLocale resource.LocaleID
	TargetLocale resource.LocaleID
	// Encoding is the declared input encoding, "" for UTF-8.
	Encoding string
	// OutputDir mirrors the input tree when set. Documents get no output
	// path otherwise.
	OutputDir string
	// OutputExt is appended to each output path, e.g. ".po".
	OutputExt      string
	OutputEncoding string
}

// Documents reads the files of entries into raw documents.
func Documents(entries []FileEntry, opts DocumentOptions) ([]*resource.RawDocument, error) {
	docs := make([]*resource.RawDocument, 0, len(entries))
	for _, e := range entries {
		content, err := os.ReadFile(e.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Path, err)
		}
		doc := &resource.RawDocument{
			URI:            e.Path,
			Content:        content,
			Encoding:       opts.Encoding,
			SourceLocale:   opts.SourceLocale,
			TargetLocale:   opts.TargetLocale,
			FilterConfigID: e.ConfigID,
			OutputEncoding: opts.OutputEncoding,
		}
		if opts.OutputDir != "" {
			doc.OutputPath = filepath.Join(opts.OutputDir, filepath.FromSlash(e.Rel)) + opts.OutputExt
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
