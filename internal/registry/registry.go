package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"l10nkit/internal/filter"
	"l10nkit/internal/filter/html"
	"l10nkit/internal/filter/json"
	"l10nkit/internal/filter/php"
	"l10nkit/internal/filter/po"
	"l10nkit/internal/filter/properties"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ConfigExt is the extension of filter parameter files.
const ConfigExt = ".yml"

// NewFilter builds a filter from raw yaml parameters. Empty raw means the
// filter defaults.
type NewFilter func(raw []byte, log zerolog.Logger) (filter.Filter, error)

// strictUnmarshal decodes raw over the defaults already in v, rejecting
// unknown fields.
func strictUnmarshal(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return filter.ConfigError("%v", err)
	}
	return nil
}

// Builtin maps each built-in configuration id to its factory.
var Builtin = map[string]NewFilter{
	properties.Name: func(raw []byte, log zerolog.Logger) (filter.Filter, error) {
		p := properties.DefaultParams()
		if err := strictUnmarshal(raw, p); err != nil {
			return nil, err
		}
		return properties.New(p, log)
	},
	json.Name: func(raw []byte, log zerolog.Logger) (filter.Filter, error) {
		p := json.DefaultParams()
		if err := strictUnmarshal(raw, p); err != nil {
			return nil, err
		}
		return json.New(p, log)
	},
	php.Name: func(raw []byte, log zerolog.Logger) (filter.Filter, error) {
		p := php.DefaultParams()
		if err := strictUnmarshal(raw, p); err != nil {
			return nil, err
		}
		return php.New(p, log)
	},
	po.Name: func(raw []byte, log zerolog.Logger) (filter.Filter, error) {
		p := po.DefaultParams()
		if err := strictUnmarshal(raw, p); err != nil {
			return nil, err
		}
		return po.New(p, log)
	},
	html.Name: func(raw []byte, log zerolog.Logger) (filter.Filter, error) {
		p := html.DefaultParams()
		if err := strictUnmarshal(raw, p); err != nil {
			return nil, err
		}
		return html.New(p, log)
	},
}

// BuiltinExtensions maps file extensions to built-in configuration ids.
var BuiltinExtensions = map[string]string{
	".properties": properties.Name,
	".json":       json.Name,
	".php":        php.Name,
	".po":         po.Name,
	".pot":        po.Name,
	".html":       html.Name,
	".htm":        html.Name,
}

// Config is one filter configuration: a built-in filter with its
// parameters.
type Config struct {
	ID     string
	Filter string
	Raw    []byte
	// Path is the file the parameters were loaded from, "" for built-ins.
	Path string
}

// Registry resolves configuration ids to fresh filter instances. Custom
// configurations are named "<filter>@<name>", e.g. "okf_json@strings".
type Registry struct {
	log zerolog.Logger

	mu      sync.RWMutex
	configs map[string]Config
	exts    map[string]string
}

// New creates a registry holding the built-in configurations.
func New(log zerolog.Logger) *Registry {
	r := &Registry{
		log:     log,
		configs: make(map[string]Config, len(Builtin)),
		exts:    make(map[string]string, len(BuiltinExtensions)),
	}
	for id := range Builtin {
		r.configs[id] = Config{ID: id, Filter: id}
	}
	for ext, id := range BuiltinExtensions {
		r.exts[ext] = id
	}
	return r
}

// BaseFilter returns the built-in filter part of a configuration id.
func BaseFilter(configID string) string {
	base, _, _ := strings.Cut(configID, "@")
	return base
}

// Add registers parameters under configID after checking that they build
// a valid filter.
func (r *Registry) Add(configID string, raw []byte) error {
	base := BaseFilter(configID)
	newFilter, ok := Builtin[base]
	if !ok {
		return fmt.Errorf("%w: unknown filter %q", filter.ErrInvalidConfig, base)
	}
	if _, err := newFilter(raw, zerolog.Nop()); err != nil {
		return fmt.Errorf("config %s: %w", configID, err)
	}
	r.mu.Lock()
	r.configs[configID] = Config{ID: configID, Filter: base, Raw: raw}
	r.mu.Unlock()
	return nil
}

// LoadDir registers every "<config-id>.yml" file of dir. A file named after
// a built-in id replaces its defaults.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read filter config dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ConfigExt {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read filter config: %w", err)
		}
		id := strings.TrimSuffix(e.Name(), ConfigExt)
		if err := r.Add(id, raw); err != nil {
			return err
		}
		r.mu.Lock()
		c := r.configs[id]
		c.Path = path
		r.configs[id] = c
		r.mu.Unlock()
		n++
	}
	r.log.Info().Int("count", n).Str("dir", dir).Msg("Loaded filter configurations")
	return nil
}

// MapExtension makes files with ext use configID.
func (r *Registry) MapExtension(ext, configID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[configID]; !ok {
		return fmt.Errorf("%w: unknown filter configuration %q", filter.ErrInvalidConfig, configID)
	}
	r.exts[strings.ToLower(ext)] = configID
	return nil
}

// Create returns a new filter for configID. Filters that support
// subfilters resolve them through the registry.
func (r *Registry) Create(configID string) (filter.Filter, error) {
	r.mu.RLock()
	c, ok := r.configs[configID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown filter configuration %q", filter.ErrInvalidConfig, configID)
	}
	f, err := Builtin[c.Filter](c.Raw, r.log.With().Str("filter", configID).Logger())
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", configID, err)
	}
	if sa, ok := f.(filter.SubfilterAware); ok {
		sa.SetSubfilterFactory(r.Create)
	}
	return f, nil
}

// ForPath returns the configuration id for a file, by extension.
func (r *Registry) ForPath(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.exts[strings.ToLower(filepath.Ext(path))]
	return id, ok
}

// IDs returns the registered configuration ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Extensions returns the mapped extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.exts))
	for ext := range r.exts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Lookup returns the configuration registered under configID.
func (r *Registry) Lookup(configID string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[configID]
	return c, ok
}
