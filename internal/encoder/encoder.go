package encoder

import (
	"strings"
	"sync"
)

// Context tells an encoder where the text goes.
type Context int

const (
	// ContextText is translatable content.
	ContextText Context = iota
	// ContextInline is the original data of an inline code.
	ContextInline
	// ContextSkeleton is literal skeleton text.
	ContextSkeleton
)

// Well-known mime types.
const (
	MimeDefault    = "text/plain"
	MimeProperties = "text/x-properties"
	MimeJSON       = "application/json"
	MimePHP        = "application/x-php"
	MimePO         = "application/x-gettext"
	MimeHTML       = "text/html"
)

// Encoder re-escapes text for one format on output.
type Encoder interface {
	// SetOptions configures the encoder for one document. params is the
	// filter parameter struct of the document, or nil.
	SetOptions(params any, encoding, lineBreak string)
	// Encode escapes text. Line breaks in text are "\n".
	Encode(text string, ctx Context) string
	// LineBreak returns the line break of the output.
	LineBreak() string
}

// base handles line-break expansion shared by all encoders.
type base struct {
	encoding  string
	lineBreak string
}

func (b *base) SetOptions(_ any, encoding, lineBreak string) {
	b.encoding = encoding
	b.lineBreak = lineBreak
}

func (b *base) LineBreak() string {
	if b.lineBreak == "" {
		return "\n"
	}
	return b.lineBreak
}

func (b *base) expand(text string) string {
	if b.lineBreak == "" || b.lineBreak == "\n" {
		return text
	}
	return strings.ReplaceAll(text, "\n", b.lineBreak)
}

// DefaultEncoder only restores line breaks.
type DefaultEncoder struct{ base }

// NewDefaultEncoder creates a DefaultEncoder.
func NewDefaultEncoder() *DefaultEncoder { return &DefaultEncoder{} }

func (e *DefaultEncoder) Encode(text string, _ Context) string { return e.expand(text) }

// Factory creates an encoder instance.
type Factory func() Encoder

// Manager hands out encoders by mime type. Each document gets fresh
// instances so options never leak between documents.
type Manager struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Encoder
	params    any
	encoding  string
	lineBreak string
}

// NewManager creates a manager knowing all built-in encoders.
func NewManager() *Manager {
	return &Manager{
		factories: map[string]Factory{
			MimeDefault:    func() Encoder { return NewDefaultEncoder() },
			MimeProperties: func() Encoder { return NewPropertiesEncoder() },
			MimeJSON:       func() Encoder { return NewJSONEncoder() },
			MimePHP:        func() Encoder { return NewDefaultEncoder() },
			MimePO:         func() Encoder { return NewPOEncoder() },
			MimeHTML:       func() Encoder { return NewHTMLEncoder() },
		},
		active: make(map[string]Encoder),
	}
}

// Register adds or replaces the factory for a mime type.
func (m *Manager) Register(mime string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[mime] = f
}

// SetDefaultOptions sets the options applied to every encoder created from
// now on and resets the active set.
func (m *Manager) SetDefaultOptions(params any, encoding, lineBreak string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params, m.encoding, m.lineBreak = params, encoding, lineBreak
	m.active = make(map[string]Encoder)
}

// Encoder returns the encoder for mime, creating and configuring it on
// first use. Unknown types get the default encoder.
func (m *Manager) Encoder(mime string) Encoder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.active[mime]; ok {
		return e
	}
	f, ok := m.factories[mime]
	if !ok {
		f = m.factories[MimeDefault]
	}
	e := f()
	e.SetOptions(m.params, m.encoding, m.lineBreak)
	m.active[mime] = e
	return e
}

// NewEncoder returns a fresh encoder for mime with explicit options,
// outside the per-document cache. Used for subfilter output.
func (m *Manager) NewEncoder(mime string, params any, encoding, lineBreak string) Encoder {
	m.mu.RLock()
	f, ok := m.factories[mime]
	if !ok {
		f = m.factories[MimeDefault]
	}
	m.mu.RUnlock()
	e := f()
	e.SetOptions(params, encoding, lineBreak)
	return e
}
