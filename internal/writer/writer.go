package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"l10nkit/internal/encoder"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

var (
	// ErrPluralGroup is returned when a plural group holds fewer than two
	// entries.
	ErrPluralGroup = errors.New("plural group needs at least two entries")
	// ErrUnresolvedReference is returned for a skeleton reference without a
	// matching resource.
	ErrUnresolvedReference = errors.New("unresolved skeleton reference")
	// ErrNoOutput is returned when a document ends before SetOutput.
	ErrNoOutput = errors.New("no output set")
)

// Writer rebuilds a document from its events.
type Writer interface {
	// SetOutput sets where the next document goes.
	SetOutput(w io.Writer)
	HandleEvent(e resource.Event) error
	Close() error
}

// Options configures a writer.
type Options struct {
	// Locale is the target written for each unit. Units without a target
	// in Locale fall back to their source.
	Locale resource.LocaleID
	// Encoding overrides the encoding of the input document.
	Encoding string
	// Encoders supplies per-format encoders. Nil means built-ins.
	Encoders *encoder.Manager
	Log      zerolog.Logger
}

func (o Options) manager() *encoder.Manager {
	if o.Encoders != nil {
		return o.Encoders
	}
	return encoder.NewManager()
}

// Render writes events through w and returns the bytes produced.
func Render(w Writer, events []resource.Event) ([]byte, error) {
	var buf bytes.Buffer
	w.SetOutput(&buf)
	for _, e := range resource.Flatten(events) {
		if err := w.HandleEvent(e); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pickContainer returns the target in loc, or the source when there is
// none. With targetOnly a missing target yields nil.
func pickContainer(tu *resource.TextUnit, loc resource.LocaleID, targetOnly bool) *resource.TextContainer {
	if !loc.IsEmpty() {
		if tc := tu.Target(loc); tc != nil {
			return tc
		}
	}
	if targetOnly {
		return nil
	}
	return tu.Source
}

func content(tc *resource.TextContainer) *resource.TextFragment {
	if tc.IsSegmented() {
		return tc.Unsegmented()
	}
	return tc.FirstContent()
}

func unresolved(id string) error {
	return fmt.Errorf("%w: %q", ErrUnresolvedReference, id)
}
