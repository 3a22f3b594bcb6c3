package steps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"
	"l10nkit/internal/writer"

	"github.com/rs/zerolog"
)

// OutputFunc opens the destination of a document.
type OutputFunc func(doc *resource.RawDocument) (io.WriteCloser, error)

// Discarder is an output that can be dropped instead of committed.
type Discarder interface {
	Discard() error
}

// FileOutput writes each document to a temporary file next to its
// OutputPath, creating parent directories. Close renames it over OutputPath;
// Discard removes it and leaves any existing file untouched.
func FileOutput(doc *resource.RawDocument) (io.WriteCloser, error) {
	if doc == nil || doc.OutputPath == "" {
		return nil, writer.ErrNoOutput
	}
	dir := filepath.Dir(doc.OutputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(doc.OutputPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &pendingFile{File: f, path: doc.OutputPath}, nil
}

// pendingFile is an output file that only replaces its destination once
// closed.
type pendingFile struct {
	*os.File
	path string
}

func (f *pendingFile) Close() error {
	if err := f.File.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(f.Name(), f.path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("commit output: %w", err)
	}
	return nil
}

func (f *pendingFile) Discard() error {
	f.File.Close()
	if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discard output: %w", err)
	}
	return nil
}

// WriterOptions configures a WriterStep.
type WriterOptions struct {
	// PO writes PO files instead of rebuilding the original format.
	PO *writer.POOptions
	// Locale overrides the target locale of the documents.
	Locale resource.LocaleID
	// Output defaults to FileOutput.
	Output OutputFunc
	Log    zerolog.Logger
}

// WriterStep writes every document that flows through it and passes the
// events on unchanged.
type WriterStep struct {
	pipeline.BaseStep
	opts WriterOptions

	doc *resource.RawDocument
	w   writer.Writer
	out io.WriteCloser
}

// NewWriterStep creates the step.
func NewWriterStep(opts WriterOptions) *WriterStep {
	if opts.Output == nil {
		opts.Output = FileOutput
	}
	s := &WriterStep{opts: opts}
	s.StepName = "writer"
	s.Handlers = pipeline.Handlers{
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.doc = e.RawDocument()
			return e, nil
		},
		StartDocument:    s.start,
		EndDocument:      s.end,
		StartSubDocument: s.forward,
		EndSubDocument:   s.forward,
		StartGroup:       s.forward,
		EndGroup:         s.forward,
		StartSubfilter:   s.forward,
		EndSubfilter:     s.forward,
		TextUnit:         s.forward,
		DocumentPart:     s.forward,
	}
	return s
}

func (s *WriterStep) newWriter() writer.Writer {
	loc := s.opts.Locale
	enc := ""
	if s.doc != nil {
		if loc.IsEmpty() {
			loc = s.doc.TargetLocale
		}
		enc = s.doc.OutputEncoding
	}
	base := writer.Options{Locale: loc, Encoding: enc, Log: s.opts.Log}
	if s.opts.PO != nil {
		po := *s.opts.PO
		po.Options = base
		return writer.NewPOWriter(po)
	}
	return writer.NewGenericWriter(base)
}

func (s *WriterStep) start(ctx context.Context, e resource.Event) (resource.Event, error) {
	if err := s.discardOutput(); err != nil {
		return resource.Event{}, err
	}
	out, err := s.opts.Output(s.doc)
	if err != nil {
		return resource.Event{}, err
	}
	s.w = s.newWriter()
	s.out = out
	s.w.SetOutput(out)
	return s.forward(ctx, e)
}

func (s *WriterStep) forward(_ context.Context, e resource.Event) (resource.Event, error) {
	if s.w == nil {
		return e, nil
	}
	if err := s.w.HandleEvent(e); err != nil {
		return resource.Event{}, err
	}
	return e, nil
}

func (s *WriterStep) end(ctx context.Context, e resource.Event) (resource.Event, error) {
	if _, err := s.forward(ctx, e); err != nil {
		s.discardOutput()
		return resource.Event{}, err
	}
	if err := s.closeOutput(); err != nil {
		return resource.Event{}, err
	}
	if s.doc != nil && s.doc.OutputPath != "" {
		s.opts.Log.Info().Str("doc", s.doc.URI).Str("output", s.doc.OutputPath).Msg("Document written")
	}
	return e, nil
}

func (s *WriterStep) closeOutput() error {
	var errs []error
	if s.w != nil {
		errs = append(errs, s.w.Close())
		s.w = nil
	}
	if s.out != nil {
		errs = append(errs, s.out.Close())
		s.out = nil
	}
	return errors.Join(errs...)
}

// discardOutput drops an unfinished document. Outputs that cannot be
// discarded are closed.
func (s *WriterStep) discardOutput() error {
	if s.w != nil {
		s.w.Close()
		s.w = nil
	}
	out := s.out
	s.out = nil
	switch o := out.(type) {
	case nil:
		return nil
	case Discarder:
		return o.Discard()
	default:
		return o.Close()
	}
}

// Abort drops the output of a document that failed.
func (s *WriterStep) Abort() {
	if err := s.discardOutput(); err != nil {
		s.opts.Log.Warn().Err(err).Msg("Discarding output failed")
	}
}

func (s *WriterStep) Destroy() error { return s.discardOutput() }
