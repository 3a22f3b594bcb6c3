package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"l10nkit/internal/config"
	"l10nkit/internal/filewalker"
	"l10nkit/internal/pipeline"
	"l10nkit/internal/registry"
	"l10nkit/internal/resource"
	"l10nkit/internal/terminology"
	"l10nkit/internal/tm"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "l10nkit",
		Short:        "Extract, translate and merge localizable files",
		Long:         "A localization toolkit: filters turn resource files into text units, pipelines of steps work on them, writers rebuild the files or produce PO.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(filtersCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(roundtripCmd())
	rootCmd.AddCommand(pseudoCmd())
	rootCmd.AddCommand(leverageCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(tmCmd())
	rootCmd.AddCommand(glossaryCmd())

	return rootCmd
}

// setupContext creates a cancellable context that responds to OS signals.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// loadConfig reads the configuration and applies its log level.
func loadConfig() *config.Config {
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg
}

// newRegistry returns the built-in filter configurations plus those found
// in dir, if any.
func newRegistry(dir string) (*registry.Registry, error) {
	reg := registry.New(log.Logger)
	if dir == "" {
		return reg, nil
	}
	if err := reg.LoadDir(dir); err != nil {
		return nil, fmt.Errorf("load filter configurations: %w", err)
	}
	log.Info().Str("dir", dir).Int("configs", len(reg.IDs())).Msg("Loaded filter configurations")
	return reg, nil
}

// inputFlags are shared by the commands reading a tree of documents.
type inputFlags struct {
	source    string
	target    string
	encoding  string
	configID  string
	filterDir string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "source locale (default $SOURCE_LOCALE)")
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "target locale (default $TARGET_LOCALE)")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "input encoding, UTF-8 when empty")
	cmd.Flags().StringVar(&f.configID, "config", "", "filter configuration for every file, e.g. okf_json@strings")
	cmd.Flags().StringVar(&f.filterDir, "filters", "", "directory of filter configuration files (default $FILTER_CONFIG_DIR)")
}

// documentSet is a walked input tree ready for a pipeline.
type documentSet struct {
	cfg  *config.Config
	reg  *registry.Registry
	docs []*resource.RawDocument
}

// loadDocuments walks input and reads its documents. outDir and outExt set
// the output paths, mirroring the input tree.
func (f *inputFlags) loadDocuments(input, outDir, outExt string) (*documentSet, error) {
	cfg := loadConfig()
	if f.filterDir != "" {
		cfg.FilterConfigDir = f.filterDir
	}
	reg, err := newRegistry(cfg.FilterConfigDir)
	if err != nil {
		return nil, err
	}

	w := filewalker.NewWalker(reg)
	w.ConfigID = f.configID
	entries, err := w.Walk(input)
	if err != nil {
		return nil, fmt.Errorf("walk input: %w", err)
	}

	docs, err := filewalker.Documents(entries, filewalker.DocumentOptions{
		SourceLocale: resource.NewLocaleID(firstNonEmpty(f.source, cfg.SourceLocale)),
		TargetLocale: resource.NewLocaleID(firstNonEmpty(f.target, cfg.TargetLocale)),
		Encoding:     f.encoding,
		OutputDir:    outDir,
		OutputExt:    outExt,
	})
	if err != nil {
		return nil, err
	}
	return &documentSet{cfg: cfg, reg: reg, docs: docs}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// buildFunc creates the steps of the pipeline for one document.
type buildFunc func(doc *resource.RawDocument) ([]pipeline.Step, error)

// runEach gives every document its own pipeline and runs up to workers of
// them at once. A failing document does not stop the others; a fatal error
// or a cancelled context does.
func runEach(ctx context.Context, docs []*resource.RawDocument, workers int, build buildFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var (
		mu       sync.Mutex
		failures []error
	)
	fail := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	for _, doc := range docs {
		g.Go(func() error {
			steps, err := build(doc)
			if err != nil {
				log.Error().Err(err).Str("doc", doc.URI).Msg("Document skipped")
				fail(&pipeline.DocumentFailure{URI: doc.URI, Err: err})
				return nil
			}
			p := pipeline.New(log.Logger.With().Str("doc", doc.URI).Logger(), steps...)
			rep, err := p.Execute(gctx, []*resource.RawDocument{doc})
			if err != nil {
				return fmt.Errorf("%s: %w", doc.URI, err)
			}
			if ferr := rep.Err(); ferr != nil {
				fail(ferr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().
		Int("documents", len(docs)).
		Int("failed", len(failures)).
		Msg("Documents processed")
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d documents failed: %w", len(failures), len(docs), errors.Join(failures...))
	}
	return nil
}

// runBatch runs all documents through one pipeline, for steps that need
// the whole batch.
func runBatch(ctx context.Context, docs []*resource.RawDocument, steps ...pipeline.Step) (*pipeline.Report, error) {
	p := pipeline.New(log.Logger, steps...)
	rep, err := p.Execute(ctx, docs)
	if err != nil {
		return rep, err
	}
	if ferr := rep.Err(); ferr != nil {
		return rep, fmt.Errorf("%d of %d documents failed: %w", len(rep.Failures), rep.Documents, ferr)
	}
	return rep, nil
}

// openTM opens the PostgreSQL memory when DATABASE_URL is set, the SQLite
// file at TM_PATH otherwise.
func openTM(ctx context.Context, cfg *config.Config) (tm.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := tm.OpenPostgres(ctx, cfg.DatabaseURL, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Connected to PostgreSQL translation memory")
		return store, nil
	}
	store, err := tm.OpenSQLite(cfg.TMPath, log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.TMPath).Msg("Opened SQLite translation memory")
	return store, nil
}

// openNeo4j connects to the glossary graph.
func openNeo4j(ctx context.Context, cfg *config.Config) (*terminology.Neo4jGlossary, error) {
	g, err := terminology.OpenNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Connected to Neo4j")
	return g, nil
}
