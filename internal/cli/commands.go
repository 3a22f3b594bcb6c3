package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"l10nkit/internal/filter/po"
	"l10nkit/internal/pipeline"
	"l10nkit/internal/registry"
	"l10nkit/internal/resource"
	"l10nkit/internal/steps"
	"l10nkit/internal/terminology"
	"l10nkit/internal/textutil"
	"l10nkit/internal/tm"
	"l10nkit/internal/writer"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func filtersCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "List filter configurations and the extensions mapped to them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			reg, err := newRegistry(firstNonEmpty(dir, cfg.FilterConfigDir))
			if err != nil {
				return err
			}
			return printFilters(cmd.OutOrStdout(), reg)
		},
	}
	cmd.Flags().StringVar(&dir, "filters", "", "directory of filter configuration files")
	return cmd
}

func printFilters(out io.Writer, reg *registry.Registry) error {
	byID := make(map[string][]string)
	for _, ext := range reg.Extensions() {
		id, _ := reg.ForPath("x" + ext)
		byID[id] = append(byID[id], ext)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONFIG\tFILTER\tEXTENSIONS\tSOURCE")
	for _, id := range reg.IDs() {
		c, _ := reg.Lookup(id)
		src := c.Path
		if src == "" {
			src = "built-in"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, c.Filter, strings.Join(byID[id], " "), src)
	}
	return tw.Flush()
}

// unitCounter is a step counting the translatable units and words of each
// document.
type unitCounter struct {
	pipeline.BaseStep
	out     io.Writer
	verbose bool

	doc          string
	units, words int
}

func newUnitCounter(out io.Writer, verbose bool) *unitCounter {
	s := &unitCounter{out: out, verbose: verbose}
	s.StepName = "scan"
	s.Handlers = pipeline.Handlers{
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.doc, s.units, s.words = e.RawDocument().URI, 0, 0
			return e, nil
		},
		TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
			tu := e.TextUnit()
			if !tu.Translatable || tu.IsEmpty() {
				return e, nil
			}
			text := tu.Source.Unsegmented().Text()
			s.units++
			s.words += len(strings.Fields(text))
			if s.verbose {
				fmt.Fprintf(s.out, "  %s\t%s\t%s\n", tu.ID, tu.Name, textutil.Truncate(resource.ToGeneric(tu.Source.Unsegmented()), 60))
			}
			return e, nil
		},
		EndDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			fmt.Fprintf(s.out, "%s\t%d units\t%d words\n", s.doc, s.units, s.words)
			return e, nil
		},
	}
	return s
}

func scanCmd() *cobra.Command {
	var (
		in      inputFlags
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "scan <input>",
		Short: "List the documents of a tree with their unit and word counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			set, err := in.loadDocuments(args[0], "", "")
			if err != nil {
				return err
			}
			_, err = runBatch(ctx, set.docs,
				steps.NewExtraction(set.reg, log.Logger),
				newUnitCounter(cmd.OutOrStdout(), verbose))
			return err
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "units", "u", false, "print every unit")
	return cmd
}

func extractCmd() *cobra.Command {
	var (
		in    inputFlags
		pot   bool
		fuzzy bool
		wrap  bool
	)
	cmd := &cobra.Command{
		Use:   "extract <input> <output-dir>",
		Short: "Extract the text of every document into a PO file for translation",
		Long:  "Writes one merge-mode PO file per document, named after it with a .po suffix, so it can be merged back with the merge command.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			set, err := in.loadDocuments(args[0], args[1], ".po")
			if err != nil {
				return err
			}
			return runEach(ctx, set.docs, set.cfg.WorkerCount, func(*resource.RawDocument) ([]pipeline.Step, error) {
				return []pipeline.Step{
					steps.NewExtraction(set.reg, log.Logger),
					steps.NewWriterStep(steps.WriterOptions{
						PO: &writer.POOptions{
							Options:    writer.Options{Log: log.Logger},
							ForMerge:   true,
							POT:        pot,
							TransFuzzy: fuzzy,
							Wrap:       wrap,
						},
						Log: log.Logger,
					}),
				}, nil
			})
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&pot, "pot", false, "write templates with empty translations")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "flag existing translations as fuzzy")
	cmd.Flags().BoolVar(&wrap, "wrap", false, "split strings after each line break")
	return cmd
}

func mergeCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "merge <input> <po-dir> <output-dir>",
		Short: "Merge translated PO files back into their original documents",
		Long:  "Each document under input is matched with <po-dir>/<relative path>.po, as written by extract.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			input, poDir, outDir := args[0], args[1], args[2]
			set, err := in.loadDocuments(input, outDir, "")
			if err != nil {
				return err
			}
			return runEach(ctx, set.docs, set.cfg.WorkerCount, func(doc *resource.RawDocument) ([]pipeline.Step, error) {
				tr, err := loadTranslations(ctx, set.reg, doc, outDir, poDir)
				if err != nil {
					return nil, err
				}
				return []pipeline.Step{
					steps.NewExtraction(set.reg, log.Logger),
					steps.NewMerge(tr, steps.MergeOptions{Locale: doc.TargetLocale, Log: log.Logger}),
					steps.NewWriterStep(steps.WriterOptions{Log: log.Logger}),
				}, nil
			})
		},
	}
	in.register(cmd)
	return cmd
}

// loadTranslations reads the translated PO file of doc. Its path mirrors
// the output path of doc under poDir.
func loadTranslations(ctx context.Context, reg *registry.Registry, doc *resource.RawDocument, outDir, poDir string) (*steps.Translations, error) {
	rel, err := filepath.Rel(outDir, doc.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("locate translations: %w", err)
	}
	path := filepath.Join(poDir, rel) + ".po"
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	f, err := reg.Create(po.Name)
	if err != nil {
		return nil, err
	}
	return steps.LoadTranslations(ctx, f, &resource.RawDocument{
		URI:          path,
		Content:      content,
		SourceLocale: doc.SourceLocale,
		TargetLocale: doc.TargetLocale,
	})
}

func roundtripCmd() *cobra.Command {
	var (
		in             inputFlags
		outputEncoding string
	)
	cmd := &cobra.Command{
		Use:   "roundtrip <input> <output-dir>",
		Short: "Extract and rewrite every document unchanged",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			set, err := in.loadDocuments(args[0], args[1], "")
			if err != nil {
				return err
			}
			for _, doc := range set.docs {
				doc.OutputEncoding = outputEncoding
			}
			return runEach(ctx, set.docs, set.cfg.WorkerCount, func(*resource.RawDocument) ([]pipeline.Step, error) {
				return []pipeline.Step{
					steps.NewExtraction(set.reg, log.Logger),
					steps.NewWriterStep(steps.WriterOptions{Log: log.Logger}),
				}, nil
			})
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&outputEncoding, "output-encoding", "", "encoding of the written documents, the input encoding when empty")
	return cmd
}

func pseudoCmd() *cobra.Command {
	var (
		in        inputFlags
		expansion float64
		brackets  bool
	)
	cmd := &cobra.Command{
		Use:   "pseudo <input> <output-dir>",
		Short: "Write pseudo-translated copies of every document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			set, err := in.loadDocuments(args[0], args[1], "")
			if err != nil {
				return err
			}
			for _, doc := range set.docs {
				if doc.TargetLocale.IsEmpty() {
					doc.TargetLocale = "qps"
				}
			}
			return runEach(ctx, set.docs, set.cfg.WorkerCount, func(*resource.RawDocument) ([]pipeline.Step, error) {
				return []pipeline.Step{
					steps.NewExtraction(set.reg, log.Logger),
					steps.NewPseudo(steps.PseudoOptions{Expansion: expansion, Brackets: brackets}),
					steps.NewWriterStep(steps.WriterOptions{Log: log.Logger}),
				}, nil
			})
		},
	}
	in.register(cmd)
	cmd.Flags().Float64Var(&expansion, "expansion", 0, "lengthen texts by this fraction, e.g. 0.3")
	cmd.Flags().BoolVar(&brackets, "brackets", true, "wrap texts in [ and ]")
	return cmd
}

func leverageCmd() *cobra.Command {
	var (
		in        inputFlags
		threshold float64
		overwrite bool
		asPO      bool
		segment   bool
	)
	cmd := &cobra.Command{
		Use:   "leverage <input> <output-dir>",
		Short: "Fill translations from the translation memory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			ext := ""
			if asPO {
				ext = ".po"
			}
			set, err := in.loadDocuments(args[0], args[1], ext)
			if err != nil {
				return err
			}
			if threshold <= 0 {
				threshold = set.cfg.LeverageThreshold
			}

			store, err := openTM(ctx, set.cfg)
			if err != nil {
				return err
			}
			cache := tm.NewCache(store, log.Logger)
			defer cache.Close()

			if len(set.docs) > 0 {
				if err := cache.Preload(ctx, set.docs[0].SourceLocale, set.docs[0].TargetLocale); err != nil {
					log.Warn().Err(err).Msg("Failed to preload translation memory")
				}
			}

			lev := steps.NewLeverage(cache, steps.LeverageOptions{
				Threshold: threshold,
				Overwrite: overwrite,
				Log:       log.Logger,
			})
			chain := []pipeline.Step{steps.NewExtraction(set.reg, log.Logger)}
			if segment {
				seg, err := steps.NewSegmentation(steps.SegmentationOptions{Log: log.Logger})
				if err != nil {
					return err
				}
				chain = append(chain, seg)
			}
			chain = append(chain, pipeline.NewConcurrentStep(lev, pipeline.ConcurrentOptions{
				Workers: set.cfg.WorkerCount,
				Log:     log.Logger,
			}))
			if segment {
				chain = append(chain, steps.NewDesegmentation())
			}
			out := steps.WriterOptions{Log: log.Logger}
			if asPO {
				out.PO = &writer.POOptions{Options: writer.Options{Log: log.Logger}, ForMerge: true}
			}
			chain = append(chain, steps.NewWriterStep(out))

			_, err = runBatch(ctx, set.docs, chain...)

			exact, fuzzy, missed := lev.Counts()
			hits, misses := cache.Stats()
			log.Info().
				Int64("exact", exact).
				Int64("fuzzy", fuzzy).
				Int64("missed", missed).
				Int("cache_hits", hits).
				Int("cache_misses", misses).
				Msg("Leverage complete")
			return err
		},
	}
	in.register(cmd)
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "lowest fuzzy score used, in (0,1] (default $LEVERAGE_THRESHOLD)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing translations")
	cmd.Flags().BoolVar(&asPO, "po", false, "write merge-mode PO files instead of the original format")
	cmd.Flags().BoolVar(&segment, "segment", false, "look up sentence by sentence")
	return cmd
}

func checkCmd() *cobra.Command {
	var (
		in       inputFlags
		glossary string
		useNeo4j bool
		report   string
	)
	cmd := &cobra.Command{
		Use:   "check <input>",
		Short: "Report inconsistent translations and the glossary terms found in each unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			set, err := in.loadDocuments(args[0], "", "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report != "" && report != "-" {
				f, err := os.Create(report)
				if err != nil {
					return fmt.Errorf("create report: %w", err)
				}
				defer f.Close()
				out = f
			}

			chain := []pipeline.Step{steps.NewExtraction(set.reg, log.Logger)}

			var g terminology.Glossary
			switch {
			case useNeo4j:
				ng, err := openNeo4j(ctx, set.cfg)
				if err != nil {
					return err
				}
				defer ng.Close(context.Background())
				g = ng
			case glossary != "":
				mem, err := readGlossary(glossary, set.docs)
				if err != nil {
					return err
				}
				g = mem
			}
			if g != nil {
				chain = append(chain,
					pipeline.NewConcurrentStep(steps.NewTerms(g, steps.TermsOptions{Log: log.Logger}),
						pipeline.ConcurrentOptions{Workers: set.cfg.WorkerCount, Log: log.Logger}),
					newTermPrinter(cmd.ErrOrStderr()))
			}
			chain = append(chain, steps.NewInconsistencyCheck(steps.InconsistencyOptions{Output: out, Log: log.Logger}))

			_, err = runBatch(ctx, set.docs, chain...)
			return err
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&glossary, "glossary", "", "tab-separated glossary file")
	cmd.Flags().BoolVar(&useNeo4j, "neo4j", false, "look terms up in the Neo4j glossary")
	cmd.Flags().StringVarP(&report, "report", "o", "-", "inconsistency report file, - for stdout")
	return cmd
}

func readGlossary(path string, docs []*resource.RawDocument) (*terminology.Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open glossary: %w", err)
	}
	defer f.Close()

	var src, trg resource.LocaleID
	if len(docs) > 0 {
		src, trg = docs[0].SourceLocale, docs[0].TargetLocale
	}
	terms, err := terminology.ReadTSV(f, src, trg)
	if err != nil {
		return nil, err
	}
	log.Info().Int("terms", len(terms)).Str("path", path).Msg("Loaded glossary")
	return terminology.NewMemory(terms...), nil
}

// newTermPrinter prints the terms property of each unit that has one.
func newTermPrinter(out io.Writer) pipeline.Step {
	s := &pipeline.BaseStep{StepName: "term-printer"}
	var doc string
	s.Handlers = pipeline.Handlers{
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			doc = e.RawDocument().URI
			return e, nil
		},
		TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
			tu := e.TextUnit()
			if terms := tu.Property(resource.PropTerms); terms != "" {
				fmt.Fprintf(out, "%s#%s: %s\n", doc, tu.ID, strings.ReplaceAll(terms, "\n", "; "))
			}
			return e, nil
		},
	}
	return s
}
