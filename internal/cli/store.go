package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"l10nkit/internal/resource"
	"l10nkit/internal/steps"
	"l10nkit/internal/terminology"
	"l10nkit/internal/textutil"
	"l10nkit/internal/tm"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errNoLocales = errors.New("source and target locales are required")

func tmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tm",
		Short: "Manage the translation memory",
	}
	cmd.AddCommand(tmImportCmd())
	cmd.AddCommand(tmLookupCmd())
	cmd.AddCommand(tmStatsCmd())
	return cmd
}

func tmImportCmd() *cobra.Command {
	var (
		in    inputFlags
		fuzzy bool
		batch int
	)
	cmd := &cobra.Command{
		Use:   "import <input>",
		Short: "Store the translated units of bilingual documents, such as PO files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			set, err := in.loadDocuments(args[0], "", "")
			if err != nil {
				return err
			}
			store, err := openTM(ctx, set.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			imp := steps.NewTMImport(store, steps.TMImportOptions{
				IncludeFuzzy: fuzzy,
				BatchSize:    batch,
				Log:          log.Logger,
			})
			if _, err := runBatch(ctx, set.docs, steps.NewExtraction(set.reg, log.Logger), imp); err != nil {
				return err
			}

			total, err := store.Count(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("stored", imp.Stored()).Int("total", total).Msg("Translation memory import complete")
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&fuzzy, "include-fuzzy", false, "also store translations marked fuzzy")
	cmd.Flags().IntVar(&batch, "batch-size", 500, "entries per write")
	return cmd
}

func tmLookupCmd() *cobra.Command {
	var (
		source, target string
		threshold      float64
		limit          int
	)
	cmd := &cobra.Command{
		Use:   "lookup <text>",
		Short: "Show the best matches for a source text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig()
			q := tm.Query{
				Source:       args[0],
				SourceLocale: resource.NewLocaleID(firstNonEmpty(source, cfg.SourceLocale)),
				TargetLocale: resource.NewLocaleID(firstNonEmpty(target, cfg.TargetLocale)),
				Threshold:    threshold,
				Limit:        limit,
			}
			if q.SourceLocale.IsEmpty() || q.TargetLocale.IsEmpty() {
				return errNoLocales
			}
			if q.Threshold <= 0 {
				q.Threshold = cfg.LeverageThreshold
			}

			store, err := openTM(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			matches, err := store.Lookup(ctx, q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tSOURCE\tTARGET\tORIGIN")
			for _, m := range matches {
				fmt.Fprintf(tw, "%.2f\t%s\t%s\t%s\n", m.Score,
					textutil.Truncate(m.Source, 40), textutil.Truncate(m.Target, 40), m.Origin)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source locale")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target locale")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "lowest score shown (default $LEVERAGE_THRESHOLD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of matches")
	return cmd
}

func tmStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count the entries of the translation memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			store, err := openTM(ctx, loadConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries\n", n)
			return nil
		},
	}
}

func glossaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Manage the Neo4j glossary",
	}
	cmd.AddCommand(glossaryImportCmd())
	cmd.AddCommand(glossaryFindCmd())
	return cmd
}

func glossaryImportCmd() *cobra.Command {
	var source, target string
	cmd := &cobra.Command{
		Use:   "import <file.tsv>",
		Short: "Import a tab-separated glossary: source term, target term, optional domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig()
			src := resource.NewLocaleID(firstNonEmpty(source, cfg.SourceLocale))
			trg := resource.NewLocaleID(firstNonEmpty(target, cfg.TargetLocale))
			if src.IsEmpty() || trg.IsEmpty() {
				return errNoLocales
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open glossary: %w", err)
			}
			defer f.Close()
			terms, err := terminology.ReadTSV(f, src, trg)
			if err != nil {
				return err
			}

			g, err := openNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer g.Close(context.Background())

			if err := g.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure glossary schema: %w", err)
			}
			if err := g.Import(ctx, terms); err != nil {
				return fmt.Errorf("import glossary: %w", err)
			}
			log.Info().Int("terms", len(terms)).Str("file", args[0]).Msg("Glossary import complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source locale")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target locale")
	return cmd
}

func glossaryFindCmd() *cobra.Command {
	var source, target string
	cmd := &cobra.Command{
		Use:   "find <text>",
		Short: "Show the glossary terms found in a text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig()
			g, err := openNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer g.Close(context.Background())

			hits, err := g.Find(ctx, args[0],
				resource.NewLocaleID(firstNonEmpty(source, cfg.SourceLocale)),
				resource.NewLocaleID(firstNonEmpty(target, cfg.TargetLocale)))
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%d-%d\t%s\t%s\n", h.Start, h.End, h.Source, h.Target)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source locale")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target locale")
	return cmd
}
