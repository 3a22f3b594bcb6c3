package terminology

import (
	"context"
	"fmt"
	"strings"

	"l10nkit/internal/resource"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
)

// Neo4jGlossary keeps terms as (:Term) nodes. Terms that translate each
// other across locale pairs are not linked; each node holds one pair.
type Neo4jGlossary struct {
	driver neo4j.DriverWithContext
	log    zerolog.Logger
}

// OpenNeo4j connects to a Neo4j server.
func OpenNeo4j(ctx context.Context, uri, user, password string, log zerolog.Logger) (*Neo4jGlossary, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connect: %w", err)
	}
	return NewNeo4jGlossary(driver, log), nil
}

// NewNeo4jGlossary uses an existing driver. Close closes it.
func NewNeo4jGlossary(driver neo4j.DriverWithContext, log zerolog.Logger) *Neo4jGlossary {
	return &Neo4jGlossary{driver: driver, log: log}
}

// EnsureSchema creates the uniqueness constraint and the lookup index.
func (g *Neo4jGlossary) EnsureSchema(ctx context.Context) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	stmts := []string{
		"CREATE CONSTRAINT term_key IF NOT EXISTS FOR (t:Term) REQUIRE (t.source_lower, t.source_locale, t.target_locale) IS UNIQUE",
	}
	for _, s := range stmts {
		if _, err := session.Run(ctx, s, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	g.log.Info().Msg("Glossary schema ensured")
	return nil
}

// Import upserts terms.
func (g *Neo4jGlossary) Import(ctx context.Context, terms []Term) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, t := range terms {
		_, err := session.Run(ctx, `
			MERGE (t:Term {source_lower: $lower, source_locale: $src, target_locale: $trg})
			SET t.source = $source,
			    t.target = $target,
			    t.domain = $domain
		`, map[string]any{
			"lower":  strings.ToLower(t.Source),
			"src":    string(t.SourceLocale),
			"trg":    string(t.TargetLocale),
			"source": t.Source,
			"target": t.Target,
			"domain": t.Domain,
		})
		if err != nil {
			return fmt.Errorf("upsert term %s: %w", t.Source, err)
		}
	}
	g.log.Info().Int("terms", len(terms)).Msg("Imported glossary terms")
	return nil
}

// Find queries the terms contained in text and locates them.
func (g *Neo4jGlossary) Find(ctx context.Context, text string, src, trg resource.LocaleID) ([]Hit, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (t:Term)
		WHERE $text CONTAINS t.source_lower
		  AND t.source_locale IN [$src, $srcLang, '']
		  AND t.target_locale IN [$trg, $trgLang, '']
		RETURN t.source AS source, t.target AS target, t.domain AS domain,
		       t.source_locale AS src, t.target_locale AS trg
	`, map[string]any{
		"text":    strings.ToLower(text),
		"src":     string(src),
		"srcLang": src.Language(),
		"trg":     string(trg),
		"trgLang": trg.Language(),
	})
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}

	var terms []Term
	for result.Next(ctx) {
		record := result.Record()
		source, _ := record.Get("source")
		target, _ := record.Get("target")
		domain, _ := record.Get("domain")
		srcLoc, _ := record.Get("src")
		trgLoc, _ := record.Get("trg")
		terms = append(terms, Term{
			Source:       fmt.Sprintf("%v", source),
			Target:       fmt.Sprintf("%v", target),
			Domain:       fmt.Sprintf("%v", domain),
			SourceLocale: resource.LocaleID(fmt.Sprintf("%v", srcLoc)),
			TargetLocale: resource.LocaleID(fmt.Sprintf("%v", trgLoc)),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}

	hits := Match(text, terms)
	g.log.Debug().Int("candidates", len(terms)).Int("hits", len(hits)).Msg("Glossary query complete")
	return hits, nil
}

// Close closes the driver.
func (g *Neo4jGlossary) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
