package main

import (
	"fmt"
	"os"

	"audiencelens/internal/catalog"
	"audiencelens/internal/config"
	"audiencelens/internal/embedding"
	"audiencelens/internal/facade"
	"audiencelens/internal/keyword"
	"audiencelens/internal/logging"
	"audiencelens/internal/semantic"
)

// exitConfigError and exitCatalogError are the process exit codes §6
// documents: 1 for a fatal catalog-load failure, 2 for a configuration
// error. 0 (success) is cobra's default on a nil RunE error.
const (
	exitCatalogError = 1
	exitConfigError  = 2
)

// loadConfig reads configPath (or built-in defaults), validates it, and
// configures the file-based logging subsystem. A validation failure exits
// the process with exitConfigError, matching cmd/nerd's main.go pattern of
// treating config problems as a distinct startup failure from catalog
// problems.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(exitConfigError)
	}

	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}
	if err := logging.Configure(ws, logging.Config{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
	}
	return cfg
}

// buildService loads the catalog, stands up the optional semantic index,
// and wires everything into a facade.Service. A catalog load failure is
// fatal (CatalogLoadError, exit code 1) per §7.
func buildService(cfg *config.Config) *facade.Service {
	cat, err := catalog.New(cfg.Catalog.Path, cfg.Catalog.CSVFallbackPath, cfg.Catalog.EmbeddingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: catalog load failed: %v\n", err)
		os.Exit(exitCatalogError)
	}

	var sem *semantic.Index
	if cfg.SemanticEnabled() {
		engine, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Embedding.Provider,
			OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
			OllamaModel:    cfg.Embedding.OllamaModel,
			GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
			GenAIModel:     cfg.Embedding.GenAIModel,
			TaskType:       cfg.Embedding.TaskType,
		})
		if err != nil {
			logger.Sugar().Warnf("embedding engine unavailable, semantic search disabled: %v", err)
		} else {
			sem = semantic.Build(cat.Snapshot(), engine, cfg.Embedding, cfg.Resilience)
		}
	}
	if sem == nil {
		sem = semantic.Build(cat.Snapshot(), nil, cfg.Embedding, cfg.Resilience)
	}

	lexicon := catalogLexicon(cat)
	return facade.New(cfg, cat, sem, lexicon)
}

// catalogLexicon derives the spell-correction vocabulary from the
// catalog's own keyword tokens (names + categories), per §4.2's "lexicon
// is data, not logic" design note.
func catalogLexicon(cat *catalog.Catalog) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range cat.Snapshot().Iterate() {
		for _, tok := range keyword.Tokenize(v.Name) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
		for _, tok := range keyword.Tokenize(v.Category) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}
