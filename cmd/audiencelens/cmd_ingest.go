package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"audiencelens/internal/embedding"
)

var ingestOutputPath string

// ingestCmd computes embeddings for every catalog variable missing one and
// writes them to the ALE1 binary container loader.go reads (§6's
// "Embeddings file format"). It never trains a model — only calls the
// configured provider — per §1's "training the embedding model" non-goal.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Backfill missing embeddings for the loaded catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if !cfg.SemanticEnabled() {
			return fmt.Errorf("no embedding provider configured (set EMBEDDING_PROVIDER_API_KEY or embedding.provider)")
		}

		engine, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Embedding.Provider,
			OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
			OllamaModel:    cfg.Embedding.OllamaModel,
			GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
			GenAIModel:     cfg.Embedding.GenAIModel,
			TaskType:       cfg.Embedding.TaskType,
		})
		if err != nil {
			return fmt.Errorf("build embedding engine: %w", err)
		}

		svc := buildService(cfg)
		snap := svc.Catalog().Snapshot()

		outPath := ingestOutputPath
		if outPath == "" {
			outPath = cfg.Catalog.EmbeddingsPath
		}
		if outPath == "" {
			return fmt.Errorf("no output path: pass --output or set embeddings_path in config")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		type entry struct {
			code string
			vec  []float32
		}
		var entries []entry
		for _, v := range snap.Iterate() {
			text := v.Name + " " + v.Description
			taskType := embedding.SelectTaskType(embedding.ContentTypeVariable)
			var vec []float32
			var err error
			if taskAware, ok := engine.(embedding.TaskTypeAwareEngine); ok {
				vec, err = taskAware.EmbedWithTaskType(ctx, text, taskType)
			} else {
				vec, err = engine.Embed(ctx, text)
			}
			if err != nil {
				logger.Sugar().Warnf("embedding %s failed: %v", v.Code, err)
				continue
			}
			entries = append(entries, entry{code: v.Code, vec: vec})
		}

		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()
		w := bufio.NewWriter(f)

		if _, err := w.WriteString("ALE1"); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(engine.Dimensions())); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			if err := binary.Write(w, binary.LittleEndian, uint32(len(e.code))); err != nil {
				return err
			}
			if _, err := w.WriteString(e.code); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, e.vec); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("wrote %d embeddings (dims=%d) to %s\n", len(entries), engine.Dimensions(), outPath)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOutputPath, "output", "", "output path for the embeddings container (default: config's embeddings_path)")
}
