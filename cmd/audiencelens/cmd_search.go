package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"audiencelens/internal/facade"
)

var (
	searchTopK        int
	searchUseSemantic bool
	searchUseKeyword  bool
	searchUserID      string
)

var searchCmd = &cobra.Command{
	Use:   "search <query terms...>",
	Short: "Run a one-shot search against the catalog from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		svc := buildService(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := svc.Search(ctx, facade.SearchRequest{
			Query:       strings.Join(args, " "),
			TopK:        searchTopK,
			UseSemantic: searchUseSemantic,
			UseKeyword:  searchUseKeyword,
			UserID:      searchUserID,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 20, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchUseSemantic, "semantic", true, "include the semantic index")
	searchCmd.Flags().BoolVar(&searchUseKeyword, "keyword", true, "include the keyword index")
	searchCmd.Flags().StringVar(&searchUserID, "user-id", "cli", "user id for search-router bucketing")
}
