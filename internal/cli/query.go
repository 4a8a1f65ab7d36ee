package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"firerag/internal/adapter/store"
	"firerag/internal/server"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run retrieval for a question",
	Long: `Run the retrieval funnel (candidate selection, relevance scoring,
gating, context assembly) without answer generation, to inspect what
an answer would be grounded on.

Examples:
  firerag query -q "fire door clearance"
  firerag query -q "hydrant spacing" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to retrieve for (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "results to keep (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ix, err := store.OpenIndex(GetDataDir())
	if err != nil {
		return err
	}
	defer ix.Close()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	ret, err := server.BuildRetriever(cfg, ix, topK, nil, GetLogger())
	if err != nil {
		return err
	}

	result, err := ret.Retrieve(cmd.Context(), queryText)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if queryJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if result == nil {
		fmt.Println("No relevant content found.")
		return nil
	}

	fmt.Println(result.Context)
	fmt.Println()
	fmt.Printf("Pages:    %v\n", result.Pages)
	if len(result.Media) > 0 {
		fmt.Printf("Media:    %s\n", strings.Join(result.Media, ", "))
	}
	if len(result.Diagrams) > 0 {
		fmt.Printf("Diagrams: %s\n", strings.Join(result.Diagrams, ", "))
	}
	return nil
}
