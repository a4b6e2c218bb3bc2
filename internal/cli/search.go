package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"contractrag/internal/domain"
)

const maxPreviewRunes = 500

var (
	searchText  string
	searchOwner string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank an owner's clauses against a query",
	Long: `Search one owner's stored chunks by cosine similarity to the query.
Results never include chunks of other owners.

Examples:
  contractrag search -q "termination notice" --owner acme
  contractrag search -q "liability cap" --owner acme -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVar(&searchOwner, "owner", "", "owner whose chunks are searched (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
	searchCmd.MarkFlagRequired("owner")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	topK := cfg.Retrieve.DefaultTopK
	if cmd.Flags().Changed("top-k") {
		topK = searchTopK
	}

	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.search.Search(cmd.Context(), domain.OwnerID(searchOwner), searchText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(resp.Results), searchText)
	for i, r := range resp.Results {
		fmt.Fprintf(out, "--- [%d] %s (score: %.3f) ---\n", i+1, describe(r), r.Score)
		fmt.Fprintln(out, truncate(r.Text, maxPreviewRunes))
		fmt.Fprintln(out)
	}
	return nil
}

// truncate shortens text to at most n runes, marking the cut with "...".
func truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

// describe renders the location of a result from its chunk metadata.
func describe(r domain.SearchResult) string {
	var parts []string
	if name, ok := r.Metadata["contract_name"].(string); ok && name != "" {
		parts = append(parts, name)
	}
	if page, ok := r.Metadata["page"]; ok {
		parts = append(parts, fmt.Sprintf("p.%v", page))
	}
	if clause, ok := r.Metadata["clause_type"].(string); ok && clause != "" {
		parts = append(parts, clause)
	}
	if len(parts) == 0 {
		return r.DocumentID
	}
	return strings.Join(parts, " ")
}
