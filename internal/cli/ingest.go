package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"contractrag/internal/adapter/fs"
	"contractrag/internal/domain"
)

var (
	ingestOwner        string
	ingestName         string
	ingestDocID        string
	ingestStatus       string
	ingestRisk         string
	ingestContractType string
	ingestParties      string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest contract files for an owner",
	Long: `Ingest contract text files for one owner. Every file becomes one document;
its lines are split into clause chunks, embedded and stored under the owner.
Directories are walked using the ingest.includes and ingest.excludes globs.

Examples:
  contractrag ingest ./contracts --owner acme
  contractrag ingest msa.txt --owner acme --name "Acme MSA" --risk high`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner the documents belong to (required)")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "document name (single file only, default is the file name)")
	ingestCmd.Flags().StringVar(&ingestDocID, "doc", "", "document ID (single file only, default is generated)")
	ingestCmd.Flags().StringVar(&ingestStatus, "status", string(domain.StatusActive), "document status: active, expired, renewal_due")
	ingestCmd.Flags().StringVar(&ingestRisk, "risk", "", "document risk level: low, medium, high")
	ingestCmd.Flags().StringVar(&ingestContractType, "type", "", "contract type, e.g. \"Master Service Agreement\"")
	ingestCmd.Flags().StringVar(&ingestParties, "parties", "", "contracting parties")
	ingestCmd.MarkFlagRequired("owner")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	status, err := domain.ParseStatus(ingestStatus)
	if err != nil {
		return err
	}
	risk, err := domain.ParseRisk(ingestRisk)
	if err != nil {
		return err
	}

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	files, err := walker.Walk(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", path, err)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No matching files found.")
		return nil
	}
	if len(files) > 1 && (ingestName != "" || ingestDocID != "") {
		return fmt.Errorf("--name and --doc apply to a single file, found %d", len(files))
	}

	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	start := time.Now()
	owner := domain.OwnerID(ingestOwner)
	var ingested []string
	var failures []string
	totalChunks := 0

	for _, file := range files {
		content, err := fs.ReadFile(file.Path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", file.RelPath, err))
			bar.Add(1)
			continue
		}

		name := ingestName
		if name == "" {
			name = file.RelPath
		}
		doc := domain.Document{
			ID:           ingestDocID,
			OwnerID:      owner,
			Name:         name,
			Status:       status,
			Risk:         risk,
			ContractType: ingestContractType,
			Parties:      ingestParties,
		}

		res, err := a.ingest.IngestText(ctx, owner, doc, content)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failures = append(failures, fmt.Sprintf("%s: %v", file.RelPath, err))
			bar.Add(1)
			continue
		}
		ingested = append(ingested, fmt.Sprintf("%s  %s (%d chunks)", res.DocumentID, name, res.Chunks))
		totalChunks += res.Chunks
		bar.Add(1)
	}

	fmt.Fprintf(out, "\nIngest complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Fprintf(out, "  Owner:           %s\n", owner)
	fmt.Fprintf(out, "  Files ingested:  %d\n", len(ingested))
	fmt.Fprintf(out, "  Chunks stored:   %d\n", totalChunks)
	if len(ingested) > 0 {
		fmt.Fprintf(out, "\nDocuments:\n")
		for _, line := range ingested {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	if len(failures) > 0 {
		fmt.Fprintf(out, "\nWarnings:\n")
		for _, f := range failures {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	if len(ingested) == 0 {
		return fmt.Errorf("no documents ingested")
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
