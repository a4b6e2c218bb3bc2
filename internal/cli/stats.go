package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"contractrag/internal/domain"
)

var statsOwner string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored chunk counts for an owner",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsOwner, "owner", "", "owner to report on (required)")
	statsCmd.MarkFlagRequired("owner")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.Count(cmd.Context(), domain.OwnerID(statsOwner))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Owner:      %s\n", statsOwner)
	fmt.Fprintf(out, "Chunks:     %d\n", n)
	fmt.Fprintf(out, "Backend:    %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "Dimension:  %d\n", a.store.Dimension())
	return nil
}
