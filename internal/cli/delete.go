package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"contractrag/internal/domain"
)

var (
	deleteOwner string
	deleteDocID string
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a document and all of its chunks",
	Long: `Delete one of the owner's documents together with every chunk stored for it.
Deleting an unknown document, or one owned by someone else, removes nothing.

Example:
  contractrag delete --owner acme --doc 6f1c2a9e-...`,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deleteOwner, "owner", "", "owner of the document (required)")
	deleteCmd.Flags().StringVar(&deleteDocID, "doc", "", "document ID (required)")
	deleteCmd.MarkFlagRequired("owner")
	deleteCmd.MarkFlagRequired("doc")
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.ingest.DeleteDocument(cmd.Context(), domain.OwnerID(deleteOwner), deleteDocID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d chunks of document %s\n", n, deleteDocID)
	return nil
}
