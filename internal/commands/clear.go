// internal/commands/clear.go
package aiassess

import (
	"fmt"

	"github.com/spar65/aiassessmenttool/internal/recovery"
	"github.com/spf13/cobra"
)

// clearCmd discards any saved partial run for the configured provider.
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard saved partial-run progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		storage, err := recovery.NewSQLiteStorage(cfg.RecoveryDBPath())
		if err != nil {
			return fmt.Errorf("opening recovery store: %w", err)
		}
		defer storage.Close()

		store := recovery.NewStore(storage, sessionID(cfg))
		if _, found, err := store.Load(); err != nil {
			return err
		} else if !found {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved progress to clear.")
			return nil
		}

		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved progress discarded.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
