// internal/commands/run.go
package aiassess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/assessment"
	"github.com/spar65/aiassessmenttool/internal/platform"
	"github.com/spar65/aiassessmenttool/internal/providerfactory"
	"github.com/spar65/aiassessmenttool/internal/recovery"
	"github.com/spar65/aiassessmenttool/internal/tui"
	"github.com/spar65/aiassessmenttool/internal/util"
	"github.com/spf13/cobra"
)

// runCmd executes a full assessment against the configured provider.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ethics assessment",
	Long: `The 'run' command sends the full question battery to the configured AI
provider one question at a time and submits the answers for scoring. Progress
is saved after every question; an interrupted run can be resumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		provider, err := providerfactory.NewChatProvider(cfg)
		if err != nil {
			return err
		}
		defer provider.Close()

		storage, err := recovery.NewSQLiteStorage(cfg.RecoveryDBPath())
		if err != nil {
			return fmt.Errorf("opening recovery store: %w", err)
		}
		defer storage.Close()
		store := recovery.NewStore(storage, sessionID(cfg))

		runner := assessment.NewRunner(cfg, provider, platform.NewClient(cfg), store)

		// Resolve resume-or-discard up front so the prompt does not fight
		// the live view for the terminal. Snapshots the runner would discard
		// anyway are never offered.
		if snapshot, found, err := store.Load(); err == nil && found {
			if assessment.Resumable(snapshot) {
				resume := tui.PromptResume(cmd.InOrStdin(), cmd.OutOrStdout(), snapshot)
				runner.OnResume(func(recovery.Snapshot) bool { return resume })
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Discarding saved progress from an older question set.")
			}
		}

		outcome, err := tui.StartAssessment(cmd.Context(), runner, string(cfg.Provider))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintf(cmd.OutOrStdout(), "Run cancelled after %d answered questions; progress is saved. Run again to resume.\n", answeredCount(store))
				return nil
			}
			var rateErr *assessment.RateLimitError
			if errors.As(err, &rateErr) {
				return fmt.Errorf("cannot start: %s", rateErr.Error())
			}
			if n := answeredCount(store); n > 0 {
				return fmt.Errorf("%w (%d questions answered; run again to resume)", err, n)
			}
			return err
		}

		tui.RenderReport(cmd.OutOrStdout(), cfg, outcome)

		if exportPath != "" {
			if err := exportReport(exportPath, cfg, outcome); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", exportPath)
		}
		return nil
	},
}

var exportPath string

// exportReport writes the scored outcome as JSON for the scripting path.
func exportReport(path string, cfg *appconfig.Config, outcome *assessment.Outcome) error {
	payload := struct {
		Provider   appconfig.Provider   `json:"provider"`
		Model      string               `json:"model"`
		Answered   int                  `json:"answered"`
		Unresolved int                  `json:"unresolved"`
		Resumed    bool                 `json:"resumed"`
		Report     platform.ScoreReport `json:"report"`
	}{
		Provider:   cfg.Provider,
		Model:      cfg.ModelName(),
		Answered:   outcome.Answered,
		Unresolved: outcome.Unresolved,
		Resumed:    outcome.Resumed,
		Report:     outcome.Report,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFile(path, data)
}

// answeredCount reports how many answers a saved partial run holds.
func answeredCount(store *recovery.Store) int {
	snapshot, found, err := store.Load()
	if err != nil || !found {
		return 0
	}
	return len(snapshot.Results)
}

func init() {
	runCmd.Flags().StringVar(&exportPath, "export", "", "write the scored report to this JSON file")
	rootCmd.AddCommand(runCmd)
}
