// internal/commands/check.go
package aiassess

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spar65/aiassessmenttool/internal/platform"
	"github.com/spf13/cobra"
)

var (
	okText   = color.New(color.FgGreen, color.Bold).SprintFunc()
	stopText = color.New(color.FgRed, color.Bold).SprintFunc()
)

// checkCmd asks the platform whether the demo tier has capacity for a run.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check demo rate-limit status before starting a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := platform.NewClient(GetConfig())

		status, err := client.CheckRateLimit(cmd.Context())
		if err != nil {
			var platformErr *platform.Error
			if errors.As(err, &platformErr) && platformErr.Code == platform.CodeInvalidHealthKey {
				return fmt.Errorf("health-check key was rejected: %s", platformErr.Message)
			}
			return err
		}

		out := cmd.OutOrStdout()
		if status.CanProceed {
			fmt.Fprintf(out, "%s %d of %d runs remaining\n", okText("Ready:"), status.Remaining, status.Limit)
		} else {
			fmt.Fprintf(out, "%s demo tier exhausted, resets %s\n",
				stopText("Blocked:"), status.ResetAt.Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
