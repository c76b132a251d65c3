// internal/commands/register.go
package aiassess

import (
	"errors"
	"fmt"

	"github.com/spar65/aiassessmenttool/internal/platform"
	"github.com/spf13/cobra"
)

var (
	leadEmail   string
	leadCompany string
	leadRole    string
	leadWebsite string
)

// registerCmd submits a demo-access registration to the platform.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register for demo access",
	RunE: func(cmd *cobra.Command, args []string) error {
		if leadEmail == "" {
			return errors.New("--email is required")
		}

		client := platform.NewClient(GetConfig())
		receipt, err := client.RegisterLead(cmd.Context(), platform.Lead{
			Email:       leadEmail,
			CompanyName: leadCompany,
			Role:        leadRole,
			Source:      "cli",
			Website:     leadWebsite,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (lead %s)\n", receipt.Email, receipt.LeadID)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&leadEmail, "email", "", "contact email")
	registerCmd.Flags().StringVar(&leadCompany, "company", "", "company name")
	registerCmd.Flags().StringVar(&leadRole, "role", "", "role or title")
	registerCmd.Flags().StringVar(&leadWebsite, "website", "", "")
	_ = registerCmd.Flags().MarkHidden("website")

	rootCmd.AddCommand(registerCmd)
}
