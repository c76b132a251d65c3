// internal/commands/providers.go
package aiassess

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spf13/cobra"
)

var vendorText = color.New(color.FgCyan, color.Bold).SprintFunc()

// providersCmd lists the supported vendors and their key formats.
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported AI vendors",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, provider := range appconfig.Providers() {
			format, _ := appconfig.KeyFormatFor(provider)
			fmt.Fprintf(out, "%-12s keys start with %q (min %d chars), %s between calls\n",
				vendorText(string(provider)), format.Prefix, format.MinLength,
				appconfig.InterCallDelay(provider))
		}
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
