// internal/commands/show_config.go
package aiassess

import (
	"github.com/k0kubun/pp"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/spf13/cobra"
)

// showConfigCmd displays the effective configuration after file, environment,
// and flag merging. The API key is redacted before printing.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective config settings",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := *GetConfig()
		cfg.APIKey = logging.Redact(cfg.APIKey)
		if cfg.HealthCheckKey != "" {
			cfg.HealthCheckKey = "[redacted]"
		}
		pp.Println(cfg)
	},
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
}
