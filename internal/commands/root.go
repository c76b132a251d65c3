// internal/commands/root.go
package aiassess

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "aiassess",
	Short: "aiassess — run an AI ethics assessment against your own provider and prompt",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := appconfig.Load(cfgFile)
		if err != nil {
			// Commands that only read platform state still work without a
			// saved config; Validate catches missing fields at run time.
			cfg = appconfig.Config{}
			appconfig.Normalize(&cfg)
		}

		applyOverrides(&cfg, cmd)
		cfg.ConfigPath = cfgFile
		currentConfig = &cfg

		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
}

// applyOverrides folds environment variables and changed flags onto the
// loaded file config. Precedence: flags, then environment, then file.
func applyOverrides(cfg *appconfig.Config, cmd *cobra.Command) {
	if v := viper.GetString("provider"); v != "" {
		cfg.Provider = appconfig.Provider(strings.ToLower(v))
	}
	if v := viper.GetString("apiKey"); v != "" {
		cfg.APIKey = v
	}
	if v := viper.GetString("model"); v != "" {
		cfg.Model = v
	}
	if v := viper.GetString("systemPrompt"); v != "" {
		cfg.SystemPrompt = v
	}
	if v := viper.GetString("platformUrl"); v != "" {
		cfg.PlatformURL = v
	}
	if v := viper.GetString("healthCheckKey"); v != "" {
		cfg.HealthCheckKey = v
	}
	if v := viper.GetString("logFile"); v != "" {
		cfg.LogFile = v
	}
	if cmd.Flags().Changed("conversational") {
		cfg.ConversationalMode = viper.GetBool("conversational")
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = viper.GetBool("debug")
	}
	appconfig.Normalize(cfg)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	rootCmd.PersistentFlags().String("provider", "", "AI vendor: openai, anthropic, gemini, or grok")
	rootCmd.PersistentFlags().String("apiKey", "", "API key for the selected vendor")
	rootCmd.PersistentFlags().String("model", "", "model name (defaults per vendor)")
	rootCmd.PersistentFlags().String("systemPrompt", "", "system prompt under assessment")
	rootCmd.PersistentFlags().Bool("conversational", false, "send each question with a window of prior exchanges")
	rootCmd.PersistentFlags().String("platformUrl", "", "assessment platform base URL")
	rootCmd.PersistentFlags().String("healthCheckKey", "", "health-check key for the rate-limit endpoint")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")

	for _, name := range []string{"provider", "apiKey", "model", "systemPrompt", "conversational", "platformUrl", "healthCheckKey", "debug", "logFile"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig wires environment sources: a local .env file when present, then
// AIASSESS_-prefixed variables.
func initConfig() {
	_ = godotenv.Load()

	viper.SetEnvPrefix("AIASSESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// DebugEnabled returns true if debug mode is enabled.
func DebugEnabled() bool { return viper.GetBool("debug") }

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// sessionID scopes recovery state so switching vendors never resumes the
// wrong run.
func sessionID(cfg *appconfig.Config) string {
	return string(cfg.Provider) + ":" + strconv.FormatBool(cfg.ConversationalMode)
}
