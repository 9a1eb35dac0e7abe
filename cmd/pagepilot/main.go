// Package main provides the PagePilot CLI: a page-aware assistant for the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pagepilot/internal/config"
	"pagepilot/internal/logger"
	"pagepilot/internal/version"
)

var (
	configFile string
	pagePath   string
	testMode   bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagepilot",
	Short: "PagePilot - chat with an assistant about a page",
	Long: `PagePilot loads a page (a text or markdown file, or stdin) and answers questions about it.
The assistant plans tool calls over the page, can translate text and optionally reflects on its answers.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	RunE:              runChat,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	// version needs no configuration
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		out := newPrinter(cmd.OutOrStdout(), true, false)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			out.Println(version.GetDetailedVersion())
			return
		}
		out.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		newPrinter(os.Stderr, false, false).Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Configuration file (default: config.yaml in the user config dir, then ./pagepilot.yaml)")
	flags.StringVarP(&pagePath, "page", "p", "", "Page to talk about: a text file, or - for stdin")
	flags.BoolVar(&testMode, "test-mode", false, "Run in deterministic test mode")

	// Flags named after configuration keys are bound through viper by config.Load.
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: warn]")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.String("endpoint", "", "Base URL of the model API")
	flags.String("provider", "", "Provider used when no endpoint is set (openai, anthropic, gemini, ...)")
	flags.String("chat-model", "", "Model used for answers")
	flags.String("tool-model", "", "Model used for tool planning")
	flags.String("language", "", "Language the assistant answers in")
	flags.String("style", "", "Markdown style (auto, dark, light, notty, ...)")
	flags.Bool("reflection", false, "Evaluate and revise answers before showing them")
	flags.Bool("chain-of-thought", false, "Infer the goal of each turn before planning")
	flags.Bool("multimodal", false, "Send the page screenshot to multimodal models")

	versionCmd.Flags().BoolP("verbose", "v", false, "Show detailed build information")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		EnvFiles:   []string{".env"},
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	if err := logger.Configure(loaded.LogLevel, loaded.LogFile, testMode); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	logger.Debug("Configuration loaded", "provider", cfg.ProviderID(), "store", cfg.Store.Driver)
	return nil
}
