package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pagepilot/internal/logger"
	"pagepilot/pkg/pilottypes"
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Ask a single question about the page",
	Long: `Run one assistant turn and print the rendered answer.
Use --plain to print the answer without terminal styling, or --json for a JSON line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("plain", false, "Print the answer without ANSI styling")
	askCmd.Flags().Bool("json", false, "Print the answer as a JSON object")
}

func runAsk(cmd *cobra.Command, args []string) error {
	plain, _ := cmd.Flags().GetBool("plain")
	asJSON, _ := cmd.Flags().GetBool("json")

	page, err := loadPage(pagePath)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, page, newPrinter(cmd.OutOrStdout(), plain, asJSON))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close conversation store", "error", err)
		}
	}()

	return ask(cmd, a, strings.Join(args, " "))
}

func ask(cmd *cobra.Command, a *app, question string) error {
	interaction, err := a.assistant.Chat(cmd.Context(), pilottypes.NewUserMessage(question))
	if err != nil {
		return fmt.Errorf("turn failed: %s", describeTurnError(err))
	}
	a.out.Answer(a.render(interaction.OutputMessage.Text()))
	return nil
}
