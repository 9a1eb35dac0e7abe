package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pagepilot/internal/conversation"
	"pagepilot/internal/logger"
	"pagepilot/internal/output"
	"pagepilot/internal/services"
	"pagepilot/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history [ID]",
	Short: "List stored conversations, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Bool("plain", false, "Print messages without ANSI styling")
	historyCmd.Flags().Bool("delete", false, "Delete the conversation instead of showing it")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close conversation store", "error", err)
		}
	}()

	plain, _ := cmd.Flags().GetBool("plain")
	out := newPrinter(cmd.OutOrStdout(), plain, false)
	if len(args) == 0 {
		return listConversations(cmd, store, out)
	}

	id := args[0]
	if del, _ := cmd.Flags().GetBool("delete"); del {
		if err := store.Delete(cmd.Context(), id); err != nil {
			return historyError(id, err)
		}
		out.Success("Deleted conversation " + id)
		return nil
	}

	conv, err := store.Load(cmd.Context(), id)
	if err != nil {
		return historyError(id, err)
	}

	markdown := services.NewMarkdownService(cfg.Style)
	if err := markdown.Initialize(); err != nil {
		return err
	}
	printConversation(out, conv, func(text string) string {
		return renderMarkdown(markdown, out, text)
	})
	return nil
}

func listConversations(cmd *cobra.Command, store storage.Repository, out *output.Printer) error {
	summaries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		out.Subtle("No stored conversations.")
		return nil
	}
	for _, s := range summaries {
		out.Println(fmt.Sprintf("%s  %s  %3d  %s",
			s.ID, s.UpdatedAt.Local().Format("2006-01-02 15:04"), s.Interactions, s.Title))
	}
	return nil
}

func printConversation(out *output.Printer, conv *conversation.Conversation, render func(string) string) {
	out.Info(fmt.Sprintf("Conversation %s (%s)", conv.ID, conv.CreatedAt.Local().Format("2006-01-02 15:04")))
	for _, interaction := range conv.GetInteractions() {
		out.Println("> " + interaction.InputMessage.Text())
		answer := interaction.OutputMessage.Text()
		switch {
		case answer != "":
			out.Answer(strings.TrimRight(render(answer), "\n"))
		case interaction.StatusMessage != "":
			out.Warning(interaction.StatusMessage)
		}
		out.Println("")
	}
}

func historyError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no conversation with id %s", id)
	}
	return err
}
