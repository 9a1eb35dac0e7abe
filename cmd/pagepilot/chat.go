package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/spf13/cobra"

	"pagepilot/internal/logger"
	"pagepilot/internal/services"
	"pagepilot/internal/version"
	"pagepilot/pkg/pilottypes"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat about the page",
	Long: `Start the interactive PagePilot shell. Free text is sent to the assistant;
lines starting with / are shell commands (type /help).`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Bool("stream", true, "Print answers while they are generated instead of rendering them at the end")
	chatCmd.Flags().Bool("suggest", false, "Show follow-up question suggestions after each answer")
	chatCmd.Flags().String("resume", "", "Continue a stored conversation")
}

// session is the state of one REPL.
type session struct {
	app        *app
	cmd        *cobra.Command
	stream     bool
	suggest    bool
	toolNames  []string
	lastAnswer string
}

func runChat(cmd *cobra.Command, _ []string) error {
	page, err := loadPage(pagePath)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, page, newPrinter(cmd.OutOrStdout(), cfg.Style == "notty", false))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close conversation store", "error", err)
		}
	}()

	s := &session{app: a, cmd: cmd}
	// chat is also the root command's default, which lacks these flags
	s.stream = true
	if f := cmd.Flags().Lookup("stream"); f != nil {
		s.stream, _ = cmd.Flags().GetBool("stream")
	}
	if f := cmd.Flags().Lookup("suggest"); f != nil {
		s.suggest, _ = cmd.Flags().GetBool("suggest")
	}
	for _, def := range a.assistant.Tools() {
		s.toolNames = append(s.toolNames, def.Name)
	}
	if f := cmd.Flags().Lookup("resume"); f != nil && f.Value.String() != "" {
		if err := s.resume(f.Value.String()); err != nil {
			return err
		}
	}

	sh := ishell.New()
	sh.SetPrompt("pagepilot> ")
	sh.DeleteCmd("help")
	s.register(sh)

	completer := services.NewAutoCompleteService(s.commandNames(sh), func() []string { return s.toolNames }, "/disable", "/enable")
	if err := a.registry.RegisterService(completer); err != nil {
		return err
	}
	if err := completer.Initialize(); err != nil {
		return err
	}
	sh.CustomCompleter(completer)

	a.out.Info(version.GetFormattedVersion())
	if page.Title != "" {
		a.out.Subtle(fmt.Sprintf("Page: %s (%d words)", page.Title, page.Statistics().Words))
	}
	a.out.Subtle("Ask anything about the page. Type /help for commands, exit to quit.")

	sh.NotFound(s.handleInput)
	sh.Run()
	return nil
}

func (s *session) register(sh *ishell.Shell) {
	sh.AddCmd(&ishell.Cmd{Name: "/help", Help: "show shell commands", Func: func(_ *ishell.Context) {
		s.app.out.Println(sh.HelpText())
	}})
	sh.AddCmd(&ishell.Cmd{Name: "/clear", Help: "start a new conversation", Func: func(_ *ishell.Context) {
		s.app.assistant.Reset(nil)
		s.lastAnswer = ""
		s.app.out.Subtle("Conversation cleared.")
	}})
	sh.AddCmd(&ishell.Cmd{Name: "/tools", Help: "list tools", Func: func(_ *ishell.Context) {
		s.app.out.Print(s.toolList())
	}})
	sh.AddCmd(&ishell.Cmd{Name: "/disable", Help: "/disable NAME hides a tool from the assistant", Func: func(c *ishell.Context) {
		s.report(s.setToolEnabled(c.Args, false))
	}})
	sh.AddCmd(&ishell.Cmd{Name: "/enable", Help: "/enable NAME makes a disabled tool available again", Func: func(c *ishell.Context) {
		s.report(s.setToolEnabled(c.Args, true))
	}})
	sh.AddCmd(&ishell.Cmd{Name: "/copy", Help: "copy the last answer to the clipboard", Func: func(_ *ishell.Context) {
		s.report(s.copyLastAnswer())
	}})
	sh.AddCmd(&ishell.Cmd{Name: "/history", Help: "list stored conversations", Func: func(_ *ishell.Context) {
		if err := listConversations(s.cmd, s.app.store, s.app.out); err != nil {
			s.app.out.Error(err.Error())
		}
	}})
	sh.AddCmd(&ishell.Cmd{Name: "/resume", Help: "/resume ID continues a stored conversation", Func: func(c *ishell.Context) {
		if len(c.Args) != 1 {
			s.app.out.Warning("usage: /resume ID")
			return
		}
		if err := s.resume(c.Args[0]); err != nil {
			s.app.out.Error(err.Error())
			return
		}
		s.app.out.Success("Resumed conversation " + c.Args[0])
	}})
}

func (s *session) commandNames(sh *ishell.Shell) []string {
	var names []string
	for _, c := range sh.Cmds() {
		names = append(names, c.Name)
	}
	return names
}

func (s *session) handleInput(c *ishell.Context) {
	input := strings.TrimSpace(strings.Join(c.RawArgs, " "))
	if input == "" {
		return
	}
	if strings.HasPrefix(input, "/") {
		s.app.out.Warning(fmt.Sprintf("Unknown command %s. Type /help for commands.", strings.Fields(input)[0]))
		return
	}
	s.turn(input)
}

// turn runs one chat turn and prints the answer.
// turn runs one chat turn. Streamed text is printed as it arrives. The final answer is printed
// again when it differs from what was streamed, as happens for errors and revised answers.
func (s *session) turn(input string) {
	out := s.app.out
	var streamed strings.Builder
	if s.stream {
		s.app.assistant.SetOnChunk(func(delta, _ string) {
			streamed.WriteString(delta)
			out.Print(delta)
		})
	} else {
		s.app.assistant.SetOnChunk(nil)
	}

	interaction, err := s.app.assistant.Chat(s.cmd.Context(), pilottypes.NewUserMessage(input))
	if streamed.Len() > 0 {
		out.Println("")
	}
	if err != nil {
		logger.Error("Turn failed", "error", err)
		out.Error(describeTurnError(err))
		return
	}

	s.lastAnswer = interaction.OutputMessage.Text()
	if strings.TrimSpace(streamed.String()) != strings.TrimSpace(s.lastAnswer) {
		out.Answer(s.app.render(s.lastAnswer))
	}
	if s.suggest {
		s.showSuggestions()
	}
}

func (s *session) showSuggestions() {
	questions, err := s.app.assistant.Suggest(s.cmd.Context())
	if err != nil {
		logger.Warn("Suggestions failed", "error", err)
		return
	}
	for _, q := range questions {
		s.app.out.Subtle("  ? " + q)
	}
}

// report prints the outcome of a shell command.
func (s *session) report(message string, err error) {
	if err != nil {
		s.app.out.Warning(err.Error())
		return
	}
	s.app.out.Success(message)
}

func (s *session) toolList() string {
	var b strings.Builder
	names := append([]string(nil), s.toolNames...)
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		if member, ok := s.app.assistant.Owner(name); ok {
			b.WriteString(" [" + member.Name() + "]")
		}
		if s.app.assistant.IsToolDisabled(name) {
			b.WriteString(" (disabled)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *session) setToolEnabled(args []string, enabled bool) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: /disable NAME or /enable NAME")
	}
	name := args[0]
	known := false
	for _, n := range s.toolNames {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return "", fmt.Errorf("unknown tool %s, type /tools to list them", name)
	}
	if enabled {
		s.app.assistant.EnableTool(name)
		return "Enabled " + name, nil
	}
	s.app.assistant.DisableTool(name)
	return "Disabled " + name, nil
}

func (s *session) copyLastAnswer() (string, error) {
	if s.lastAnswer == "" {
		return "", fmt.Errorf("nothing to copy yet")
	}
	if err := initClipboard(); err != nil {
		return "", err
	}
	if err := writeToClipboard(s.lastAnswer); err != nil {
		return "", err
	}
	return "Copied the last answer.", nil
}

func (s *session) resume(id string) error {
	conv, err := s.app.store.Load(s.cmd.Context(), id)
	if err != nil {
		return historyError(id, err)
	}
	s.app.assistant.SetConversation(conv)
	s.lastAnswer = ""
	if last := conv.LastInteraction(); last != nil {
		s.lastAnswer = last.OutputMessage.Text()
	}
	return nil
}
