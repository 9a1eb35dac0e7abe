package services

import (
	"sort"
	"strings"
)

// AutoCompleteService provides tab completion for the chat shell.
// It implements the readline.AutoCompleter interface to integrate with ishell.
type AutoCompleteService struct {
	commands    []string
	toolNames   func() []string
	toolCommand map[string]bool
	initialized bool
}

// NewAutoCompleteService creates a completer for the given shell commands. toolNames is consulted on
// every completion of the argument of a command listed in toolCommands.
func NewAutoCompleteService(commands []string, toolNames func() []string, toolCommands ...string) *AutoCompleteService {
	sorted := append([]string(nil), commands...)
	sort.Strings(sorted)

	takesTool := make(map[string]bool, len(toolCommands))
	for _, c := range toolCommands {
		takesTool[c] = true
	}
	return &AutoCompleteService{commands: sorted, toolNames: toolNames, toolCommand: takesTool}
}

// Name returns the service name "autocomplete" for registration.
func (a *AutoCompleteService) Name() string {
	return "autocomplete"
}

// Initialize sets up the AutoCompleteService for operation.
func (a *AutoCompleteService) Initialize() error {
	a.initialized = true
	return nil
}

// Do implements the readline.AutoCompleter interface.
// It returns the suffixes completing the word under the cursor and the length of that word.
func (a *AutoCompleteService) Do(line []rune, pos int) (newLine [][]rune, offset int) {
	if !a.initialized {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}

	head := string(line[:pos])
	wordStart := strings.LastIndex(head, " ") + 1
	currentWord := head[wordStart:]

	var candidates []string
	switch {
	case wordStart == 0 && strings.HasPrefix(currentWord, "/"):
		candidates = a.commands
	case wordStart > 0 && a.completesTool(head[:wordStart]):
		candidates = a.tools()
	default:
		return nil, 0
	}

	var suggestions [][]rune
	for _, c := range candidates {
		if strings.HasPrefix(c, currentWord) {
			suggestions = append(suggestions, []rune(strings.TrimPrefix(c, currentWord)))
		}
	}
	return suggestions, len([]rune(currentWord))
}

// completesTool reports whether the text before the current word is a single tool command.
func (a *AutoCompleteService) completesTool(before string) bool {
	fields := strings.Fields(before)
	return len(fields) == 1 && a.toolCommand[fields[0]]
}

func (a *AutoCompleteService) tools() []string {
	if a.toolNames == nil {
		return nil
	}
	names := append([]string(nil), a.toolNames()...)
	sort.Strings(names)
	return names
}
