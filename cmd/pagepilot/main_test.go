package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/internal/agent"
	"pagepilot/internal/assistants"
	"pagepilot/internal/config"
	"pagepilot/internal/output"
	"pagepilot/internal/storage"
	"pagepilot/internal/testutils"
	"pagepilot/internal/thought"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	path := t.TempDir()
	if driver == storage.DriverSQLite {
		path = filepath.Join(path, "pagepilot.db")
	}
	return &config.Config{
		Provider:       "openai",
		Timeout:        time.Minute,
		ContextLength:  10,
		MaxReflections: 3,
		Style:          "notty",
		Store:          config.StoreConfig{Driver: driver, Path: path},
	}
}

func withModel(t *testing.T, m agent.ModelService) {
	t.Helper()
	original := modelFactory
	modelFactory = func(context.Context, *config.Config) (agent.ModelService, error) { return m, nil }
	t.Cleanup(func() { modelFactory = original })
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func samplePage(t *testing.T) assistants.Page {
	t.Helper()
	path := testutils.NewFileHelpers().CreateTempFile(t, "go.md", testutils.SamplePage)
	page, err := loadPage(path)
	require.NoError(t, err)
	return page
}

func TestAskAnswersAndStoresConversation(t *testing.T) {
	for _, driver := range []string{storage.DriverJSON, storage.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			withModel(t, testutils.NewScriptedModel().
				QueueTools(thought.NewMessage("Channels are typed pipes between goroutines.")))

			cmd, out := testCommand()
			a, err := newApp(context.Background(), testConfig(t, driver), samplePage(t), newPrinter(out, true, false))
			require.NoError(t, err)
			defer func() { require.NoError(t, a.Close()) }()

			require.NoError(t, ask(cmd, a, "What are channels?"))
			assert.Contains(t, out.String(), "Channels are typed pipes")

			out.Reset()
			require.NoError(t, listConversations(cmd, a.store, a.out))
			assert.Contains(t, out.String(), "What are channels?")

			summaries, err := a.store.List(context.Background())
			require.NoError(t, err)
			require.Len(t, summaries, 1)

			conv, err := a.store.Load(context.Background(), summaries[0].ID)
			require.NoError(t, err)
			out.Reset()
			printConversation(a.out, conv, func(s string) string { return s })
			assert.Contains(t, out.String(), "> What are channels?")
			assert.Contains(t, out.String(), "Channels are typed pipes between goroutines.")
		})
	}
}

func TestAskBackendFailureIsTheAnswer(t *testing.T) {
	withModel(t, testutils.NewScriptedModel().
		QueueTools(thought.NewError(errors.New("rate limited"))))

	cmd, out := testCommand()
	a, err := newApp(context.Background(), testConfig(t, storage.DriverJSON), samplePage(t), newPrinter(out, false, true))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, ask(cmd, a, "Summarize"))
	assert.JSONEq(t, `{"type":"answer","message":"rate limited"}`, out.String())
}

func TestNewAppModelFailure(t *testing.T) {
	original := modelFactory
	modelFactory = func(context.Context, *config.Config) (agent.ModelService, error) {
		return nil, errors.New("no key")
	}
	t.Cleanup(func() { modelFactory = original })

	_, err := newApp(context.Background(), testConfig(t, storage.DriverJSON), assistants.NewPage(""), output.NewPrinter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key")
}

func TestNewAppUnknownStoreDriver(t *testing.T) {
	withModel(t, testutils.NewScriptedModel())
	cfg := testConfig(t, storage.DriverJSON)
	cfg.Store.Driver = "redis"

	_, err := newApp(context.Background(), cfg, assistants.NewPage(""), output.NewPrinter())
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestSessionTools(t *testing.T) {
	withModel(t, testutils.NewScriptedModel())
	cmd, out := testCommand()
	a, err := newApp(context.Background(), testConfig(t, storage.DriverJSON), samplePage(t), newPrinter(out, true, false))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	s := &session{app: a, cmd: cmd}
	for _, def := range a.assistant.Tools() {
		s.toolNames = append(s.toolNames, def.Name)
	}

	_, err = s.setToolEnabled([]string{"shred"}, false)
	assert.ErrorContains(t, err, "unknown tool shred")
	_, err = s.setToolEnabled(nil, false)
	assert.ErrorContains(t, err, "usage")

	s.report(s.setToolEnabled([]string{"translate"}, false))
	assert.Equal(t, "Disabled translate\n", out.String())
	assert.True(t, a.assistant.IsToolDisabled("translate"))
	assert.Contains(t, s.toolList(), "translate [translator] (disabled)\n")
	assert.Contains(t, s.toolList(), "find_in_page [page]\n")

	msg, err := s.setToolEnabled([]string{"translate"}, true)
	require.NoError(t, err)
	assert.Equal(t, "Enabled translate", msg)
	assert.False(t, a.assistant.IsToolDisabled("translate"))
}

func TestSessionResume(t *testing.T) {
	withModel(t, testutils.NewScriptedModel().QueueTools(thought.NewMessage("Three headings.")))
	cmd, out := testCommand()
	a, err := newApp(context.Background(), testConfig(t, storage.DriverJSON), samplePage(t), newPrinter(out, true, false))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, ask(cmd, a, "How many headings?"))
	id := a.assistant.Conversation().ID

	s := &session{app: a, cmd: cmd}
	_, err = s.copyLastAnswer()
	assert.ErrorContains(t, err, "nothing to copy yet")

	a.assistant.Reset(nil)
	require.NoError(t, s.resume(id))
	assert.Equal(t, id, a.assistant.Conversation().ID)
	assert.Equal(t, "Three headings.", s.lastAnswer)

	assert.ErrorContains(t, s.resume("missing"), "no conversation with id missing")
}

func TestLoadPage(t *testing.T) {
	page, err := loadPage("")
	require.NoError(t, err)
	assert.Empty(t, page.Content)

	_, err = loadPage(filepath.Join(t.TempDir(), "absent.md"))
	assert.ErrorContains(t, err, "failed to read page")
}

func TestDescribeTurnError(t *testing.T) {
	assert.Equal(t, "A turn is already in progress.", describeTurnError(agent.ErrTurnInProgress))
	assert.Equal(t, "Cancelled.", describeTurnError(context.Canceled))
	assert.Equal(t, "boom", describeTurnError(errors.New("boom")))
}

func TestSessionTurnWithoutStreaming(t *testing.T) {
	withModel(t, testutils.NewScriptedModel().QueueTools(thought.NewMessage("Use **select**.")))
	cmd, out := testCommand()
	a, err := newApp(context.Background(), testConfig(t, storage.DriverJSON), samplePage(t), newPrinter(out, true, false))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	s := &session{app: a, cmd: cmd}
	s.turn("How do I wait on two channels?")
	assert.Equal(t, "Use **select**.", s.lastAnswer)
	assert.Contains(t, out.String(), "select")
}

func TestSessionTurnStreams(t *testing.T) {
	withModel(t, testutils.NewScriptedModel().
		QueueTools(thought.NewStream(thought.TextStream("Use ", "select."))))
	cmd, out := testCommand()
	a, err := newApp(context.Background(), testConfig(t, storage.DriverJSON), samplePage(t), newPrinter(out, true, false))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	s := &session{app: a, cmd: cmd, stream: true}
	s.turn("How do I wait on two channels?")
	assert.Equal(t, "Use select.\n", out.String())
}

func TestSessionTurnStreamingShowsErrorAnswer(t *testing.T) {
	withModel(t, testutils.NewScriptedModel().
		QueueTools(thought.NewError(errors.New("rate limited by provider"))))
	cmd, out := testCommand()
	a, err := newApp(context.Background(), testConfig(t, storage.DriverJSON), samplePage(t), newPrinter(out, true, false))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	s := &session{app: a, cmd: cmd, stream: true}
	s.turn("Summarize")
	assert.Equal(t, "rate limited by provider", s.lastAnswer)
	assert.Contains(t, out.String(), "rate limited by provider")
}

func TestSessionTurnStreamingShowsRevisedAnswer(t *testing.T) {
	withModel(t, testutils.NewScriptedModel().
		QueueTools(thought.NewStream(thought.TextStream("draft ", "answer"))).
		QueueChat(thought.NewMessage(`{"status":"revise","evaluation":"too short","revision":"Revised full answer"}`)))
	cfg := testConfig(t, storage.DriverJSON)
	cfg.Reflection = true
	cmd, out := testCommand()
	a, err := newApp(context.Background(), cfg, samplePage(t), newPrinter(out, true, false))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	s := &session{app: a, cmd: cmd, stream: true}
	s.turn("Summarize")
	assert.Equal(t, "Revised full answer", s.lastAnswer)

	printed := out.String()
	assert.Contains(t, printed, "draft answer\n")
	assert.Contains(t, printed, "Revised full answer")
	assert.Greater(t, strings.Index(printed, "Revised full answer"), strings.Index(printed, "draft answer"))
}
