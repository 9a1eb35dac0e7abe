package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/pkg/pilottypes"
)

func TestInteraction_StatusTransitions(t *testing.T) {
	interaction := NewInteraction(pilottypes.NewUserMessage("hi"), "page", pilottypes.Environment{})
	assert.Equal(t, StatusStart, interaction.Status)
	assert.Empty(t, interaction.Goal)

	require.NoError(t, interaction.SetStatus(StatusPlanning, ""))
	require.NoError(t, interaction.SetStatus(StatusExecuting, "running find_in_page"))
	require.NoError(t, interaction.SetStatus(StatusReflecting, ""))
	require.NoError(t, interaction.SetStatus(StatusExecuting, ""))
	assert.Error(t, interaction.SetStatus(StatusStart, ""))

	require.NoError(t, interaction.SetStatus(StatusCompleted, ""))
	assert.True(t, interaction.IsCompleted())

	err := interaction.SetStatus(StatusExecuting, "")
	assert.ErrorIs(t, err, ErrInteractionCompleted)
	assert.Equal(t, StatusCompleted, interaction.Status)
}

func TestInteraction_ListenerFiresOnEveryMutation(t *testing.T) {
	interaction := NewInteraction(pilottypes.NewUserMessage("hi"), "", pilottypes.Environment{})

	var first, second int
	interaction.SetOnChange(func(*Interaction) { first++ })
	interaction.SetOnChange(func(*Interaction) { second++ })

	interaction.SetGoal("greet")
	interaction.SetIntent("chat", map[string]any{"input": "hi"})
	interaction.AddStep(NewStep(StepExecute, "chat", nil))
	interaction.UpdateCurrentStep(func(s *Step) { s.Result = "hello" })
	interaction.SetOutput("hello")
	require.NoError(t, interaction.SetStatus(StatusCompleted, ""))

	assert.Equal(t, 0, first, "only the last registered listener is kept")
	assert.Equal(t, 6, second)
}

func TestInteraction_Steps(t *testing.T) {
	interaction := NewInteraction(pilottypes.NewUserMessage("hi"), "", pilottypes.Environment{})
	assert.Nil(t, interaction.Current())

	interaction.UpdateCurrentStep(func(*Step) { t.Fatal("no step to update") })

	interaction.AddStep(NewStep(StepPlan, "", nil))
	step := interaction.AddStep(NewStep(StepExecute, "translate", map[string]any{"text": "hola"}))
	step.SetActionResult(map[string]any{"ok": true})

	current := interaction.Current()
	require.NotNil(t, current)
	assert.Equal(t, StepExecute, current.Type)
	assert.Equal(t, `{"ok":true}`, current.ActionResult)
	assert.Len(t, interaction.Steps, 2)
}

func TestInteraction_Messages(t *testing.T) {
	interaction := NewInteraction(pilottypes.NewUserMessage("hi"), "", pilottypes.Environment{})
	assert.Len(t, interaction.Messages(), 1)

	interaction.SetOutput("hello")
	messages := interaction.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, pilottypes.RoleUser, messages[0].Role)
	assert.Equal(t, pilottypes.RoleAssistant, messages[1].Role)
}
