package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pagepilot/internal/conversation"
	"pagepilot/internal/model"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// taskKind says how an action is executed.
type taskKind int

const (
	kindChat taskKind = iota
	kindReply
	kindTool
)

// task is an action ready for execution. reply tasks carry the thought to pass through.
type task struct {
	kind    taskKind
	action  pilottypes.Action
	thought *thought.Thought
}

func thoughtForAction(action pilottypes.Action) *thought.Thought {
	return thought.NewActions([]pilottypes.Action{pilottypes.NewAction(action.Name, action.Arguments)})
}

// run alternates process and observe until the answer is final, then completes the turn.
func (a *ThoughtAgent) run(ctx context.Context, interaction *conversation.Interaction, current *thought.Thought) error {
	for round := 0; ; round++ {
		processed, err := a.process(ctx, interaction, current)
		if err != nil {
			a.abort(interaction, err)
			return err
		}

		next, again, err := a.observe(ctx, interaction, processed, round)
		if err != nil {
			a.abort(interaction, err)
			return err
		}
		current = next
		if !again {
			break
		}
	}
	return a.onCompleted(ctx, interaction, current)
}

// plan infers the goal and asks the tool model which action to take.
func (a *ThoughtAgent) plan(ctx context.Context, interaction *conversation.Interaction) (*thought.Thought, error) {
	ctx, span := a.tracer.Start(ctx, "agent.plan")
	defer span.End()

	a.setStatus(interaction, conversation.StatusPlanning, "")
	interaction.AddStep(conversation.NewStep(conversation.StepPlan, "", nil))

	available := a.Tools()
	goal := interaction.InputMessage.Text()
	if a.chainOfThought && a.thinker != nil {
		inferred, err := a.thinker.Goal(ctx, interaction.Environment, a.conversation, available)
		if err != nil {
			a.logger.Warn("Goal inference failed", "agent", a.name, "error", err)
		} else if strings.TrimSpace(inferred) != "" {
			goal = inferred
		}
	}
	interaction.SetGoal(goal)

	if len(available) == 0 {
		interaction.UpdateCurrentStep(func(s *conversation.Step) { s.Result = "no tools available" })
		return thought.NewActions(nil), nil
	}

	planned := a.model.ToolsCall(ctx, model.ToolsRequest{
		Messages:     a.conversation.GetMessages(a.contextLength),
		SystemPrompt: interaction.Environment.Prompt(),
		Tools:        available,
		Stream:       true,
	})
	span.SetAttributes(attribute.String("thought.type", string(planned.Type)))

	interaction.UpdateCurrentStep(func(s *conversation.Step) {
		s.Result = describe(planned)
		if planned.Type == thought.TypeError {
			s.Error = planned.ErrorText()
		}
	})
	return planned, nil
}

// process turns a planned thought into an answer thought.
func (a *ThoughtAgent) process(ctx context.Context, interaction *conversation.Interaction, planned *thought.Thought) (*thought.Thought, error) {
	ctx, span := a.tracer.Start(ctx, "agent.process", trace.WithAttributes(attribute.String("thought.type", string(planned.Type))))
	defer span.End()

	switch planned.Type {
	case thought.TypeActions:
		t := a.check(interaction, planned.Actions)
		result, err := a.execute(ctx, interaction, t)
		if err != nil {
			return nil, recordError(span, err)
		}
		return a.postprocess(ctx, interaction, t, result)
	case thought.TypeMessage, thought.TypeStream:
		result, err := a.execute(ctx, interaction, task{
			kind:    kindReply,
			action:  pilottypes.NewAction(ActionReply, nil),
			thought: planned,
		})
		if err != nil {
			return nil, recordError(span, err)
		}
		return result.(*thought.Thought), nil
	case thought.TypeError:
		return planned, nil
	default:
		return nil, recordError(span, fmt.Errorf("%w: %q", ErrUnexpectedThought, planned.Type))
	}
}

// check picks the action to run. Without actions the agent replies directly; otherwise only the
// first action runs and becomes the intent of the interaction.
func (a *ThoughtAgent) check(interaction *conversation.Interaction, actions []pilottypes.Action) task {
	if len(actions) == 0 {
		input := ""
		if last, ok := a.conversation.LastMessage(); ok {
			input = last.Text()
		}
		return task{kind: kindChat, action: pilottypes.NewAction(ActionChat, map[string]any{"input": input})}
	}

	action := pilottypes.NewAction(actions[0].Name, actions[0].Arguments)
	if len(actions) > 1 {
		a.logger.Warn("Only the first action is executed", "agent", a.name, "actions", len(actions))
	}
	interaction.SetIntent(action.Name, action.Arguments)

	switch action.Name {
	case ActionChat:
		return task{kind: kindChat, action: action}
	default:
		return task{kind: kindTool, action: action}
	}
}

// execute runs a task and records an execute step. The result is a Thought for chat and reply
// tasks and whatever the tool returned otherwise.
func (a *ThoughtAgent) execute(ctx context.Context, interaction *conversation.Interaction, t task) (any, error) {
	a.setStatus(interaction, conversation.StatusExecuting, t.action.Name)
	interaction.AddStep(conversation.NewStep(conversation.StepExecute, t.action.Name, t.action.Arguments))

	var result any
	var err error
	switch t.kind {
	case kindChat:
		result = a.model.ChatCompletion(ctx, model.ChatRequest{
			Messages:      a.contextMessages(interaction),
			SystemPrompt:  interaction.Environment.Prompt(),
			Stream:        true,
			UseMultimodal: a.multimodal && interaction.Environment.Screenshot != "",
		})
	case kindReply:
		result = t.thought
	default:
		result, err = a.InvokeTool(ctx, t.action.Name, t.action.Arguments)
	}

	interaction.UpdateCurrentStep(func(s *conversation.Step) {
		if err != nil {
			s.Error = err.Error()
			return
		}
		if th, ok := result.(*thought.Thought); ok {
			s.Result = describe(th)
			return
		}
		s.SetActionResult(result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// postprocess lifts raw tool results into a functionReturn thought and turns it into prose.
func (a *ThoughtAgent) postprocess(ctx context.Context, interaction *conversation.Interaction, t task, result any) (*thought.Thought, error) {
	if th, ok := result.(*thought.Thought); ok && th != nil {
		return th, nil
	}
	return a.thinkResult(ctx, interaction, t.action, thought.NewFunctionReturn(result))
}

// thinkResult asks the chat model to answer the goal from a tool's return value.
func (a *ThoughtAgent) thinkResult(ctx context.Context, interaction *conversation.Interaction, action pilottypes.Action, returned *thought.Thought) (*thought.Thought, error) {
	data, err := json.Marshal(returned.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result of %s: %w", action.Name, err)
	}

	return a.model.ChatCompletion(ctx, model.ChatRequest{
		Messages:     a.contextMessages(interaction),
		SystemPrompt: interaction.Environment.Prompt(),
		UserInput:    resultPrompt(interaction.Goal, action.Name, string(data)),
		Stream:       true,
	}), nil
}

// observe materializes the answer and, with reflection on, lets the reflection service decide
// whether the turn is finished. It reports whether the loop should run again with the returned
// actions thought.
func (a *ThoughtAgent) observe(ctx context.Context, interaction *conversation.Interaction, answer *thought.Thought, round int) (*thought.Thought, bool, error) {
	ctx, span := a.tracer.Start(ctx, "agent.observe", trace.WithAttributes(attribute.Int("agent.round", round)))
	defer span.End()

	if answer.Type == thought.TypeError {
		return answer, false, nil
	}

	reflect := a.enableReflection && a.reflection != nil && round < a.maxReflections
	if reflect {
		a.setStatus(interaction, conversation.StatusReflecting, "")
	}

	text, err := answer.GetMessage(ctx, a.onChunk)
	if err != nil {
		return nil, false, recordError(span, err)
	}
	if !reflect {
		return answer, false, nil
	}

	interaction.SetOutput(text)
	interaction.AddStep(conversation.NewStep(conversation.StepReflect, "", nil))

	verdict, err := a.reflection.Reflection(ctx, interaction.Environment, a.conversation, a.Tools())
	if err != nil {
		a.logger.Warn("Reflection failed, keeping the answer", "agent", a.name, "error", err)
		interaction.UpdateCurrentStep(func(s *conversation.Step) { s.Error = err.Error() })
		return answer, false, nil
	}
	interaction.UpdateCurrentStep(func(s *conversation.Step) {
		s.Result = verdict.Status
		s.SetMessage(verdict.Evaluation)
	})

	if verdict.Status != ReflectionRevise || verdict.Thought == nil {
		return answer, false, nil
	}

	switch verdict.Thought.Type {
	case thought.TypeActions:
		if len(verdict.Thought.Actions) == 0 {
			return answer, false, nil
		}
		interaction.UpdateCurrentStep(func(s *conversation.Step) {
			s.Action = verdict.Thought.Actions[0].Name
			s.Arguments = verdict.Thought.Actions[0].Arguments
		})
		return verdict.Thought, true, nil
	case thought.TypeMessage, thought.TypeStream:
		revised, err := verdict.Thought.GetMessage(ctx, a.onChunk)
		if err != nil {
			return nil, false, recordError(span, err)
		}
		interaction.UpdateCurrentStep(func(s *conversation.Step) {
			s.ActionResult = revisionDiff(text, revised)
		})
		return verdict.Thought, false, nil
	default:
		a.logger.Warn("Reflection returned no usable revision", "agent", a.name, "type", verdict.Thought.Type)
		return answer, false, nil
	}
}

// onCompleted records the final answer and persists the conversation.
func (a *ThoughtAgent) onCompleted(ctx context.Context, interaction *conversation.Interaction, final *thought.Thought) error {
	var text string
	if final.Type == thought.TypeError {
		text = final.ErrorText()
	} else {
		var err error
		text, err = final.GetMessage(ctx, a.onChunk)
		if err != nil {
			a.abort(interaction, err)
			return err
		}
	}

	a.conversation.AppendMessage(pilottypes.NewAssistantMessage(text))
	a.setStatus(interaction, conversation.StatusCompleted, "")
	a.logger.Debug("Interaction completed", "agent", a.name, "id", interaction.ID, "status", interaction.Status)

	if a.repository != nil {
		key, err := a.repository.Save(ctx, a.conversation)
		if err != nil {
			a.logger.Error("Failed to save conversation", "agent", a.name, "error", err)
		} else {
			a.logger.Debug("Conversation saved", "key", key)
		}
	}
	return nil
}

// abort closes an interaction that ended with an error.
func (a *ThoughtAgent) abort(interaction *conversation.Interaction, err error) {
	interaction.UpdateCurrentStep(func(s *conversation.Step) {
		if s.Error == "" {
			s.Error = err.Error()
		}
	})
	a.setStatus(interaction, conversation.StatusCompleted, err.Error())
}

func (a *ThoughtAgent) setStatus(interaction *conversation.Interaction, status conversation.Status, message string) {
	if err := interaction.SetStatus(status, message); err != nil {
		a.logger.Debug("Status change ignored", "agent", a.name, "status", status, "error", err)
		return
	}
	a.logger.Debug("Status changed", "agent", a.name, "status", status)
}

// contextMessages returns the conversation window, attaching the screenshot to the current input
// when the agent runs multimodal.
func (a *ThoughtAgent) contextMessages(interaction *conversation.Interaction) []pilottypes.ChatMessage {
	messages := a.conversation.GetMessages(a.contextLength)
	screenshot := interaction.Environment.Screenshot
	if !a.multimodal || screenshot == "" || len(messages) == 0 {
		return messages
	}

	last := len(messages) - 1
	if messages[last].Role == pilottypes.RoleUser && !messages[last].IsMultimodal() {
		messages[last] = pilottypes.NewMultimodalMessage(messages[last].Text(), screenshot)
	}
	return messages
}

func describe(th *thought.Thought) string {
	switch th.Type {
	case thought.TypeActions:
		names := make([]string, 0, len(th.Actions))
		for _, action := range th.Actions {
			names = append(names, action.Name)
		}
		if len(names) == 0 {
			return "no action"
		}
		return "actions: " + strings.Join(names, ", ")
	case thought.TypeError:
		return "error"
	default:
		return string(th.Type)
	}
}

func revisionDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}

func resultPrompt(goal, tool, result string) string {
	return fmt.Sprintf("The user's goal: %s\n\nThe tool %q returned this JSON result:\n%s\n\n"+
		"Answer the goal in natural language using only this result.", goal, tool, result)
}
