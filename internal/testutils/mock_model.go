package testutils

import (
	"context"
	"errors"
	"sync"

	"pagepilot/internal/conversation"
	"pagepilot/internal/model"
	"pagepilot/internal/thought"
)

// ErrScriptExhausted is carried by the error thought returned once a script runs out.
var ErrScriptExhausted = errors.New("scripted model: no more responses")

// ScriptedModel is a model service that replays queued thoughts and records every request.
type ScriptedModel struct {
	mu           sync.Mutex
	chat         []*thought.Thought
	tools        []*thought.Thought
	ChatRequests []model.ChatRequest
	ToolRequests []model.ToolsRequest
}

// NewScriptedModel creates an empty scripted model.
func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{}
}

// QueueChat appends thoughts returned by ChatCompletion, in order.
func (m *ScriptedModel) QueueChat(thoughts ...*thought.Thought) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat = append(m.chat, thoughts...)
	return m
}

// QueueTools appends thoughts returned by ToolsCall, in order.
func (m *ScriptedModel) QueueTools(thoughts ...*thought.Thought) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, thoughts...)
	return m
}

// ChatCompletion implements the agent's model service.
func (m *ScriptedModel) ChatCompletion(_ context.Context, req model.ChatRequest) *thought.Thought {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatRequests = append(m.ChatRequests, req)
	return pop(&m.chat)
}

// ToolsCall implements the agent's model service.
func (m *ScriptedModel) ToolsCall(_ context.Context, req model.ToolsRequest) *thought.Thought {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ToolRequests = append(m.ToolRequests, req)
	return pop(&m.tools)
}

// Calls returns how many chat and tool requests were made.
func (m *ScriptedModel) Calls() (chat, tools int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatRequests), len(m.ToolRequests)
}

func pop(queue *[]*thought.Thought) *thought.Thought {
	if len(*queue) == 0 {
		return thought.NewError(ErrScriptExhausted)
	}
	next := (*queue)[0]
	*queue = (*queue)[1:]
	return next
}

// RecordingRepository keeps saved conversations in memory. Err, when set, fails every save.
type RecordingRepository struct {
	mu    sync.Mutex
	Saved []*conversation.Conversation
	Err   error
}

// Save implements the agent's conversation repository.
func (r *RecordingRepository) Save(_ context.Context, conv *conversation.Conversation) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	r.Saved = append(r.Saved, conv)
	return conv.ID, nil
}

// Count returns the number of successful saves.
func (r *RecordingRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Saved)
}
