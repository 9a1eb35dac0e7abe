package pilottypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageText(t *testing.T) {
	plain := NewUserMessage("hello")
	assert.Equal(t, "hello", plain.Text())
	assert.False(t, plain.IsMultimodal())

	mm := NewMultimodalMessage("what is this?", "data:image/png;base64,AAAA")
	assert.True(t, mm.IsMultimodal())
	assert.Equal(t, "what is this?", mm.Text())
	assert.Equal(t, ChatMessage{Role: RoleUser, Content: "what is this?"}, mm.Flatten())

	imageOnly := NewMultimodalMessage("", "https://example.com/a.png")
	require.Len(t, imageOnly.Parts, 1)
	assert.Equal(t, "", imageOnly.Text())
	assert.False(t, imageOnly.IsEmpty())
}

func TestChatMessageIsEmpty(t *testing.T) {
	assert.True(t, NewUserMessage("  \n").IsEmpty())
	assert.True(t, ChatMessage{Role: RoleUser}.IsEmpty())
	assert.False(t, NewSystemMessage("x").IsEmpty())
}

func TestChatMessageAsParts(t *testing.T) {
	assert.Nil(t, ChatMessage{Role: RoleAssistant}.AsParts())
	assert.Equal(t, []ContentPart{{Type: ContentPartText, Text: "hi"}}, NewAssistantMessage("hi").AsParts())

	mixed := ChatMessage{
		Role:    RoleUser,
		Content: "caption",
		Parts:   []ContentPart{{Type: ContentPartImageURL, ImageURL: "u"}},
	}
	parts := mixed.AsParts()
	require.Len(t, parts, 2)
	assert.Equal(t, ContentPartText, parts[0].Type)
	assert.Equal(t, "u", parts[1].ImageURL)

	parts[1].ImageURL = "changed"
	assert.Equal(t, "u", mixed.Parts[0].ImageURL)
}

func TestToolDefinitionValidate(t *testing.T) {
	valid := ToolDefinition{
		Name:       "find_in_page",
		Required:   []string{"keyword"},
		Properties: []Property{{Name: "keyword", Type: TypeString}, {Name: "limit", Type: TypeInteger}},
	}
	require.NoError(t, valid.Validate())
	assert.True(t, valid.IsRequired("keyword"))
	assert.False(t, valid.IsRequired("limit"))

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{"missing name", ToolDefinition{}},
		{"undeclared required", ToolDefinition{Name: "x", Required: []string{"q"}}},
		{"duplicate property", ToolDefinition{Name: "x", Properties: []Property{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeString}}}},
		{"unknown type", ToolDefinition{Name: "x", Properties: []Property{{Name: "a", Type: "date"}}}},
		{"untyped property", ToolDefinition{Name: "x", Properties: []Property{{Name: "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.def.Validate())
		})
	}
}

func TestToolDefinitionJSONSchema(t *testing.T) {
	def := ToolDefinition{
		Name:     "translate",
		Required: []string{"text"},
		Properties: []Property{
			{Name: "text", Type: TypeString, Description: "Text to translate"},
			{Name: "target_language", Type: TypeString, Enum: []string{"en", "fr"}},
			{Name: "tags", Type: TypeArray},
		},
	}
	schema := def.JSONSchema()
	assert.Equal(t, TypeObject, schema["type"])
	assert.Equal(t, []string{"text"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": TypeString, "description": "Text to translate"}, props["text"])
	assert.Equal(t, []string{"en", "fr"}, props["target_language"].(map[string]any)["enum"])
	assert.Equal(t, map[string]any{"type": TypeString}, props["tags"].(map[string]any)["items"])

	_, hasRequired := ToolDefinition{Name: "x"}.JSONSchema()["required"]
	assert.False(t, hasRequired)
}

func TestNewActionAndEnvironment(t *testing.T) {
	a := NewAction("chat", nil)
	assert.NotNil(t, a.Arguments)
	assert.Empty(t, a.Arguments)

	assert.Equal(t, "", Environment{}.Prompt())
	assert.Equal(t, "be brief", StaticEnvironment("be brief").Prompt())
}
