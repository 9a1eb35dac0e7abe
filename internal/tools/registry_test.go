package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/pkg/pilottypes"
)

type page struct {
	text string
}

var searchDef = pilottypes.ToolDefinition{
	Name:        "search",
	Description: "Search the page",
	Required:    []string{"keyword"},
	Properties: []pilottypes.Property{
		{Name: "keyword", Type: pilottypes.TypeString},
		{Name: "limit", Type: pilottypes.TypeNumber},
		{Name: "exact", Type: pilottypes.TypeBoolean},
	},
}

func testRegistry(t *testing.T) *Registry[*page] {
	t.Helper()
	r, err := NewBuilder[*page]().
		Add(searchDef, func(_ context.Context, p *page, args Args) (any, error) {
			return map[string]any{
				"page":    p.text,
				"keyword": args.String(0),
				"limit":   args.Int(1),
				"limited": args.Present(1),
				"exact":   args.Bool(2),
			}, nil
		}).
		Add(pilottypes.ToolDefinition{Name: "fail"}, func(context.Context, *page, Args) (any, error) {
			return nil, errors.New("handler failed")
		}).
		Build()
	require.NoError(t, err)
	return r
}

func TestRegistry_Invoke(t *testing.T) {
	r := testRegistry(t)
	p := &page{text: "hello world"}

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		check   func(t *testing.T, result any)
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "valid required args",
			tool: "search",
			args: map[string]any{"keyword": "world"},
			check: func(t *testing.T, result any) {
				got := result.(map[string]any)
				assert.Equal(t, "hello world", got["page"])
				assert.Equal(t, "world", got["keyword"])
				assert.Equal(t, false, got["limited"])
			},
		},
		{
			name: "optional args positional",
			tool: "search",
			args: map[string]any{"exact": true, "keyword": "w", "limit": float64(3)},
			check: func(t *testing.T, result any) {
				got := result.(map[string]any)
				assert.Equal(t, 3, got["limit"])
				assert.Equal(t, true, got["exact"])
			},
		},
		{
			name: "messages is always accepted",
			tool: "search",
			args: map[string]any{"keyword": "w", "messages": []string{"hi"}},
			check: func(t *testing.T, result any) {
				assert.NotNil(t, result)
			},
		},
		{
			name: "numbers are not type checked",
			tool: "search",
			args: map[string]any{"keyword": "w", "limit": "ten"},
			check: func(t *testing.T, result any) {
				assert.Equal(t, 0, result.(map[string]any)["limit"])
			},
		},
		{
			name: "missing required",
			tool: "search",
			args: map[string]any{"limit": float64(1)},
			wantErr: func(t *testing.T, err error) {
				var missed *RequiredParameterMissedError
				require.ErrorAs(t, err, &missed)
				assert.Equal(t, "keyword", missed.Parameter)
			},
		},
		{
			name: "undeclared parameter",
			tool: "search",
			args: map[string]any{"keyword": "w", "colour": "red"},
			wantErr: func(t *testing.T, err error) {
				var invalid *InvalidToolParameterError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, "colour", invalid.Parameter)
			},
		},
		{
			name: "string parameter given a number",
			tool: "search",
			args: map[string]any{"keyword": float64(42)},
			wantErr: func(t *testing.T, err error) {
				var typeErr *ToolParameterTypeError
				require.ErrorAs(t, err, &typeErr)
				assert.Equal(t, "keyword", typeErr.Parameter)
				assert.Equal(t, pilottypes.TypeString, typeErr.Expected)
			},
		},
		{
			name: "unknown tool",
			tool: "nope",
			args: map[string]any{},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrToolNotFound)
				var notFound *ToolNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, "nope", notFound.Name)
			},
		},
		{
			name: "handler error propagates",
			tool: "fail",
			args: nil,
			wantErr: func(t *testing.T, err error) {
				assert.EqualError(t, err, "handler failed")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Invoke(context.Background(), p, tt.tool, tt.args)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, result)
		})
	}
}

func TestRegistry_DefinitionsKeepRegistrationOrder(t *testing.T) {
	r := testRegistry(t)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "search", defs[0].Name)
	assert.Equal(t, "fail", defs[1].Name)

	def, ok := r.Get("search")
	require.True(t, ok)
	assert.Equal(t, searchDef, def)
	assert.True(t, r.Has("fail"))
	assert.False(t, r.Has("missing"))
}

func TestBuilder_Errors(t *testing.T) {
	noop := func(context.Context, *page, Args) (any, error) { return nil, nil }

	tests := []struct {
		name    string
		builder *Builder[*page]
		errText string
	}{
		{
			name:    "duplicate name",
			builder: NewBuilder[*page]().Add(searchDef, noop).Add(searchDef, noop),
			errText: "already registered",
		},
		{
			name:    "missing handler",
			builder: NewBuilder[*page]().Add(searchDef, nil),
			errText: "no handler",
		},
		{
			name: "required parameter not declared",
			builder: NewBuilder[*page]().Add(pilottypes.ToolDefinition{
				Name:     "broken",
				Required: []string{"ghost"},
			}, noop),
			errText: "ghost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
			assert.Panics(t, func() { tt.builder.MustBuild() })
		})
	}
}

func TestBind(t *testing.T) {
	bound := Bind(testRegistry(t), &page{text: "bound page"})

	assert.Len(t, bound.Definitions(), 2)
	result, err := bound.Invoke(context.Background(), "search", map[string]any{"keyword": "x"})
	require.NoError(t, err)
	assert.Equal(t, "bound page", result.(map[string]any)["page"])
}

func TestArgs_Accessors(t *testing.T) {
	args := Args{"text", float64(2.5), "true", nil, map[string]any{"a": 1}}

	assert.Equal(t, "text", args.String(0))
	assert.Equal(t, 2.5, args.Float(1))
	assert.Equal(t, 2, args.Int(1))
	assert.True(t, args.Bool(2))
	assert.False(t, args.Present(3))
	assert.Equal(t, "", args.String(3))
	assert.Equal(t, `{"a":1}`, args.String(4))
	assert.False(t, args.Present(10))
}
