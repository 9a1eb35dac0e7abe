package assistants

import (
	"context"
	"fmt"

	"pagepilot/internal/agent"
	"pagepilot/internal/tools"
	"pagepilot/pkg/pilottypes"
)

// DefaultFindLimit is the number of matching lines find_in_page returns when no limit is given.
const DefaultFindLimit = 5

type findParams struct {
	Keyword string `json:"keyword" jsonschema:"description=Word or phrase to look for"`
	Limit   int    `json:"limit,omitempty" jsonschema:"description=Maximum number of matching lines to return"`
}

type outlineParams struct{}

type statisticsParams struct{}

var pageTools = tools.NewBuilder[*PageAgent]().
	Add(tools.MustDefinitionFromStruct("find_in_page",
		"Find the lines of the current page that contain a keyword", findParams{}), findInPage).
	Add(tools.MustDefinitionFromStruct("page_outline",
		"List the headings of the current page", outlineParams{}), pageOutline).
	Add(tools.MustDefinitionFromStruct("page_statistics",
		"Count the words, lines and headings of the current page and estimate the reading time", statisticsParams{}), pageStatistics).
	MustBuild()

// PageAgent answers questions about a single page.
type PageAgent struct {
	*agent.ThoughtAgent
	page Page
}

// NewPageAgent creates a page agent. The page provides the environment of every turn.
func NewPageAgent(opts agent.Options, page Page, language string) (*PageAgent, error) {
	if opts.Name == "" {
		opts.Name = "page"
	}
	p := &PageAgent{page: page}
	opts.Toolset = tools.Bind(pageTools, p)
	if opts.Environment == nil {
		opts.Environment = staticEnvironment(page.Environment(language))
	}

	base, err := agent.NewThoughtAgent(opts)
	if err != nil {
		return nil, err
	}
	p.ThoughtAgent = base
	return p, nil
}

// Page returns the page the agent works on.
func (p *PageAgent) Page() Page {
	return p.page
}

func findInPage(_ context.Context, p *PageAgent, args tools.Args) (any, error) {
	keyword := args.String(0)
	limit := DefaultFindLimit
	if args.Present(1) && args.Int(1) > 0 {
		limit = args.Int(1)
	}

	matches, total := p.page.Find(keyword, limit)
	return map[string]any{
		"keyword": keyword,
		"total":   total,
		"matches": matches,
	}, nil
}

func pageOutline(_ context.Context, p *PageAgent, _ tools.Args) (any, error) {
	outline := p.page.Outline()
	if len(outline) == 0 {
		return fmt.Sprintf("The page %q has no headings.", p.page.Title), nil
	}
	return outline, nil
}

func pageStatistics(_ context.Context, p *PageAgent, _ tools.Args) (any, error) {
	return p.page.Statistics(), nil
}

func staticEnvironment(env pilottypes.Environment) agent.EnvironmentFunc {
	return func(context.Context) (pilottypes.Environment, error) {
		return env, nil
	}
}
