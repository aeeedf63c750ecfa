// Package mcptools 通过 MCP 暴露 recipe 与上下文聚合
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KH1188/juliusos/internal/contextbuilder"
	"github.com/KH1188/juliusos/internal/recipe"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Recipes interface {
	Run(ctx context.Context, name string, userID int64, params recipe.Params) (any, error)
	Names() []string
}

type ContextSource interface {
	Build(ctx context.Context, userID int64, windowDays int, modules []string) *contextbuilder.Snapshot
}

type Tools struct {
	recipes     Recipes
	context     ContextSource
	defaultUser int64
	windowDays  int
}

func New(recipes Recipes, src ContextSource, defaultUser int64, windowDays int) *Tools {
	return &Tools{recipes: recipes, context: src, defaultUser: defaultUser, windowDays: windowDays}
}

// Register 注册 list_recipes、run_recipe、build_context
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_recipes",
		mcp.WithDescription("List the names of the agent recipes that can be run."),
	), t.ListRecipes)

	s.AddTool(mcp.NewTool("run_recipe",
		mcp.WithDescription("Run a named recipe (daily_digest, macro_coach, ...) for a user and return its JSON result."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Recipe name, see list_recipes."),
		),
		mcp.WithNumber("user_id",
			mcp.Description("User id. Defaults to the configured default user."),
		),
		mcp.WithString("params",
			mcp.Description(`Recipe parameters as a JSON object, e.g. {"passage":"John 3:16"}.`),
		),
	), t.RunRecipe)

	s.AddTool(mcp.NewTool("build_context",
		mcp.WithDescription("Build the context snapshot the recipes see for a user and time window."),
		mcp.WithNumber("user_id",
			mcp.Description("User id. Defaults to the configured default user."),
		),
		mcp.WithNumber("days",
			mcp.Description("Window size in days."),
		),
		mcp.WithString("modules",
			mcp.Description("Comma-separated modules: "+strings.Join(contextbuilder.AllModules, ", ")+". Empty means all."),
		),
	), t.BuildContext)
}

func (t *Tools) ListRecipes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(t.recipes.Names(), "\n")), nil
}

func (t *Tools) RunRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(req.GetString("name", ""))
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	params := recipe.Params{}
	if raw := strings.TrimSpace(req.GetString("params", "")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("params must be a JSON object: %v", err)), nil
		}
	}

	res, err := t.recipes.Run(ctx, name, t.userID(req), params)
	if errors.Is(err, recipe.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown recipe %q, available: %s", name, strings.Join(t.recipes.Names(), ", "))), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (t *Tools) BuildContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := int(req.GetFloat("days", float64(t.windowDays)))
	var modules []string
	for _, m := range strings.Split(req.GetString("modules", ""), ",") {
		if m = strings.TrimSpace(m); m != "" {
			modules = append(modules, m)
		}
	}
	return jsonResult(t.context.Build(ctx, t.userID(req), days, modules))
}

func (t *Tools) userID(req mcp.CallToolRequest) int64 {
	if id := int64(req.GetFloat("user_id", 0)); id > 0 {
		return id
	}
	return t.defaultUser
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
