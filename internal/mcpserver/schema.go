package mcpserver

import (
	"github.com/dyluth/romp/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

var stringItems = mcp.Items(map[string]any{"type": "string"})

var alternativeItems = mcp.Items(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"option":          map[string]any{"type": "string"},
		"pros":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"cons":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"reason_rejected": map[string]any{"type": "string"},
	},
	"required": []string{"option"},
})

var resultItems = mcp.Items(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"description": map[string]any{"type": "string"},
		"status":      map[string]any{"type": "string", "enum": []string{"completed", "partial", "blocked", "failed"}},
		"notes":       map[string]any{"type": "string"},
		"artifacts":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"description", "status"},
})

func scopeParam(desc string) mcp.ToolOption {
	return mcp.WithString("scope", mcp.Description(desc))
}

// parameters holds each operation's input schema. Property names match the
// JSON tags of the store's request types.
var parameters = map[store.Operation][]mcp.ToolOption{
	store.OpAssemble: {
		mcp.WithString("task", mcp.Required(), mcp.Description("What you are about to do")),
		scopeParam("Codebase region, e.g. src/auth/"),
		mcp.WithNumber("max_tokens", mcp.Description("Token budget for the bundle")),
	},
	store.OpWhy: {
		mcp.WithString("scope", mcp.Required(), mcp.Description("Codebase region to explain")),
	},
	store.OpRead: {
		scopeParam("Only entries related to this scope"),
		mcp.WithArray("types", stringItems, mcp.Description("Entry types to include")),
		mcp.WithArray("tags", stringItems, mcp.Description("Entries carrying any of these tags")),
		mcp.WithString("agent_id", mcp.Description("Only entries posted by this agent")),
		mcp.WithNumber("since_ms", mcp.Description("Only entries created at or after this Unix time in milliseconds")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return")),
	},
	store.OpRecent: {
		mcp.WithNumber("n", mcp.Description("How many entries to return")),
		mcp.WithArray("types", stringItems, mcp.Description("Entry types to include")),
	},
	store.OpPost: {
		mcp.WithString("entry_type", mcp.Required(), mcp.Enum("finding", "warning", "need")),
		mcp.WithString("summary", mcp.Required(), mcp.Description("One line, at most 200 characters")),
		mcp.WithString("detail", mcp.Description("Full explanation")),
		scopeParam("Codebase region the entry is about"),
		mcp.WithArray("tags", stringItems),
		mcp.WithArray("relates_to", stringItems, mcp.Description("IDs of related records")),
	},
	store.OpDecide: {
		mcp.WithString("domain", mcp.Required(), mcp.Description("e.g. security, architecture")),
		scopeParam("Codebase region the decision applies to"),
		mcp.WithString("summary", mcp.Required()),
		mcp.WithString("context", mcp.Required(), mcp.Description("The situation that forced a decision")),
		mcp.WithString("rationale", mcp.Required()),
		mcp.WithArray("constraints", stringItems),
		mcp.WithArray("alternatives", mcp.Required(), alternativeItems, mcp.Description("At least one option you considered and rejected")),
		mcp.WithArray("depends_on", stringItems, mcp.Description("IDs of decisions this one builds on")),
		mcp.WithString("supersedes", mcp.Description("ID of the decision this one replaces")),
		mcp.WithString("confidence", mcp.Enum("high", "medium", "low")),
		mcp.WithBoolean("reversible"),
		mcp.WithArray("affected_files", stringItems),
		mcp.WithArray("affected_symbols", stringItems),
	},
	store.OpSearchDecisions: {
		mcp.WithString("query", mcp.Description("Keywords; empty matches every decision")),
		mcp.WithString("domain"),
		scopeParam("Only decisions related to this scope"),
		mcp.WithNumber("limit"),
	},
	store.OpHandoff: {
		mcp.WithString("target_agent", mcp.Description("Agent to receive the work; empty means any capable agent")),
		mcp.WithString("summary", mcp.Required()),
		scopeParam("Codebase region the work covered"),
		mcp.WithArray("results", resultItems, mcp.Description("Each unit of work and how far it got")),
	},
	store.OpDelegate: {
		mcp.WithString("summary", mcp.Required()),
		mcp.WithArray("required_capabilities", mcp.Required(), stringItems),
		mcp.WithString("urgency", mcp.Enum("high", "normal", "low")),
		scopeParam("Codebase region the work is in"),
		mcp.WithArray("tags", stringItems),
	},
}
