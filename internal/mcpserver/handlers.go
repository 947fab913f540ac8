package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/checkwatch/internal/writeback"
	"github.com/mark3labs/mcp-go/mcp"
)

// resolve maps a file argument to a path on disk.
func (s *Server) resolve(file string) string {
	if filepath.IsAbs(file) || s.root == "" {
		return file
	}
	return filepath.Join(s.root, file)
}

// intArg reads a JSON number argument (numbers arrive as float64).
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// resultText formats a write-back result for the agent.
func resultText(action string, res writeback.Result) string {
	if !res.Success {
		var oor *writeback.OutOfRangeError
		if errors.As(res.Err, &oor) {
			return fmt.Sprintf("error: line %d is out of range (file has %d lines)", oor.Line, oor.Total)
		}
		return fmt.Sprintf("error: %v", res.Err)
	}
	if res.TasksUpdated == 0 {
		return fmt.Sprintf("%s: no changes (already in the requested state or not a task line)", action)
	}
	return fmt.Sprintf("%s: %d task(s) updated", action, res.TasksUpdated)
}

// handleTaskList returns the project's tasks, one per line.
func (s *Server) handleTaskList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	project, ok := args["project"].(string)
	if !ok || project == "" {
		return mcp.NewToolResultText("error: missing or invalid 'project' parameter"), nil
	}
	status, _ := args["status"].(string)
	if status == "" {
		status = "all"
	}
	if status != "all" && status != "open" && status != "done" {
		return mcp.NewToolResultText("error: 'status' must be one of all, open, done"), nil
	}

	found, err := s.lister.GetProjectTasks(project)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}

	var lines []string
	done := 0
	for _, t := range found {
		if t.IsCompleted {
			done++
		}
		if (status == "open" && t.IsCompleted) || (status == "done" && !t.IsCompleted) {
			continue
		}
		mark := " "
		if t.IsCompleted {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %s:%d %s", mark, t.SourceFile, t.LineNumber, t.Description)
		if t.Phase > 0 {
			line += fmt.Sprintf(" (phase %d)", t.Phase)
		}
		if t.Agent != "" {
			line += fmt.Sprintf(" @%s", t.Agent)
		}
		lines = append(lines, line)
	}

	header := fmt.Sprintf("%s: %d/%d tasks completed", project, done, len(found))
	if len(lines) == 0 {
		return mcp.NewToolResultText(header + "\nNo tasks"), nil
	}
	return mcp.NewToolResultText(header + "\n" + strings.Join(lines, "\n")), nil
}

// handleTaskUpdate checks or unchecks one task line.
func (s *Server) handleTaskUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	file, ok := args["file"].(string)
	if !ok || file == "" {
		return mcp.NewToolResultText("error: missing or invalid 'file' parameter"), nil
	}
	line, ok := intArg(args, "line")
	if !ok {
		return mcp.NewToolResultText("error: 'line' must be a number"), nil
	}
	completed, ok := args["completed"].(bool)
	if !ok {
		return mcp.NewToolResultText("error: 'completed' must be a boolean"), nil
	}
	timestamp := true
	if v, ok := args["timestamp"].(bool); ok {
		timestamp = v
	}

	res := s.engine.UpdateTask(s.resolve(file), line, completed, timestamp)
	return mcp.NewToolResultText(resultText(fmt.Sprintf("%s:%d", file, line), res)), nil
}

// handlePhaseComplete checks every task of one phase.
func (s *Server) handlePhaseComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	file, ok := args["file"].(string)
	if !ok || file == "" {
		return mcp.NewToolResultText("error: missing or invalid 'file' parameter"), nil
	}
	phase, ok := intArg(args, "phase")
	if !ok {
		return mcp.NewToolResultText("error: 'phase' must be a number"), nil
	}

	res := s.engine.CompletePhase(s.resolve(file), phase)
	if errors.Is(res.Err, writeback.ErrPhaseNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("error: no '## Phase %d' heading in %s", phase, file)), nil
	}
	return mcp.NewToolResultText(resultText(fmt.Sprintf("%s phase %d", file, phase), res)), nil
}

// handleTaskRestore restores a file from backup.
func (s *Server) handleTaskRestore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	file, ok := args["file"].(string)
	if !ok || file == "" {
		return mcp.NewToolResultText("error: missing or invalid 'file' parameter"), nil
	}
	timestamp, _ := args["timestamp"].(string)

	if !s.engine.RestoreFromBackup(s.resolve(file), timestamp) {
		if timestamp != "" {
			return mcp.NewToolResultText(fmt.Sprintf("error: no backup of %s with timestamp %s", file, timestamp)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("error: no backup of %s", file)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Restored %s", file)), nil
}
