package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers the task tools with the MCP server.
func (s *Server) registerTools() error {
	s.mcpServer.AddTool(
		mcp.NewTool("task-list",
			mcp.WithDescription("List the checkbox tasks of a project, rescanned from disk"),
			mcp.WithString("project", mcp.Required(),
				mcp.Description("Project name (directory under the workspace root)"),
			),
			mcp.WithString("status",
				mcp.Description("Filter: all, open or done (default: all)"),
				mcp.Enum("all", "open", "done"),
			),
		),
		s.handleTaskList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("task-update",
			mcp.WithDescription("Check or uncheck the task on one line of a markdown file"),
			mcp.WithString("file", mcp.Required(),
				mcp.Description("File path, absolute or relative to the workspace root"),
			),
			mcp.WithNumber("line", mcp.Required(),
				mcp.Description("1-based line number of the task"),
			),
			mcp.WithBoolean("completed", mcp.Required(),
				mcp.Description("true to check the task, false to uncheck it"),
			),
			mcp.WithBoolean("timestamp",
				mcp.Description("Add a completion date marker when checking (default: true)"),
			),
		),
		s.handleTaskUpdate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("phase-complete",
			mcp.WithDescription("Check every task under a '## Phase N' heading"),
			mcp.WithString("file", mcp.Required(),
				mcp.Description("File path, absolute or relative to the workspace root"),
			),
			mcp.WithNumber("phase", mcp.Required(),
				mcp.Description("Phase number"),
			),
		),
		s.handlePhaseComplete,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("task-restore",
			mcp.WithDescription("Restore a file from its most recent backup, or from the backup with the given timestamp"),
			mcp.WithString("file", mcp.Required(),
				mcp.Description("File path, absolute or relative to the workspace root"),
			),
			mcp.WithString("timestamp",
				mcp.Description("Backup timestamp as listed by the backups command"),
			),
		),
		s.handleTaskRestore,
	)

	return nil
}
