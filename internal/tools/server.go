// Package tools exposes the reminder service as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/notexe/reminderd/internal/reminder"
	"github.com/notexe/reminderd/internal/service"
)

const (
	serverName    = "reminderd"
	serverVersion = "1.0.0"
)

// Completer completes a reminder the way a notification button does.
type Completer interface {
	Complete(ctx context.Context, reminderID int64) error
}

// Server is the MCP server for reminder management.
type Server struct {
	mcpServer *server.MCPServer
	svc       *service.Service
	completer Completer
}

// NewServer creates a new MCP server on top of the reminder service.
func NewServer(svc *service.Service, completer Completer) *Server {
	s := &Server{
		svc:       svc,
		completer: completer,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

const datesHelp = "Comma-separated trigger instants, each RFC3339 (2025-01-15T09:00:00Z) or epoch milliseconds"

func (s *Server) registerTools() {
	// add_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Add a new reminder with a title, optional description and zero or more trigger dates"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("dates", mcp.Description(datesHelp)),
		),
		s.handleAddReminder,
	)

	// list_reminders
	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List all reminders, optionally filtered by status (pending or completed)"),
			mcp.WithString("status", mcp.Description("Filter by status: pending, completed, or empty for all")),
		),
		s.handleListReminders,
	)

	// get_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("get_reminder",
			mcp.WithDescription("Get a single reminder by ID"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleGetReminder,
	)

	// update_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Update a reminder's fields; omitted fields keep their value and alarms are rescheduled"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("dates", mcp.Description(datesHelp+"; an empty string clears all dates")),
		),
		s.handleUpdateReminder,
	)

	// set_reminder_completed
	s.mcpServer.AddTool(
		mcp.NewTool("set_reminder_completed",
			mcp.WithDescription("Mark a reminder completed or pending again"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithBoolean("completed", mcp.Required(), mcp.Description("true to complete, false to reopen")),
		),
		s.handleSetCompleted,
	)

	// complete_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Press the 'mark complete' action of a reminder's notification"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCompleteReminder,
	)

	// delete_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDeleteReminder,
	)

	// open_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("open_reminder",
			mcp.WithDescription("Open a reminder the way tapping its notification does"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleOpenReminder,
	)

	// pending_alarms
	s.mcpServer.AddTool(
		mcp.NewTool("pending_alarms",
			mcp.WithDescription("List the alarms currently registered for a reminder"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handlePendingAlarms,
	)
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dates, err := ParseDates(req.GetString("dates", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid dates: %v", err)), nil
	}

	added, err := s.svc.Create(ctx, service.Draft{
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
		Dates:       dates,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add reminder: %v", err)), nil
	}

	return jsonResult(added)
}

func (s *Server) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	if status != "" && status != "pending" && status != "completed" {
		return mcp.NewToolResultError("status must be pending, completed, or empty"), nil
	}

	all, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reminders: %v", err)), nil
	}

	reminders := make([]reminder.Reminder, 0, len(all))
	for _, r := range all {
		if status == "pending" && r.Completed || status == "completed" && !r.Completed {
			continue
		}
		reminders = append(reminders, r)
	}

	if len(reminders) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}
	return jsonResult(reminders)
}

func (s *Server) handleGetReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	r, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get reminder: %v", err)), nil
	}
	if r == nil {
		return mcp.NewToolResultError(fmt.Sprintf("reminder %d not found", id)), nil
	}
	return jsonResult(r)
}

func (s *Server) handleUpdateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	current, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get reminder: %v", err)), nil
	}
	if current == nil {
		return mcp.NewToolResultError(fmt.Sprintf("reminder %d not found", id)), nil
	}

	draft := service.Draft{
		Title:       current.Title,
		Description: current.Description,
		Completed:   current.Completed,
	}
	for _, t := range current.Triggers {
		draft.Dates = append(draft.Dates, t.At)
	}

	args := req.GetArguments()
	if _, ok := args["title"]; ok {
		draft.Title = req.GetString("title", "")
	}
	if _, ok := args["description"]; ok {
		draft.Description = req.GetString("description", "")
	}
	if _, ok := args["dates"]; ok {
		dates, err := ParseDates(req.GetString("dates", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid dates: %v", err)), nil
		}
		draft.Dates = dates
	}

	updated, err := s.svc.Edit(ctx, id, draft)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update reminder: %v", err)), nil
	}
	return jsonResult(updated)
}

func (s *Server) handleSetCompleted(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	completed, err := req.RequireBool("completed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := s.svc.SetCompleted(ctx, id, completed)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update reminder: %v", err)), nil
	}
	return jsonResult(r)
}

func (s *Server) handleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.completer.Complete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete reminder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d marked as completed.", id)), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete reminder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d deleted.", id)), nil
}

func (s *Server) handleOpenReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	r, err := s.svc.Open(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrReminderNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("reminder %d not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to open reminder: %v", err)), nil
	}

	if err := s.svc.ShowDetail(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to show reminder: %v", err)), nil
	}
	return jsonResult(r)
}

func (s *Server) handlePendingAlarms(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	alarms := s.svc.Pending(id)
	if len(alarms) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No pending alarms for reminder %d.", id)), nil
	}
	return jsonResult(alarms)
}

// ParseDates parses a comma-separated list of RFC3339 instants or epoch
// milliseconds. An empty string yields no dates.
func ParseDates(value string) ([]time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var out []time.Time
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if ms, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, time.UnixMilli(ms).UTC())
			continue
		}

		t, err := time.Parse(time.RFC3339, part)
		if err != nil {
			return nil, fmt.Errorf("%q is neither RFC3339 nor epoch milliseconds", part)
		}
		out = append(out, t.UTC())
	}
	return out, nil
}

func requireID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	idFloat := req.GetFloat("id", -1)
	if idFloat <= 0 {
		return 0, mcp.NewToolResultError("id is required and must be a positive number")
	}
	return int64(idFloat), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(output)), nil
}
