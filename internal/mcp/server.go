// Package mcp открывает график ТО для MCP-клиентов по stdio. Только чтение.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"pmSchedule/internal/dashboard"
	"pmSchedule/internal/dashboard/derive"
	"pmSchedule/internal/dashboard/view"
	"pmSchedule/internal/logger"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	serverName    = "pm-schedule"
	serverVersion = "0.1.0"
)

type taskRow struct {
	ID          int64  `json:"id"`
	MachineType string `json:"machineType"`
	Task        string `json:"task"`
	Frequency   string `json:"frequency"`
	DueDate     string `json:"dueDate"`
	DueDateThai string `json:"dueDateThai"`
	Status      string `json:"status"`
	StatusCode  string `json:"statusCode"`
	Assignee    string `json:"assignee"`
}

type kpiResult struct {
	DueThisWeek  int            `json:"dueThisWeek"`
	Overdue      int            `json:"overdue"`
	DueThisMonth int            `json:"dueThisMonth"`
	ByStatus     map[string]int `json:"byStatus"`
	Stale        bool           `json:"stale"`
}

// NewServer регистрирует инструменты list_tasks, get_kpis и get_task
func NewServer(dash *dashboard.Dashboard) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion)

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List preventive-maintenance tasks with their effective status. Optional case-insensitive substring filter over all fields."),
		mcp.WithString("query", mcp.Description("Search term (empty lists everything)")),
	), listTasksHandler(dash))

	s.AddTool(mcp.NewTool("get_kpis",
		mcp.WithDescription("Counts of overdue tasks, tasks due within 7 days and tasks due this month, plus totals by status."),
	), getKPIsHandler(dash))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single PM task by id."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
	), getTaskHandler(dash))

	return s
}

// Serve обслуживает MCP по переданным потокам до отмены ctx
func Serve(ctx context.Context, dash *dashboard.Dashboard, in io.Reader, out io.Writer) error {
	logger.Info("MCP: Сервер запущен на stdio")
	err := server.NewStdioServer(NewServer(dash)).Listen(ctx, in, out)
	if err != nil && ctx.Err() == nil {
		logger.Error("MCP: Сервер остановлен с ошибкой", err)
		return err
	}
	logger.Info("MCP: Сервер остановлен")
	return nil
}

func listTasksHandler(dash *dashboard.Dashboard) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := mcp.ParseString(request, "query", "")

		if _, err := dash.Refresh(ctx); err != nil {
			logger.Warn("MCP: Список не загружен", zap.Error(err))
			return mcp.NewToolResultError(view.FetchErrorMessage + ": " + err.Error()), nil
		}

		table := dash.Table(query)
		rows := make([]taskRow, 0, len(table.Rows))
		for _, row := range table.Rows {
			task, _ := dash.Store().Find(row.ID)
			rows = append(rows, taskRow{
				ID:          row.ID,
				MachineType: row.MachineType,
				Task:        row.Task,
				Frequency:   row.Frequency,
				DueDate:     task.DueDate.String(),
				DueDateThai: row.DueDate,
				Status:      string(row.Status),
				StatusCode:  row.StatusCode,
				Assignee:    row.Assignee,
			})
		}

		return jsonResult(map[string]any{"tasks": rows, "count": len(rows)})
	}
}

func getKPIsHandler(dash *dashboard.Dashboard) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snapshot, err := dash.Refresh(ctx)
		if err != nil && !snapshot.Loaded() {
			return mcp.NewToolResultError(view.FetchErrorMessage + ": " + err.Error()), nil
		}

		now := dash.Now()
		kpi := derive.KPICounts(snapshot.Tasks, now)
		counts := derive.ChartCounts(snapshot.Tasks, now)
		return jsonResult(kpiResult{
			DueThisWeek:  kpi.DueThisWeek,
			Overdue:      kpi.Overdue,
			DueThisMonth: kpi.DueThisMonth,
			ByStatus: map[string]int{
				"done":    counts.Done,
				"pending": counts.Pending,
				"overdue": counts.Overdue,
			},
			Stale: err != nil,
		})
	}
}

func getTaskHandler(dash *dashboard.Dashboard) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(mcp.ParseInt(request, "id", 0))
		if id <= 0 {
			return mcp.NewToolResultError("id must be a positive integer"), nil
		}

		if _, err := dash.Refresh(ctx); err != nil {
			return mcp.NewToolResultError(view.FetchErrorMessage + ": " + err.Error()), nil
		}

		task, ok := dash.Store().Find(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("task %d not found", id)), nil
		}

		status := derive.EffectiveStatus(task, dash.Now())
		return jsonResult(taskRow{
			ID:          task.ID,
			MachineType: task.MachineType,
			Task:        task.Task,
			Frequency:   task.Frequency,
			DueDate:     task.DueDate.String(),
			DueDateThai: view.ThaiDate(task.DueDate),
			Status:      string(status),
			StatusCode:  status.Code(),
			Assignee:    task.Assignee,
		})
	}
}

func jsonResult(value any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
