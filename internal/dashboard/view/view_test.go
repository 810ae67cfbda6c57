package view_test

import (
	"encoding/json"
	"testing"
	"time"

	"pmSchedule/internal/dashboard/derive"
	"pmSchedule/internal/dashboard/view"
	"pmSchedule/internal/models/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.FixedZone("ICT", 7*60*60))

func sample() []schedule.Task {
	return []schedule.Task{
		{ID: 1, MachineType: "Air Compressor", Task: "Change filter", Frequency: "Monthly", DueDate: schedule.NewDate(2024, time.May, 14), Status: schedule.StatusPending, Assignee: "Somchai"},
		{ID: 2, MachineType: "Boiler", Task: "Inspect valves", Frequency: "Weekly", DueDate: schedule.NewDate(2024, time.May, 18), Assignee: "Anan"},
		{ID: 3, MachineType: "CNC Lathe", Task: "Lubricate", Frequency: "Daily", DueDate: schedule.NewDate(2024, time.May, 1), Status: schedule.StatusDone, Assignee: "Malee"},
	}
}

func TestBuildTable_AllRows(t *testing.T) {
	table := view.BuildTable(sample(), "", now)

	require.Len(t, table.Rows, 3)
	assert.Nil(t, table.Notice)

	overdue := table.Rows[0]
	assert.Equal(t, int64(1), overdue.ID)
	assert.Equal(t, schedule.StatusOverdue, overdue.Status)
	assert.Equal(t, derive.BadgeDanger, overdue.BadgeClass)
	assert.Equal(t, derive.RowDanger, overdue.RowClass)
	assert.Equal(t, "14/5/2567", overdue.DueDate)

	assert.Equal(t, derive.BadgeInfo, table.Rows[1].BadgeClass)
	assert.Empty(t, table.Rows[1].RowClass)
	assert.Equal(t, derive.BadgeSuccess, table.Rows[2].BadgeClass)
}

func TestBuildTable_Filter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		ids   []int64
	}{
		{name: "case insensitive machine type", query: "boiler", ids: []int64{2}},
		{name: "matches task name", query: "LUBRI", ids: []int64{3}},
		{name: "matches raw due date", query: "2024-05-1", ids: []int64{1, 2}},
		{name: "matches stored status", query: "เสร็จ", ids: []int64{3}},
		{name: "matches id", query: "3", ids: []int64{3}},
		{name: "trailing space is part of the term", query: "Air ", ids: []int64{1}},
		{name: "leading space is part of the term", query: " anan", ids: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := view.BuildTable(sample(), tt.query, now)
			var ids []int64
			for _, row := range table.Rows {
				ids = append(ids, row.ID)
			}
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, tt.query, table.Query)
		})
	}
}

func TestBuildTable_NoMatchRendersPlaceholder(t *testing.T) {
	for _, query := range []string{"zzz", "Chiller", "ไม่มี"} {
		table := view.BuildTable(sample(), query, now)
		assert.True(t, table.Empty())
		require.NotNil(t, table.Notice)
		assert.Equal(t, view.NoDataMessage, table.Notice.Message)
		assert.Equal(t, 8, table.Notice.Colspan, "id, шесть полей и действия")
	}

	empty := view.BuildTable(nil, "", now)
	require.NotNil(t, empty.Notice)
	assert.Equal(t, view.NoDataMessage, empty.Notice.Message)
}

func TestErrorTable(t *testing.T) {
	table := view.ErrorTable("pump")
	require.NotNil(t, table.Notice)
	assert.Equal(t, view.FetchErrorMessage, table.Notice.Message)
	assert.Contains(t, table.Notice.Class, "text-danger")
	assert.Equal(t, view.TableColumns, table.Notice.Colspan)
	assert.Empty(t, table.Rows)
}

func TestThaiDate(t *testing.T) {
	assert.Equal(t, "1/1/2567", view.ThaiDate(schedule.NewDate(2024, time.January, 1)))
	assert.Equal(t, "31/12/2566", view.ThaiDate(schedule.NewDate(2023, time.December, 31)))
	assert.Empty(t, view.ThaiDate(schedule.Date{}))
}

func TestBuildSummary(t *testing.T) {
	summary := view.BuildSummary(sample(), now)

	assert.Equal(t, derive.KPI{DueThisWeek: 1, Overdue: 1, DueThisMonth: 1}, summary.KPI)
	assert.Equal(t, []int{1, 1, 1}, summary.Chart.Data)
	assert.Equal(t, []string{"เสร็จสิ้น", "รอดำเนินการ", "เกินกำหนด"}, summary.Chart.Labels)
	assert.Equal(t, []string{"#28a745", "#17a2b8", "#dc3545"}, summary.Chart.Colors)
	assert.False(t, summary.Stale)
}

func TestChart_JSON(t *testing.T) {
	raw, err := view.BuildChart(derive.StatusCounts{Done: 4, Pending: 2, Overdue: 1}).JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, []any{4.0, 2.0, 1.0}, decoded["data"])
	assert.Len(t, decoded["backgroundColor"], 3)
}
