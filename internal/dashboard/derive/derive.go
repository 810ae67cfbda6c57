// Package derive считает производные значения графика: фактический статус задачи,
// KPI и данные диаграммы. Текущий момент всегда передаётся параметром.
package derive

import (
	"time"

	"pmSchedule/internal/models/schedule"
)

const (
	BadgeSuccess = "badge-success"
	BadgeInfo    = "badge-info"
	BadgeDanger  = "badge-danger"

	RowDanger = "table-danger"
)

// KPI - три счётчика карточек над таблицей
type KPI struct {
	DueThisWeek  int `json:"dueThisWeek"`
	Overdue      int `json:"overdue"`
	DueThisMonth int `json:"dueThisMonth"`
}

// StatusCounts - данные диаграммы по трём категориям
type StatusCounts struct {
	Done    int `json:"done"`
	Pending int `json:"pending"`
	Overdue int `json:"overdue"`
}

func (c StatusCounts) Total() int {
	return c.Done + c.Pending + c.Overdue
}

// Today - календарная дата now в зоне now
func Today(now time.Time) schedule.Date {
	return schedule.DateOf(now)
}

// EffectiveStatus: выполнено, если сохранён статус выполнения; иначе просрочено,
// если срок строго раньше сегодняшней даты; иначе ожидает. Срок сегодня не просрочен.
func EffectiveStatus(task schedule.Task, now time.Time) schedule.Status {
	if task.Status.IsDone() {
		return schedule.StatusDone
	}
	if !task.DueDate.IsZero() && task.DueDate.Before(Today(now)) {
		return schedule.StatusOverdue
	}
	return schedule.StatusPending
}

func BadgeClass(status schedule.Status) string {
	switch status {
	case schedule.StatusDone:
		return BadgeSuccess
	case schedule.StatusOverdue:
		return BadgeDanger
	default:
		return BadgeInfo
	}
}

func RowClass(status schedule.Status) string {
	if status == schedule.StatusOverdue {
		return RowDanger
	}
	return ""
}

// KPICounts: окна "неделя" и "месяц" независимы и пересекаются
func KPICounts(tasks []schedule.Task, now time.Time) KPI {
	var kpi KPI
	today := Today(now)
	weekEnd := today.AddDays(7)
	monthEnd := today.EndOfMonth()

	for _, task := range tasks {
		switch EffectiveStatus(task, now) {
		case schedule.StatusOverdue:
			kpi.Overdue++
		case schedule.StatusPending:
			if task.DueDate.IsZero() {
				continue
			}
			if !task.DueDate.After(weekEnd) {
				kpi.DueThisWeek++
			}
			if !task.DueDate.After(monthEnd) {
				kpi.DueThisMonth++
			}
		}
	}
	return kpi
}

func ChartCounts(tasks []schedule.Task, now time.Time) StatusCounts {
	var counts StatusCounts
	for _, task := range tasks {
		switch EffectiveStatus(task, now) {
		case schedule.StatusDone:
			counts.Done++
		case schedule.StatusOverdue:
			counts.Overdue++
		default:
			counts.Pending++
		}
	}
	return counts
}
