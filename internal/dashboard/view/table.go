// Package view строит модели представления таблицы, KPI и диаграммы из снимка графика.
package view

import (
	"strconv"
	"strings"
	"time"

	"pmSchedule/internal/dashboard/derive"
	"pmSchedule/internal/models/schedule"

	"golang.org/x/text/cases"
)

const (
	// число колонок таблицы, на всю ширину растягиваются служебные строки
	TableColumns = 8

	NoDataMessage     = "ไม่พบข้อมูล"
	FetchErrorMessage = "ไม่สามารถเชื่อมต่อกับเซิร์ฟเวอร์ได้"
)

type Row struct {
	ID          int64
	MachineType string
	Task        string
	Frequency   string
	DueDate     string
	Status      schedule.Status
	StatusCode  string
	BadgeClass  string
	Assignee    string
	RowClass    string
}

// Notice - единственная строка вместо данных (нет совпадений или ошибка загрузки)
type Notice struct {
	Message string
	Class   string
	Colspan int
}

type Table struct {
	Rows   []Row
	Notice *Notice
	Query  string
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// BuildTable фильтрует записи по подстроке без учёта регистра по всем полям.
// Пробелы в запросе входят в подстроку.
func BuildTable(tasks []schedule.Task, query string, now time.Time) Table {
	table := Table{Query: query}
	needle := fold(query)

	for _, task := range tasks {
		if needle != "" && !matches(task, needle) {
			continue
		}
		table.Rows = append(table.Rows, buildRow(task, now))
	}

	if len(table.Rows) == 0 {
		table.Notice = &Notice{Message: NoDataMessage, Class: "text-center", Colspan: TableColumns}
	}
	return table
}

// ErrorTable - таблица после неудачной загрузки
func ErrorTable(query string) Table {
	return Table{
		Query:  query,
		Notice: &Notice{Message: FetchErrorMessage, Class: "text-center text-danger", Colspan: TableColumns},
	}
}

func buildRow(task schedule.Task, now time.Time) Row {
	status := derive.EffectiveStatus(task, now)
	return Row{
		ID:          task.ID,
		MachineType: task.MachineType,
		Task:        task.Task,
		Frequency:   task.Frequency,
		DueDate:     ThaiDate(task.DueDate),
		Status:      status,
		StatusCode:  status.Code(),
		BadgeClass:  derive.BadgeClass(status),
		Assignee:    task.Assignee,
		RowClass:    derive.RowClass(status),
	}
}

func matches(task schedule.Task, needle string) bool {
	for _, field := range task.Fields() {
		if strings.Contains(fold(field), needle) {
			return true
		}
	}
	return false
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// ThaiDate - дата в формате th-TH: d/m/yyyy буддийской эры
func ThaiDate(d schedule.Date) string {
	if d.IsZero() {
		return ""
	}
	return strconv.Itoa(d.Day) + "/" + strconv.Itoa(int(d.Month)) + "/" + strconv.Itoa(d.Year+543)
}
