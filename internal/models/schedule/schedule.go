package schedule

import (
	"strconv"
	"strings"
)

// Task - запись графика планового обслуживания (PM) в том виде, в каком её отдаёт /api/schedule
type Task struct {
	ID          int64  `json:"id,omitempty" yaml:"id,omitempty" db:"id"`
	MachineType string `json:"machineType" yaml:"machineType" db:"machine_type"`
	Task        string `json:"task" yaml:"task" db:"task"`
	Frequency   string `json:"frequency" yaml:"frequency" db:"frequency"`
	DueDate     Date   `json:"dueDate" yaml:"dueDate" db:"due_date"`
	Status      Status `json:"status,omitempty" yaml:"status,omitempty" db:"status"`
	Assignee    string `json:"assignee" yaml:"assignee" db:"assignee"`
}

// HasID: у несохранённой записи id ещё нет
func (t Task) HasID() bool {
	return t.ID > 0
}

// Fields возвращает строковые значения всех полей записи, как они приходят с сервера
func (t Task) Fields() []string {
	fields := make([]string, 0, 7)
	if t.HasID() {
		fields = append(fields, strconv.FormatInt(t.ID, 10))
	}
	fields = append(fields, t.MachineType, t.Task, t.Frequency)
	if !t.DueDate.IsZero() {
		fields = append(fields, t.DueDate.String())
	}
	if t.Status != "" {
		fields = append(fields, string(t.Status))
	}
	return append(fields, t.Assignee)
}

type Status string

// Хранится только "เสร็จสิ้น", отсутствие статуса означает "รอดำเนินการ".
// "เกินกำหนด" только вычисляется и никогда не сохраняется.
const (
	StatusDone    Status = "เสร็จสิ้น"
	StatusPending Status = "รอดำเนินการ"
	StatusOverdue Status = "เกินกำหนด"
)

func (s Status) IsDone() bool {
	return s == StatusDone || strings.EqualFold(strings.TrimSpace(string(s)), "done")
}

// Code - латинский код статуса для метрик и css
func (s Status) Code() string {
	switch {
	case s.IsDone():
		return "done"
	case s == StatusOverdue:
		return "overdue"
	default:
		return "pending"
	}
}

// Normalize приводит сохраняемый статус к одному из двух допустимых значений
func (s Status) Normalize() Status {
	if s.IsDone() {
		return StatusDone
	}
	return StatusPending
}
