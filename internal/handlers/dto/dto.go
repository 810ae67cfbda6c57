package dto

import (
	"pmSchedule/internal/models/schedule"
)

// TaskRequest - тело POST и PUT /api/schedule, id в теле игнорируется
type TaskRequest struct {
	MachineType string `json:"machineType"`
	Task        string `json:"task"`
	Frequency   string `json:"frequency"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status,omitempty"`
	Assignee    string `json:"assignee"`
}

type TaskResponse struct {
	ID          int64  `json:"id"`
	MachineType string `json:"machineType"`
	Task        string `json:"task"`
	Frequency   string `json:"frequency"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status"`
	Assignee    string `json:"assignee"`
}

// ToTask разбирает дату, ошибка возвращается только для неверного формата
func (r TaskRequest) ToTask() (schedule.Task, error) {
	dueDate, err := schedule.ParseDate(r.DueDate)
	if err != nil {
		return schedule.Task{}, err
	}
	return schedule.Task{
		MachineType: r.MachineType,
		Task:        r.Task,
		Frequency:   r.Frequency,
		DueDate:     dueDate,
		Status:      schedule.Status(r.Status),
		Assignee:    r.Assignee,
	}, nil
}

func FromTask(t *schedule.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		MachineType: t.MachineType,
		Task:        t.Task,
		Frequency:   t.Frequency,
		DueDate:     t.DueDate.String(),
		Status:      string(t.Status),
		Assignee:    t.Assignee,
	}
}

func FromTaskList(tasks []*schedule.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}
