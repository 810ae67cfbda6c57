package handlers

import (
	"context"

	"pmSchedule/internal/models/schedule"
)

type ScheduleService interface {
	HealthCheck(context.Context) error
	ListTasks(context.Context) ([]*schedule.Task, error)
	GetTask(context.Context, int64) (*schedule.Task, error)
	CreateTask(context.Context, schedule.Task) (*schedule.Task, error)
	UpdateTask(context.Context, int64, ...schedule.TaskOption) (*schedule.Task, error)
	DeleteTask(context.Context, int64) error
}
