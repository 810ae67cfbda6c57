package service

import (
	"context"

	"pmSchedule/internal/models/schedule"
)

type ScheduleRepository interface {
	HealthCheck(context.Context) error
	List(context.Context) ([]*schedule.Task, error)
	GetByID(context.Context, int64) (*schedule.Task, error)
	Create(context.Context, *schedule.Task) error
	Update(context.Context, *schedule.Task) error
	Delete(context.Context, int64) error
	Count(context.Context) (int, error)
}
