package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pmSchedule/internal/logger"
	"pmSchedule/internal/models/schedule"
	rep "pmSchedule/internal/repository"

	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

type RepoType string

const (
	InMemoryType RepoType = "inmemory"
	PostgresType RepoType = "postgres"
	SQLiteType   RepoType = "sqlite"
)

const resourceTask = "Задача"

type ScheduleService struct {
	repo     ScheduleRepository
	RepoType RepoType
}

func NewScheduleService(repo ScheduleRepository, repoType RepoType) *ScheduleService {
	return &ScheduleService{
		repo:     repo,
		RepoType: repoType,
	}
}

func (s *ScheduleService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("хранилище %s недоступно: %w", s.RepoType, err)
	}
	return nil
}

func (s *ScheduleService) ListTasks(ctx context.Context) ([]*schedule.Task, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	if tasks == nil {
		tasks = []*schedule.Task{}
	}
	return tasks, nil
}

func (s *ScheduleService) GetTask(ctx context.Context, id int64) (*schedule.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.Int64("target_id", id))
			return nil, NewNotFound(resourceTask, id, err)
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return task, nil
}

func (s *ScheduleService) CreateTask(ctx context.Context, draft schedule.Task) (*schedule.Task, error) {
	task := &schedule.Task{}
	task.Apply(schedule.Replace(draft)...)
	task.Apply(trimmed()...)

	if err := validate(task); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, task); err != nil {
		logger.Error("Service: Не удалось создать задачу", err)
		return nil, fmt.Errorf("создание задачи: %w", err)
	}

	logger.Info("Service: Задача создана",
		zap.Int64("task_id", task.ID),
		zap.String("machine_type", task.MachineType))
	return task, nil
}

// UpdateTask находит задачу, применяет опции и сохраняет её целиком
func (s *ScheduleService) UpdateTask(ctx context.Context, id int64, options ...schedule.TaskOption) (*schedule.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	task.Apply(options...)
	task.Apply(trimmed()...)

	if err := validate(task); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, task); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewNotFound(resourceTask, id, err)
		}
		logger.Error("Service: Не удалось обновить задачу", err, zap.Int64("task_id", id))
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}

	logger.Info("Service: Задача обновлена", zap.Int64("task_id", id))
	return task, nil
}

func (s *ScheduleService) DeleteTask(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Задача для удаления не найдена", zap.Int64("target_id", id))
			return NewNotFound(resourceTask, id, err)
		}
		logger.Error("Service: Не удалось удалить задачу", err, zap.Int64("task_id", id))
		return fmt.Errorf("удаление задачи: %w", err)
	}

	logger.Info("Service: Задача удалена", zap.Int64("task_id", id))
	return nil
}

// Seed заполняет пустое хранилище начальными записями, непустое не трогает
func (s *ScheduleService) Seed(ctx context.Context, tasks []schedule.Task) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("подсчёт задач: %w", err)
	}
	if count > 0 {
		logger.Info("Service: Хранилище не пустое, начальные данные пропущены", zap.Int("count", count))
		return 0, nil
	}

	created := 0
	for _, draft := range tasks {
		draft.ID = 0
		if _, err := s.CreateTask(ctx, draft); err != nil {
			return created, fmt.Errorf("начальная запись %d: %w", created+1, err)
		}
		created++
	}

	logger.Info("Service: Начальные данные загружены", zap.Int("count", created))
	return created, nil
}

func trimmed() []schedule.TaskOption {
	return []schedule.TaskOption{
		func(t *schedule.Task) {
			t.MachineType = strings.TrimSpace(t.MachineType)
			t.Task = strings.TrimSpace(t.Task)
			t.Frequency = strings.TrimSpace(t.Frequency)
			t.Assignee = strings.TrimSpace(t.Assignee)
		},
	}
}

// validate - только обязательные поля, других проверок нет
func validate(task *schedule.Task) error {
	switch {
	case task.MachineType == "":
		return NewValidationError("machineType", "обязательное поле")
	case task.Task == "":
		return NewValidationError("task", "обязательное поле")
	case task.DueDate.IsZero():
		return NewValidationError("dueDate", "обязательное поле")
	}
	return nil
}
