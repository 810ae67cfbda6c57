// Package sqlite - хранилище графика в одном файле SQLite (драйвер modernc, без cgo).
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pmSchedule/internal/logger"
	"pmSchedule/internal/models/schedule"
	repo "pmSchedule/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const (
	tableName = "pm_tasks"
	Memory    = ":memory:"
)

var columns = []string{"id", "machine_type", "task", "frequency", "due_date", "status", "assignee"}

type Storage struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу по пути и применяет схему
func Open(ctx context.Context, path string) (*Storage, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("создание каталога базы: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("Repository: Ошибка открытия SQLite", err)
		return nil, fmt.Errorf("открытие базы: %w", err)
	}
	// у каждого соединения :memory: своя база, и SQLite всё равно пишет в один поток
	db.SetMaxOpenConns(1)

	if path != Memory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("включение WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		logger.Error("Repository: Ошибка применения схемы SQLite", err)
		return nil, fmt.Errorf("применение схемы: %w", err)
	}

	logger.Info("Repository: База SQLite открыта", zap.String("path", path))
	return &Storage{db: db}, nil
}

func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		logger.Warn("Repository: Ошибка закрытия SQLite", zap.Error(err))
		return
	}
	logger.Info("Repository: База SQLite закрыта")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *schedule.Task) error {
	query, args, err := sq.Insert(tableName).
		Columns("machine_type", "task", "frequency", "due_date", "status", "assignee").
		Values(
			taskToCreate.MachineType,
			taskToCreate.Task,
			taskToCreate.Frequency,
			toSQLDate(taskToCreate.DueDate),
			string(taskToCreate.Status.Normalize()),
			taskToCreate.Assignee,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err)
		return fmt.Errorf("добавление задачи: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("получение id: %w", err)
	}
	taskToCreate.ID = id
	return nil
}

func (s *Storage) Update(ctx context.Context, taskToUpdate *schedule.Task) error {
	query, args, err := sq.Update(tableName).
		Set("machine_type", taskToUpdate.MachineType).
		Set("task", taskToUpdate.Task).
		Set("frequency", taskToUpdate.Frequency).
		Set("due_date", toSQLDate(taskToUpdate.DueDate)).
		Set("status", string(taskToUpdate.Status.Normalize())).
		Set("assignee", taskToUpdate.Assignee).
		Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
		Where(sq.Eq{"id": taskToUpdate.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}
	return requireAffected(res)
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	query, args, err := sq.Delete(tableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось удалить задачу", err)
		return fmt.Errorf("удаление задачи: %w", err)
	}
	return requireAffected(res)
}

func (s *Storage) GetByID(ctx context.Context, id int64) (*schedule.Task, error) {
	query, args, err := sq.Select(columns...).From(tableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return task, nil
}

func (s *Storage) List(ctx context.Context) ([]*schedule.Task, error) {
	query, args, err := sq.Select(columns...).From(tableName).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить список задач", err)
		return nil, fmt.Errorf("список задач: %w", err)
	}
	defer rows.Close()

	tasks := make([]*schedule.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var count int
	query, args, err := sq.Select("COUNT(*)").From(tableName).ToSql()
	if err != nil {
		return 0, fmt.Errorf("сборка запроса: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("подсчёт задач: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*schedule.Task, error) {
	var (
		task   schedule.Task
		due    sql.NullString
		status string
	)
	if err := row.Scan(&task.ID, &task.MachineType, &task.Task, &task.Frequency, &due, &status, &task.Assignee); err != nil {
		return nil, err
	}
	if due.Valid {
		date, err := schedule.ParseDate(due.String)
		if err != nil {
			logger.Warn("Repository: Некорректная дата в базе", zap.Int64("task_id", task.ID), zap.String("due_date", due.String))
		}
		task.DueDate = date
	}
	task.Status = schedule.Status(status)
	return &task, nil
}

func toSQLDate(d schedule.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("число изменённых строк: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}
