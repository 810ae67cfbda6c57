package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"pmSchedule/internal/logger"
	"pmSchedule/internal/models/schedule"
	repo "pmSchedule/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const tableName = "pm_tasks"

var columns = []string{"id", "machine_type", "task", "frequency", "due_date", "status", "assignee"}

type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool    *pgxpool.Pool
	connStr string
	psql    sq.StatementBuilderType
}

func New(ctx context.Context, connString string, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{
		pool:    pool,
		connStr: connString,
		psql:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

// Migrate накатывает встроенные миграции, повторный вызов ничего не делает
func (s *Storage) Migrate(ctx context.Context) error {
	logger.Info("Repository: Применение миграций")

	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка применения миграций", err)
		return fmt.Errorf("применение миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Repository: Миграции применены", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (s *Storage) Down(ctx context.Context) error {
	logger.Info("Repository: Откат миграций")

	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка отката миграций", err)
		return fmt.Errorf("откат миграций: %w", err)
	}
	return nil
}

func (s *Storage) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("источник миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.connStr))
	if err != nil {
		logger.Error("Repository: Ошибка инициализации migrate", err)
		return nil, fmt.Errorf("инициализация migrate: %w", err)
	}
	return m, nil
}

// migrateURL переводит строку подключения на схему драйвера pgx/v5 для migrate
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

func (s *Storage) Create(ctx context.Context, taskToCreate *schedule.Task) error {
	start := time.Now()

	query, args, err := s.psql.Insert(tableName).
		Columns("machine_type", "task", "frequency", "due_date", "status", "assignee").
		Values(
			taskToCreate.MachineType,
			taskToCreate.Task,
			taskToCreate.Frequency,
			toPgDate(taskToCreate.DueDate),
			string(taskToCreate.Status.Normalize()),
			taskToCreate.Assignee,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}

	if err := s.pool.QueryRow(ctx, query, args...).Scan(&taskToCreate.ID); err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	slowQuery(start, time.Millisecond*50)
	return nil
}

func (s *Storage) Update(ctx context.Context, taskToUpdate *schedule.Task) error {
	start := time.Now()

	query, args, err := s.psql.Update(tableName).
		Set("machine_type", taskToUpdate.MachineType).
		Set("task", taskToUpdate.Task).
		Set("frequency", taskToUpdate.Frequency).
		Set("due_date", toPgDate(taskToUpdate.DueDate)).
		Set("status", string(taskToUpdate.Status.Normalize())).
		Set("assignee", taskToUpdate.Assignee).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskToUpdate.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	slowQuery(start, time.Millisecond*100)
	return nil
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	start := time.Now()

	query, args, err := s.psql.Delete(tableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось удалить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	slowQuery(start, time.Millisecond*100)
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id int64) (*schedule.Task, error) {
	query, args, err := s.psql.Select(columns...).From(tableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}

	task, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Int64("task_id", id))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return task, nil
}

func (s *Storage) List(ctx context.Context) ([]*schedule.Task, error) {
	start := time.Now()

	query, args, err := s.psql.Select(columns...).From(tableName).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить список задач", err)
		return nil, fmt.Errorf("список задач: %w", err)
	}
	defer rows.Close()

	tasks := make([]*schedule.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования задачи", err)
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	slowQuery(start, time.Millisecond*50+time.Millisecond*time.Duration(len(tasks)))
	return tasks, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	query, args, err := s.psql.Select("COUNT(*)").From(tableName).ToSql()
	if err != nil {
		return 0, fmt.Errorf("сборка запроса: %w", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("подсчёт задач: %w", err)
	}
	return count, nil
}

func scanTask(row pgx.Row) (*schedule.Task, error) {
	var (
		task   schedule.Task
		due    pgtype.Date
		status string
	)
	err := row.Scan(&task.ID, &task.MachineType, &task.Task, &task.Frequency, &due, &status, &task.Assignee)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		task.DueDate = schedule.DateOf(due.Time)
	}
	task.Status = schedule.Status(status)
	return &task, nil
}

// пустая дата хранится как NULL
func toPgDate(d schedule.Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func slowQuery(start time.Time, limit time.Duration) {
	if time.Since(start) > limit {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
}
