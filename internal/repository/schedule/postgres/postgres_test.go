package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pmSchedule/internal/models/schedule"
	"pmSchedule/internal/repository"
	"pmSchedule/internal/repository/schedule/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite для интеграционных тестов с PostgreSQL
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	ctx        context.Context
	connString string
}

// SetupSuite запускается один раз перед всеми тестами
func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.Options{MaxConns: 4})
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.storage.Migrate(s.ctx))
	// повторный запуск миграций не должен падать
	require.NoError(s.T(), s.storage.Migrate(s.ctx))
}

// TearDownSuite очищает после всех тестов
func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

// SetupTest очищает таблицу и сбрасывает последовательность id
func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, "TRUNCATE pm_tasks RESTART IDENTITY")
	require.NoError(s.T(), err)
}

// TestPostgresTestSuite запускает suite
func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционные тесты в коротком режиме")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func pumpTask() *schedule.Task {
	return &schedule.Task{
		MachineType: "Pump",
		Task:        "Replace seal",
		Frequency:   "Quarterly",
		DueDate:     schedule.NewDate(2024, time.May, 1),
		Status:      schedule.StatusPending,
		Assignee:    "Anan",
	}
}

// TestStorage_Create тестирует создание задачи
func (s *PostgresTestSuite) TestStorage_Create() {
	taskToCreate := pumpTask()

	err := s.storage.Create(s.ctx, taskToCreate)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), taskToCreate.ID)

	retrieved, err := s.storage.GetByID(s.ctx, taskToCreate.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), *taskToCreate, *retrieved)
}

// TestStorage_Create_ZeroDate тестирует хранение пустой даты как NULL
func (s *PostgresTestSuite) TestStorage_Create_ZeroDate() {
	taskToCreate := pumpTask()
	taskToCreate.DueDate = schedule.Date{}
	taskToCreate.Status = ""

	require.NoError(s.T(), s.storage.Create(s.ctx, taskToCreate))

	retrieved, err := s.storage.GetByID(s.ctx, taskToCreate.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), retrieved.DueDate.IsZero())
	assert.Equal(s.T(), schedule.StatusPending, retrieved.Status)
}

// TestStorage_GetByID тестирует получение несуществующей задачи
func (s *PostgresTestSuite) TestStorage_GetByID() {
	_, err := s.storage.GetByID(s.ctx, 999)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

// TestStorage_Update тестирует обновление задачи
func (s *PostgresTestSuite) TestStorage_Update() {
	taskToCreate := pumpTask()
	require.NoError(s.T(), s.storage.Create(s.ctx, taskToCreate))

	taskToCreate.Status = schedule.StatusDone
	taskToCreate.DueDate = schedule.NewDate(2024, time.December, 31)
	require.NoError(s.T(), s.storage.Update(s.ctx, taskToCreate))

	retrieved, err := s.storage.GetByID(s.ctx, taskToCreate.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), schedule.StatusDone, retrieved.Status)
	assert.Equal(s.T(), "2024-12-31", retrieved.DueDate.String())

	missing := pumpTask()
	missing.ID = 404
	assert.ErrorIs(s.T(), s.storage.Update(s.ctx, missing), repository.ErrNotFound)
}

// TestStorage_Delete тестирует удаление
func (s *PostgresTestSuite) TestStorage_Delete() {
	taskToCreate := pumpTask()
	require.NoError(s.T(), s.storage.Create(s.ctx, taskToCreate))

	require.NoError(s.T(), s.storage.Delete(s.ctx, taskToCreate.ID))
	assert.ErrorIs(s.T(), s.storage.Delete(s.ctx, taskToCreate.ID), repository.ErrNotFound)

	_, err := s.storage.GetByID(s.ctx, taskToCreate.ID)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

// TestStorage_List тестирует порядок по возрастанию id
func (s *PostgresTestSuite) TestStorage_List() {
	tasks, err := s.storage.List(s.ctx)
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), tasks)
	assert.Empty(s.T(), tasks)

	for i := 1; i <= 5; i++ {
		taskToCreate := pumpTask()
		taskToCreate.MachineType = fmt.Sprintf("Machine %d", i)
		require.NoError(s.T(), s.storage.Create(s.ctx, taskToCreate))
	}

	tasks, err = s.storage.List(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), tasks, 5)
	for i, task := range tasks {
		assert.Equal(s.T(), int64(i+1), task.ID)
		assert.Equal(s.T(), fmt.Sprintf("Machine %d", i+1), task.MachineType)
	}

	count, err := s.storage.Count(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 5, count)
}

// TestStorage_HealthCheck тестирует ping
func (s *PostgresTestSuite) TestStorage_HealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}
