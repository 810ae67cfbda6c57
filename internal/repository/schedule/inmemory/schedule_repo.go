package inmemory

import (
	"context"
	"sync"

	"pmSchedule/internal/logger"
	"pmSchedule/internal/models/schedule"
	repo "pmSchedule/internal/repository"
)

type ScheduleStorage struct {
	storage map[int64]*schedule.Task
	mtx     *sync.RWMutex
	ids     []int64
	nextID  int64
}

func NewScheduleStorage() *ScheduleStorage {
	return &ScheduleStorage{
		storage: make(map[int64]*schedule.Task),
		mtx:     &sync.RWMutex{},
		ids:     []int64{},
		nextID:  1,
	}
}

func (s *ScheduleStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Хранилище в памяти доступно")
	return nil
}

// Create присваивает следующий id
func (s *ScheduleStorage) Create(ctx context.Context, taskToCreate *schedule.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToCreate.ID = s.nextID
	s.nextID++

	stored := *taskToCreate
	s.storage[stored.ID] = &stored
	s.ids = append(s.ids, stored.ID)
	return nil
}

func (s *ScheduleStorage) Update(ctx context.Context, taskToUpdate *schedule.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[taskToUpdate.ID]; !ok {
		return repo.ErrNotFound
	}

	stored := *taskToUpdate
	s.storage[stored.ID] = &stored
	return nil
}

func (s *ScheduleStorage) GetByID(ctx context.Context, id int64) (*schedule.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *taskToGet
	return &copied, nil
}

func (s *ScheduleStorage) Delete(ctx context.Context, id int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

// List отдаёт записи в порядке возрастания id
func (s *ScheduleStorage) List(ctx context.Context) ([]*schedule.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*schedule.Task, 0, len(s.ids))
	for _, id := range s.ids {
		copied := *s.storage[id]
		res = append(res, &copied)
	}
	return res, nil
}

func (s *ScheduleStorage) Count(ctx context.Context) (int, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.ids), nil
}
