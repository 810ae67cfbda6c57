// Package store хранит текущий снимок графика. Писатель один - дашборд,
// снимок заменяется целиком после каждого обращения к серверу.
package store

import (
	"sync"
	"time"

	"pmSchedule/internal/models/schedule"
)

type Snapshot struct {
	Tasks     []schedule.Task
	FetchedAt time.Time
	Version   uint64
}

// Loaded: был ли хотя бы один успешный запрос
func (s Snapshot) Loaded() bool {
	return s.Version > 0
}

type Store struct {
	mtx         sync.RWMutex
	snapshot    Snapshot
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

func New() *Store {
	return &Store{
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Replace отбрасывает прежний снимок и уведомляет подписчиков
func (s *Store) Replace(tasks []schedule.Task, fetchedAt time.Time) Snapshot {
	copied := make([]schedule.Task, len(tasks))
	copy(copied, tasks)

	s.mtx.Lock()
	s.snapshot = Snapshot{
		Tasks:     copied,
		FetchedAt: fetchedAt,
		Version:   s.snapshot.Version + 1,
	}
	current := s.snapshotLocked()
	subscribers := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mtx.Unlock()

	for _, fn := range subscribers {
		fn(current)
	}
	return current
}

func (s *Store) Snapshot() Snapshot {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Find(id int64) (schedule.Task, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, task := range s.snapshot.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return schedule.Task{}, false
}

// Subscribe возвращает функцию отписки
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	tasks := make([]schedule.Task, len(s.snapshot.Tasks))
	copy(tasks, s.snapshot.Tasks)
	return Snapshot{
		Tasks:     tasks,
		FetchedAt: s.snapshot.FetchedAt,
		Version:   s.snapshot.Version,
	}
}
