// Package dashboard связывает клиент API, хранилище снимка и построение представлений.
// Каждое изменение заканчивается полной перезагрузкой списка с сервера.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pmSchedule/internal/dashboard/form"
	"pmSchedule/internal/dashboard/store"
	"pmSchedule/internal/dashboard/view"
	"pmSchedule/internal/logger"
	"pmSchedule/internal/models/schedule"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrNotFound = errors.New("запись не найдена в текущем снимке")

// ScheduleClient - то, что дашборд использует от клиента /api/schedule
type ScheduleClient interface {
	FetchAll(ctx context.Context) ([]schedule.Task, error)
	Save(ctx context.Context, task schedule.Task) error
	Remove(ctx context.Context, id int64) error
}

// Page - всё, что нужно для отрисовки страницы
type Page struct {
	Table   view.Table
	Summary view.Summary
	Dialog  form.Dialog
	// ConfirmDelete - запись, удаление которой ждёт подтверждения
	ConfirmDelete *schedule.Task
	Now           time.Time
}

type Dashboard struct {
	client ScheduleClient
	store  *store.Store
	clock  func() time.Time
	group  singleflight.Group

	// seq нумерует начатые загрузки, applied - номер последней записанной в хранилище
	mu      sync.Mutex
	seq     uint64
	applied uint64
}

func New(client ScheduleClient, st *store.Store, clock func() time.Time) *Dashboard {
	if clock == nil {
		clock = time.Now
	}
	return &Dashboard{client: client, store: st, clock: clock}
}

func (d *Dashboard) Store() *store.Store {
	return d.store
}

func (d *Dashboard) Now() time.Time {
	return d.clock()
}

// Refresh загружает список и целиком заменяет снимок. При ошибке снимок не меняется.
// Одновременные вызовы объединяются в один запрос.
func (d *Dashboard) Refresh(ctx context.Context) (store.Snapshot, error) {
	result, err, shared := d.group.Do("refresh", func() (any, error) {
		return d.fetch(ctx)
	})
	if err != nil {
		logger.Warn("Dashboard: Снимок не обновлён", zap.Error(err))
		return d.store.Snapshot(), err
	}
	if shared {
		logger.Debug("Dashboard: Результат загрузки разделён между запросами")
	}
	return result.(store.Snapshot), nil
}

// reload - загрузка после изменения. Не присоединяется к уже идущей загрузке,
// её результат мог быть получен до изменения.
func (d *Dashboard) reload(ctx context.Context) (store.Snapshot, error) {
	snapshot, err := d.fetch(ctx)
	if err != nil {
		logger.Warn("Dashboard: Снимок не обновлён", zap.Error(err))
		return d.store.Snapshot(), err
	}
	return snapshot, nil
}

// fetch записывает результат, только если за это время не записан более поздний
func (d *Dashboard) fetch(ctx context.Context) (store.Snapshot, error) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	tasks, err := d.client.FetchAll(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq < d.applied {
		logger.Debug("Dashboard: Устаревший результат загрузки отброшен", zap.Uint64("seq", seq))
		return d.store.Snapshot(), nil
	}
	d.applied = seq
	return d.store.Replace(tasks, d.clock()), nil
}

// Render строит страницу из текущего снимка. fetchErr заменяет таблицу строкой ошибки,
// а KPI и диаграмма остаются от прошлого снимка.
func (d *Dashboard) Render(query string, fetchErr error) Page {
	now := d.clock()
	snapshot := d.store.Snapshot()

	page := Page{
		Summary: view.BuildSummary(snapshot.Tasks, now),
		Dialog:  form.Closed(),
		Now:     now,
	}

	if fetchErr != nil {
		page.Table = view.ErrorTable(query)
		page.Summary.Stale = true
		return page
	}
	page.Table = view.BuildTable(snapshot.Tasks, query, now)
	return page
}

// Table - перефильтрация текущего снимка без обращения к серверу
func (d *Dashboard) Table(query string) view.Table {
	return view.BuildTable(d.store.Snapshot().Tasks, query, d.clock())
}

func (d *Dashboard) OpenCreate() form.Dialog {
	return form.OpenCreate()
}

func (d *Dashboard) OpenEdit(id int64) (form.Dialog, error) {
	task, ok := d.store.Find(id)
	if !ok {
		return form.Closed(), fmt.Errorf("редактирование %d: %w", id, ErrNotFound)
	}
	return form.OpenEdit(task), nil
}

// Save проверяет форму и сохраняет запись. Возвращает окно: закрытое при успехе,
// открытое с сообщением при ошибке проверки или сохранения.
func (d *Dashboard) Save(ctx context.Context, values form.Values) (form.Dialog, error) {
	task, err := form.Submit(values)
	if err != nil {
		var validationErr *form.ValidationError
		if errors.As(err, &validationErr) {
			logger.Info("Dashboard: Форма не прошла проверку", zap.Strings("fields", validationErr.Fields))
			return form.Reopen(values).WithAlert(validationErr.Message), err
		}
		return form.Reopen(values).WithAlert(err.Error()), err
	}

	if err := d.client.Save(ctx, task); err != nil {
		logger.Error("Dashboard: Не удалось сохранить запись", err, zap.Int64("task_id", task.ID))
		return form.Reopen(values).WithAlert(SaveFailedMessage(err)), err
	}

	if _, err := d.reload(ctx); err != nil {
		logger.Warn("Dashboard: Запись сохранена, но список не обновлён", zap.Error(err))
	}
	return form.Closed(), nil
}

// ConfirmDelete находит запись для окна подтверждения
func (d *Dashboard) ConfirmDelete(id int64) (schedule.Task, error) {
	task, ok := d.store.Find(id)
	if !ok {
		return schedule.Task{}, fmt.Errorf("удаление %d: %w", id, ErrNotFound)
	}
	return task, nil
}

// Delete без подтверждения ничего не делает и запрос не отправляет
func (d *Dashboard) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		logger.Info("Dashboard: Удаление отменено пользователем", zap.Int64("task_id", id))
		return nil
	}

	if err := d.client.Remove(ctx, id); err != nil {
		logger.Error("Dashboard: Не удалось удалить запись", err, zap.Int64("task_id", id))
		return err
	}

	if _, err := d.reload(ctx); err != nil {
		logger.Warn("Dashboard: Запись удалена, но список не обновлён", zap.Error(err))
	}
	return nil
}
