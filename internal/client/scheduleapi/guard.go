package scheduleapi

import (
	"strconv"
	"strings"
	"sync"

	"pmSchedule/internal/models/schedule"
)

// Guard не даёт запустить второе изменение той же записи, пока первое не завершилось
type Guard struct {
	mtx      sync.Mutex
	inFlight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// Acquire возвращает функцию освобождения или ErrBusy
func (g *Guard) Acquire(key string) (func(), error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, ErrBusy
	}
	g.inFlight[key] = struct{}{}

	return func() {
		g.mtx.Lock()
		defer g.mtx.Unlock()
		delete(g.inFlight, key)
	}, nil
}

func RecordKey(id int64) string {
	return "id:" + strconv.FormatInt(id, 10)
}

// DraftKey - ключ ещё не сохранённой записи строится из её обязательных полей
func DraftKey(t schedule.Task) string {
	return "new:" + strings.Join([]string{t.MachineType, t.Task, t.DueDate.String()}, "|")
}
