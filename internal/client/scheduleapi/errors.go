package scheduleapi

import (
	"errors"
	"fmt"
)

// ErrBusy: по этой записи уже выполняется изменение
var ErrBusy = errors.New("изменение записи уже выполняется")

// FetchError - сетевая ошибка или ошибка разбора при загрузке списка
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("загрузка графика: статус %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("загрузка графика: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MutationError - создание, обновление или удаление не удалось
type MutationError struct {
	Op         string
	ID         int64
	StatusCode int
	Reason     string
	Err        error
}

func (e *MutationError) Error() string {
	target := "новая запись"
	if e.ID > 0 {
		target = fmt.Sprintf("запись %d", e.ID)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s): статус %d: %s", e.Op, target, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", e.Op, target, e.Reason)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
