package dashboard

import (
	"errors"

	"pmSchedule/internal/client/scheduleapi"
)

const (
	DeleteConfirmMessage = "คุณแน่ใจหรือไม่ว่าต้องการลบใบงานนี้?"
	SaveFailedPrefix     = "บันทึกไม่สำเร็จ"
	DeleteFailedPrefix   = "ลบไม่สำเร็จ"
	BusyMessage          = "กำลังดำเนินการกับใบงานนี้อยู่ กรุณารอสักครู่"
)

// SaveFailedMessage - текст для пользователя по ошибке сохранения
func SaveFailedMessage(err error) string {
	return failureMessage(SaveFailedPrefix, err)
}

func DeleteFailedMessage(err error) string {
	return failureMessage(DeleteFailedPrefix, err)
}

func failureMessage(prefix string, err error) string {
	if errors.Is(err, scheduleapi.ErrBusy) {
		return BusyMessage
	}
	var mutationErr *scheduleapi.MutationError
	if errors.As(err, &mutationErr) && mutationErr.Reason != "" {
		return prefix + ": " + mutationErr.Reason
	}
	return prefix
}
