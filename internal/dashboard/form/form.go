// Package form - контроллер модального окна создания и редактирования задачи.
package form

import (
	"fmt"
	"strconv"
	"strings"

	"pmSchedule/internal/models/schedule"
)

type Mode string

const (
	ModeClosed Mode = "closed"
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

const (
	TitleCreate = "เพิ่มใบงานใหม่"
	TitleEdit   = "แก้ไขใบงาน"

	RequiredFieldsAlert = "กรุณากรอกข้อมูลที่จำเป็นให้ครบถ้วน"
)

// Values - значения полей формы в том виде, как их прислал браузер
type Values struct {
	ID          string
	MachineType string
	Task        string
	Frequency   string
	DueDate     string
	Status      string
	Assignee    string
}

// ValuesOf заполняет форму из записи хранилища
func ValuesOf(task schedule.Task) Values {
	values := Values{
		MachineType: task.MachineType,
		Task:        task.Task,
		Frequency:   task.Frequency,
		DueDate:     task.DueDate.String(),
		Status:      string(task.Status.Normalize()),
		Assignee:    task.Assignee,
	}
	if task.HasID() {
		values.ID = strconv.FormatInt(task.ID, 10)
	}
	return values
}

// ValidationError - не заполнены обязательные поля, запрос к API не отправляется
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// Dialog - состояние окна: закрыто, создание (id не привязан) или редактирование
type Dialog struct {
	Mode   Mode
	Title  string
	Values Values
	// Alert - сообщение пользователю, окно при этом остаётся открытым
	Alert string
}

func Closed() Dialog {
	return Dialog{Mode: ModeClosed}
}

// OpenCreate сбрасывает все поля
func OpenCreate() Dialog {
	return Dialog{
		Mode:   ModeCreate,
		Title:  TitleCreate,
		Values: Values{Status: string(schedule.StatusPending)},
	}
}

func OpenEdit(task schedule.Task) Dialog {
	return Dialog{
		Mode:   ModeEdit,
		Title:  TitleEdit,
		Values: ValuesOf(task),
	}
}

// Reopen восстанавливает окно из отправленной формы: режим определяется наличием id
func Reopen(values Values) Dialog {
	if strings.TrimSpace(values.ID) != "" {
		return Dialog{Mode: ModeEdit, Title: TitleEdit, Values: values}
	}
	return Dialog{Mode: ModeCreate, Title: TitleCreate, Values: values}
}

func (d Dialog) Open() bool {
	return d.Mode == ModeCreate || d.Mode == ModeEdit
}

func (d Dialog) WithAlert(message string) Dialog {
	d.Alert = message
	return d
}

// Submit обрезает пробелы, проверяет обязательные поля и собирает запись.
// id берётся из привязанного значения формы.
func Submit(values Values) (schedule.Task, error) {
	values = trim(values)

	var missing []string
	if values.MachineType == "" {
		missing = append(missing, "machineType")
	}
	if values.Task == "" {
		missing = append(missing, "task")
	}
	if values.DueDate == "" {
		missing = append(missing, "dueDate")
	}
	if len(missing) > 0 {
		return schedule.Task{}, &ValidationError{Fields: missing, Message: RequiredFieldsAlert}
	}

	dueDate, err := schedule.ParseDate(values.DueDate)
	if err != nil {
		return schedule.Task{}, &ValidationError{Fields: []string{"dueDate"}, Message: RequiredFieldsAlert}
	}

	task := schedule.Task{
		MachineType: values.MachineType,
		Task:        values.Task,
		Frequency:   values.Frequency,
		DueDate:     dueDate,
		Status:      schedule.Status(values.Status).Normalize(),
		Assignee:    values.Assignee,
	}

	if values.ID != "" {
		id, err := strconv.ParseInt(values.ID, 10, 64)
		if err != nil || id <= 0 {
			return schedule.Task{}, fmt.Errorf("неверный id %q", values.ID)
		}
		task.ID = id
	}
	return task, nil
}

func trim(values Values) Values {
	return Values{
		ID:          strings.TrimSpace(values.ID),
		MachineType: strings.TrimSpace(values.MachineType),
		Task:        strings.TrimSpace(values.Task),
		Frequency:   strings.TrimSpace(values.Frequency),
		DueDate:     strings.TrimSpace(values.DueDate),
		Status:      strings.TrimSpace(values.Status),
		Assignee:    strings.TrimSpace(values.Assignee),
	}
}
