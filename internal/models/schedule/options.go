package schedule

// TaskOption - функция обновления записи, применяется сервисом к найденной задаче
type TaskOption func(*Task)

func WithMachineType(machineType string) TaskOption {
	return func(task *Task) {
		task.MachineType = machineType
	}
}

func WithTask(name string) TaskOption {
	return func(task *Task) {
		task.Task = name
	}
}

func WithFrequency(frequency string) TaskOption {
	return func(task *Task) {
		task.Frequency = frequency
	}
}

func WithDueDate(dueDate Date) TaskOption {
	if dueDate.IsZero() {
		return nil
	}
	return func(task *Task) {
		task.DueDate = dueDate
	}
}

func WithStatus(status Status) TaskOption {
	return func(task *Task) {
		task.Status = status.Normalize()
	}
}

func WithAssignee(assignee string) TaskOption {
	return func(task *Task) {
		task.Assignee = assignee
	}
}

// Replace - полная замена полей (PUT), id не меняется
func Replace(src Task) []TaskOption {
	return []TaskOption{
		WithMachineType(src.MachineType),
		WithTask(src.Task),
		WithFrequency(src.Frequency),
		WithDueDate(src.DueDate),
		WithStatus(src.Status),
		WithAssignee(src.Assignee),
	}
}

func (t *Task) Apply(options ...TaskOption) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}
