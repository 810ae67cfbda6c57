// Package schedule - общие части хранилищ графика.
package schedule

import (
	"fmt"
	"os"

	"pmSchedule/internal/models/schedule"

	"gopkg.in/yaml.v3"
)

// LoadSeedFile читает начальные записи графика из YAML-файла (список задач)
func LoadSeedFile(path string) ([]schedule.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла начальных данных: %w", err)
	}

	var tasks []schedule.Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("разбор файла начальных данных: %w", err)
	}

	for i := range tasks {
		tasks[i].ID = 0
		tasks[i].Status = tasks[i].Status.Normalize()
	}
	return tasks, nil
}
