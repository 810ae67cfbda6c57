package view

import (
	"encoding/json"
	"time"

	"pmSchedule/internal/dashboard/derive"
	"pmSchedule/internal/models/schedule"
)

// Chart - набор данных кольцевой диаграммы. Метки и цвета фиксированы,
// меняются только значения.
type Chart struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
	Colors []string `json:"backgroundColor"`
}

var (
	chartLabels = []string{string(schedule.StatusDone), string(schedule.StatusPending), string(schedule.StatusOverdue)}
	chartColors = []string{"#28a745", "#17a2b8", "#dc3545"}
)

func BuildChart(counts derive.StatusCounts) Chart {
	labels := make([]string, len(chartLabels))
	copy(labels, chartLabels)
	colors := make([]string, len(chartColors))
	copy(colors, chartColors)

	return Chart{
		Labels: labels,
		Data:   []int{counts.Done, counts.Pending, counts.Overdue},
		Colors: colors,
	}
}

func (c Chart) JSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Summary - карточки KPI и диаграмма. Считаются по всему снимку, не по отфильтрованной таблице.
type Summary struct {
	KPI   derive.KPI
	Chart Chart
	// Stale: данные с прошлого успешного запроса, текущий завершился ошибкой
	Stale bool
}

func BuildSummary(tasks []schedule.Task, now time.Time) Summary {
	return Summary{
		KPI:   derive.KPICounts(tasks, now),
		Chart: BuildChart(derive.ChartCounts(tasks, now)),
	}
}
