package worker

import (
	"context"
	"time"

	"pmSchedule/internal/dashboard/derive"
	"pmSchedule/internal/dashboard/store"
	"pmSchedule/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const defaultInterval = 5 * time.Minute

// Refresher - часть дашборда, нужная воркеру
type Refresher interface {
	Refresh(ctx context.Context) (store.Snapshot, error)
	Store() *store.Store
	Now() time.Time
}

type kpiGauges struct {
	overdue      prometheus.Gauge
	dueThisWeek  prometheus.Gauge
	dueThisMonth prometheus.Gauge
	byStatus     *prometheus.GaugeVec
}

// KPIWorker периодически перезагружает график и держит метрики KPI в актуальном виде.
// Метрики обновляет подписчик хранилища, поэтому загрузки со страницы их тоже обновляют.
type KPIWorker struct {
	dash     Refresher
	interval time.Duration
	gauges   kpiGauges
}

func NewKPIWorker(dash Refresher, interval *time.Duration, reg prometheus.Registerer) *KPIWorker {
	var intervalToSet time.Duration
	if interval == nil || *interval <= 0 {
		intervalToSet = defaultInterval
	} else {
		intervalToSet = *interval
	}

	factory := promauto.With(reg)
	return &KPIWorker{
		dash:     dash,
		interval: intervalToSet,
		gauges: kpiGauges{
			overdue: factory.NewGauge(prometheus.GaugeOpts{
				Name: "pm_tasks_overdue",
				Help: "PM tasks past their due date and not done",
			}),
			dueThisWeek: factory.NewGauge(prometheus.GaugeOpts{
				Name: "pm_tasks_due_this_week",
				Help: "Pending PM tasks due within the next 7 days",
			}),
			dueThisMonth: factory.NewGauge(prometheus.GaugeOpts{
				Name: "pm_tasks_due_this_month",
				Help: "Pending PM tasks due by the end of the current month",
			}),
			byStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
				Name: "pm_tasks_by_status",
				Help: "PM tasks by effective status",
			}, []string{"status"}),
		},
	}
}

// Start блокируется до отмены ctx. Первая загрузка выполняется сразу.
func (w *KPIWorker) Start(ctx context.Context) {
	cancel := w.dash.Store().Subscribe(w.Observe)
	defer cancel()

	if snapshot := w.dash.Store().Snapshot(); snapshot.Loaded() {
		w.Observe(snapshot)
	}
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Debug("Worker: Плановое обновление графика", zap.Time("started_at", time.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновое обновление KPI останавливается")
			return
		}
	}
}

// Check - одна перезагрузка графика. Ошибка только логируется, метрики остаются прежними.
func (w *KPIWorker) Check(ctx context.Context) {
	start := time.Now()

	snapshot, err := w.dash.Refresh(ctx)
	if err != nil {
		logger.Warn("Worker: Ошибка обновления графика", zap.Error(err))
		return
	}

	logger.Info("Worker: График обновлён",
		zap.Duration("ms", time.Since(start)),
		zap.Int("tasks", len(snapshot.Tasks)),
		zap.Uint64("version", snapshot.Version))
}

// Observe пересчитывает метрики по снимку
func (w *KPIWorker) Observe(snapshot store.Snapshot) {
	now := w.dash.Now()
	kpi := derive.KPICounts(snapshot.Tasks, now)
	counts := derive.ChartCounts(snapshot.Tasks, now)

	w.gauges.overdue.Set(float64(kpi.Overdue))
	w.gauges.dueThisWeek.Set(float64(kpi.DueThisWeek))
	w.gauges.dueThisMonth.Set(float64(kpi.DueThisMonth))
	w.gauges.byStatus.WithLabelValues("done").Set(float64(counts.Done))
	w.gauges.byStatus.WithLabelValues("pending").Set(float64(counts.Pending))
	w.gauges.byStatus.WithLabelValues("overdue").Set(float64(counts.Overdue))
}
