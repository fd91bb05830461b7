package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики диспетчера. Экспортируются на /metrics endpoint сервиса API.
var (
	// BatchesCompleted — успешно выполненные батчи.
	BatchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "simulo",
		Name:      "batches_completed_total",
		Help:      "Number of work batches completed successfully.",
	})

	// BatchesFailed — батчи, завершившиеся ошибкой после всех ретраев.
	BatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "simulo",
		Name:      "batches_failed_total",
		Help:      "Number of work batches that failed after retries.",
	})

	// BatchRetries — повторные попытки выполнения батчей.
	BatchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "simulo",
		Name:      "batch_retries_total",
		Help:      "Number of work batch retry attempts.",
	})

	// RunsCompleted — успешно выполненные прогоны симуляции.
	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "simulo",
		Name:      "runs_completed_total",
		Help:      "Number of individual simulation runs completed successfully.",
	})

	// BatchDuration — латентность выполнения одного батча.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "simulo",
		Name:      "batch_duration_seconds",
		Help:      "Duration of a single work batch round trip.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	})

	// WorkerCrashes — падения контекстов исполнения.
	WorkerCrashes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "simulo",
		Name:      "worker_crashes_total",
		Help:      "Number of detected worker execution context crashes.",
	})

	// WorkerRebuilds — успешные перестроения воркеров.
	WorkerRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "simulo",
		Name:      "worker_rebuilds_total",
		Help:      "Number of successful worker rebuilds.",
	})

	// WorkersRetired — воркеры, навсегда выведенные из ротации.
	WorkersRetired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "simulo",
		Name:      "workers_retired_total",
		Help:      "Number of workers permanently removed from rotation.",
	})

	// PoolWorkers — текущий размер пула.
	PoolWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "simulo",
		Name:      "pool_workers",
		Help:      "Number of workers in the pool.",
	})

	// MemoryPressure — признак давления памяти (0/1).
	MemoryPressure = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "simulo",
		Name:      "memory_pressure",
		Help:      "Whether the dispatcher is under memory pressure (0 or 1).",
	})
)
