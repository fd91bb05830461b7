package domain

// WorkerStats — снимок статистики одного воркера.
//
// Статистика — эвристический сигнал (для наблюдаемости и балансировки),
// никогда не используется как вход для корректности.
type WorkerStats struct {
	// Index — индекс воркера в пуле.
	Index int `json:"index"`

	// State — текущее состояние воркера.
	State WorkerState `json:"state"`

	// CompletedBatches — количество успешно выполненных батчей.
	CompletedBatches int64 `json:"completed_batches"`

	// FailedBatches — количество батчей, завершившихся ошибкой или таймаутом.
	FailedBatches int64 `json:"failed_batches"`

	// Crashes — количество падений контекста исполнения.
	Crashes int64 `json:"crashes"`

	// LatencyP50Ms, LatencyP95Ms, LatencyMaxMs — латентность батча, мс.
	LatencyP50Ms int64 `json:"latency_p50_ms"`
	LatencyP95Ms int64 `json:"latency_p95_ms"`
	LatencyMaxMs int64 `json:"latency_max_ms"`

	// SuccessRate — доля успешных батчей в [0, 1].
	SuccessRate float64 `json:"success_rate"`
}

// PoolStats — снимок статистики всего пула.
type PoolStats struct {
	// PoolSize — сконфигурированный размер пула.
	PoolSize int `json:"pool_size"`

	// Initialized — прошёл ли пул инициализацию.
	Initialized bool `json:"initialized"`

	// RetiredWorkers — количество навсегда выведенных из ротации воркеров.
	RetiredWorkers int `json:"retired_workers"`

	// Workers — статистика по каждому воркеру.
	Workers []WorkerStats `json:"workers"`
}
