package pool

import (
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/shaiso/Simulo/internal/telemetry"
)

// Значения по умолчанию для монитора памяти.
const (
	defaultBudgetMB      = 512
	defaultCheckInterval = 30 * time.Second

	// pressureFraction — доля бюджета, после которой включается режим
	// давления памяти.
	pressureFraction = 0.8

	// normalBatchHint и pressureBatchHint — рекомендованные размеры
	// батча вне и внутри режима давления.
	normalBatchHint   = 10
	pressureBatchHint = 3
)

// MemoryMonitor проверяет давление памяти по расписанию (time-gated,
// не на каждую задачу). Пересечение порога вызывает возврат памяти
// через инжектируемый reclaim-колбэк — это оптимизация пиковой памяти,
// никогда не влияющая на корректность или результаты.
//
// Nil-монитор полностью корректен: SuggestedBatchSize возвращает
// значение по умолчанию, UnderPressure — false.
type MemoryMonitor struct {
	budgetMB int
	interval time.Duration
	reclaim  func()
	logger   *slog.Logger

	pressure atomic.Bool
}

// MemoryMonitorConfig — конфигурация монитора памяти.
type MemoryMonitorConfig struct {
	// BudgetMB — оценочный бюджет кучи (default: 512).
	BudgetMB int

	// CheckInterval — интервал проверок (default: 30s).
	CheckInterval time.Duration

	// Reclaim — колбэк возврата памяти; при nil используется
	// debug.FreeOSMemory. Явный no-op также корректен.
	Reclaim func()

	// Logger — опционально.
	Logger *slog.Logger
}

// NewMemoryMonitor создаёт монитор давления памяти.
func NewMemoryMonitor(cfg MemoryMonitorConfig) *MemoryMonitor {
	budget := cfg.BudgetMB
	if budget <= 0 {
		budget = defaultBudgetMB
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	reclaim := cfg.Reclaim
	if reclaim == nil {
		reclaim = func() { debug.FreeOSMemory() }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MemoryMonitor{
		budgetMB: budget,
		interval: interval,
		reclaim:  reclaim,
		logger:   logger,
	}
}

// Run запускает цикл проверок до закрытия stop.
func (m *MemoryMonitor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check выполняет одну проверку давления памяти.
func (m *MemoryMonitor) Check() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	heapMB := int(ms.HeapAlloc >> 20)
	threshold := int(float64(m.budgetMB) * pressureFraction)

	if heapMB >= threshold {
		if !m.pressure.Swap(true) {
			m.logger.Warn("memory pressure detected",
				"heap_mb", heapMB,
				"budget_mb", m.budgetMB,
			)
		}
		m.reclaim()
		telemetry.MemoryPressure.Set(1)
		return
	}

	m.pressure.Store(false)
	telemetry.MemoryPressure.Set(0)
}

// SuggestedBatchSize возвращает рекомендованный размер батча по текущему
// сигналу памяти. Безопасен на nil-получателе.
func (m *MemoryMonitor) SuggestedBatchSize() int {
	if m == nil {
		return normalBatchHint
	}
	if m.pressure.Load() {
		return pressureBatchHint
	}
	return normalBatchHint
}

// UnderPressure возвращает true в режиме давления памяти.
// Безопасен на nil-получателе.
func (m *MemoryMonitor) UnderPressure() bool {
	if m == nil {
		return false
	}
	return m.pressure.Load()
}
