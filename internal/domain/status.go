package domain

// WorkerState — состояние compute worker'а.
//
// Жизненный цикл:
//
//	STARTING → READY ⇄ BUSY
//	                 ↘ CRASHED → STARTING (rebuild)
//	                           ↘ TERMINATED (retired или terminate пула)
type WorkerState string

const (
	// WorkerStarting — контекст исполнения создаётся, движок инициализируется.
	WorkerStarting WorkerState = "STARTING"

	// WorkerReady — воркер свободен и готов принять батч.
	WorkerReady WorkerState = "READY"

	// WorkerBusy — воркер выполняет батч.
	WorkerBusy WorkerState = "BUSY"

	// WorkerCrashed — контекст исполнения погиб; идёт rebuild.
	WorkerCrashed WorkerState = "CRASHED"

	// WorkerTerminated — воркер навсегда выведен из ротации.
	WorkerTerminated WorkerState = "TERMINATED"
)

// IsTerminal возвращает true, если воркер больше не вернётся в ротацию.
func (s WorkerState) IsTerminal() bool {
	return s == WorkerTerminated
}

// JobStatus — статус задания симуляции на уровне API.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ PARTIAL (часть прогонов завершилась синтетической неудачей)
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type JobStatus string

const (
	// JobStatusPending — задание создано, но ещё не начало выполняться.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning — задание в процессе выполнения.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded — все N прогонов завершились успешно.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusPartial — результат полон (N записей), но часть прогонов
	// помечена как неудачная.
	JobStatusPartial JobStatus = "PARTIAL"

	// JobStatusFailed — задание отклонено целиком (системный сбой).
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusCancelled — задание отменено вызывающей стороной.
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (задание завершено).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusPartial, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}
