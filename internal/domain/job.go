package domain

import (
	"time"

	"github.com/google/uuid"
)

// SimulationJob — задание симуляции на уровне API.
//
// Задание создаётся при приёме запроса, выполняется асинхронно поверх
// пула и хранит финальный набор результатов. Хранение в памяти: жизнь
// задания ограничена жизнью процесса диспетчера.
type SimulationJob struct {
	ID      uuid.UUID
	Status  JobStatus
	Request SimulationRequest

	// Completed и Total — агрегированный прогресс в прогонах.
	Completed int
	Total     int

	// Results — ровно Total записей после завершения.
	Results []ResultRecord

	// Error — причина отказа (только при Status == FAILED).
	Error string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// NewSimulationJob создаёт задание в статусе PENDING.
func NewSimulationJob(req SimulationRequest) *SimulationJob {
	return &SimulationJob{
		ID:        uuid.New(),
		Status:    JobStatusPending,
		Request:   req,
		Total:     req.RunCount,
		CreatedAt: time.Now().UTC(),
	}
}

// OutcomeStatus выбирает финальный статус по набору результатов.
func OutcomeStatus(results []ResultRecord) JobStatus {
	for _, rec := range results {
		if !rec.Succeeded {
			return JobStatusPartial
		}
	}
	return JobStatusSucceeded
}
