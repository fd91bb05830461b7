package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Simulo/internal/domain"
)

// Simulation DTOs

// CreateSimulationRequest — запрос на запуск симуляции.
type CreateSimulationRequest struct {
	InitialState json.RawMessage `json:"initial_state"`
	Events       json.RawMessage `json:"events,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
	RunCount     int             `json:"run_count"`
}

// ToDomain конвертирует запрос API в доменный запрос.
func (r CreateSimulationRequest) ToDomain() domain.SimulationRequest {
	return domain.SimulationRequest{
		InitialState: r.InitialState,
		Events:       r.Events,
		Config:       r.Config,
		RunCount:     r.RunCount,
	}
}

// JobResponse — ответ с заданием симуляции (без результатов).
type JobResponse struct {
	ID         uuid.UUID        `json:"id"`
	Status     domain.JobStatus `json:"status"`
	RunCount   int              `json:"run_count"`
	Completed  int              `json:"completed"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// JobFromDomain конвертирует domain.SimulationJob в JobResponse.
func JobFromDomain(j domain.SimulationJob) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Status:     j.Status,
		RunCount:   j.Total,
		Completed:  j.Completed,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// ResultsResponse — ответ с результатами завершённого задания.
type ResultsResponse struct {
	ID      uuid.UUID             `json:"id"`
	Status  domain.JobStatus      `json:"status"`
	Records []domain.ResultRecord `json:"records"`
}

// Worker DTOs

// WorkerResponse — ответ с состоянием одного воркера.
type WorkerResponse struct {
	Index            int                `json:"index"`
	State            domain.WorkerState `json:"state"`
	CompletedBatches int64              `json:"completed_batches"`
	FailedBatches    int64              `json:"failed_batches"`
	Crashes          int64              `json:"crashes"`
	SuccessRate      float64            `json:"success_rate"`
	LatencyP50Ms     int64              `json:"latency_p50_ms"`
	LatencyP95Ms     int64              `json:"latency_p95_ms"`
	LatencyMaxMs     int64              `json:"latency_max_ms"`
}

// PoolResponse — ответ с состоянием пула.
type PoolResponse struct {
	PoolSize       int              `json:"pool_size"`
	Initialized    bool             `json:"initialized"`
	RetiredWorkers int              `json:"retired_workers"`
	Workers        []WorkerResponse `json:"workers"`
}

// PoolFromDomain конвертирует domain.PoolStats в PoolResponse.
func PoolFromDomain(s domain.PoolStats) PoolResponse {
	resp := PoolResponse{
		PoolSize:       s.PoolSize,
		Initialized:    s.Initialized,
		RetiredWorkers: s.RetiredWorkers,
		Workers:        make([]WorkerResponse, 0, len(s.Workers)),
	}
	for _, w := range s.Workers {
		resp.Workers = append(resp.Workers, WorkerResponse{
			Index:            w.Index,
			State:            w.State,
			CompletedBatches: w.CompletedBatches,
			FailedBatches:    w.FailedBatches,
			Crashes:          w.Crashes,
			SuccessRate:      w.SuccessRate,
			LatencyP50Ms:     w.LatencyP50Ms,
			LatencyP95Ms:     w.LatencyP95Ms,
			LatencyMaxMs:     w.LatencyMaxMs,
		})
	}
	return resp
}
