package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Simulo/internal/domain"
	"github.com/shaiso/Simulo/internal/telemetry"
)

// CreateSimulation принимает запрос на N прогонов и запускает его
// асинхронно поверх пула.
// POST /api/v1/simulations
func (h *Handler) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req CreateSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	simReq := req.ToDomain()
	if err := simReq.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if !h.dispatcher.Initialized() {
		Unavailable(w, "worker pool is not initialized")
		return
	}

	job := domain.NewSimulationJob(simReq)

	// Контекст задания независим от контекста HTTP-запроса: клиент
	// забирает статус и результаты отдельными вызовами.
	ctx, cancel := context.WithCancel(context.Background())
	h.jobs.Add(job, cancel)

	go h.executeJob(ctx, cancel, job.ID, simReq)

	h.logger.Info("simulation accepted",
		"job_id", job.ID,
		"runs", simReq.RunCount,
	)

	Accepted(w, JobFromDomain(*h.mustJob(job.ID)))
}

// executeJob выполняет задание и фиксирует его исход в хранилище.
func (h *Handler) executeJob(ctx context.Context, cancel context.CancelFunc, id uuid.UUID, req domain.SimulationRequest) {
	defer cancel()

	logger := telemetry.WithJobID(h.logger, id.String())
	h.jobs.MarkRunning(id)

	results, err := h.dispatcher.RunParallel(ctx, req, func(completed, total int) {
		h.jobs.UpdateProgress(id, completed, total)
	})

	switch {
	case err == nil:
		h.jobs.Finish(id, domain.OutcomeStatus(results), results, "")
		logger.Info("simulation finished", "runs", len(results))

	case errors.Is(err, context.Canceled):
		h.jobs.Finish(id, domain.JobStatusCancelled, nil, "cancelled by caller")
		logger.Info("simulation cancelled")

	default:
		logger.Error("simulation failed", "error", err)
		h.jobs.Finish(id, domain.JobStatusFailed, nil, err.Error())
	}
}

// mustJob возвращает копию только что добавленного задания.
func (h *Handler) mustJob(id uuid.UUID) *domain.SimulationJob {
	job, _ := h.jobs.Get(id)
	return &job
}

// ListSimulations возвращает все задания, новые первыми.
// GET /api/v1/simulations
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()

	result := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		result[i] = JobFromDomain(job)
	}

	List(w, result, len(result))
}

// GetSimulation возвращает статус и прогресс задания.
// GET /api/v1/simulations/{id}
func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid simulation id")
		return
	}

	job, ok := h.jobs.Get(id)
	if !ok {
		NotFound(w, "simulation not found")
		return
	}

	Success(w, JobFromDomain(job))
}

// GetSimulationResults возвращает полный набор результатов.
// GET /api/v1/simulations/{id}/results
func (h *Handler) GetSimulationResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid simulation id")
		return
	}

	job, ok := h.jobs.Get(id)
	if !ok {
		NotFound(w, "simulation not found")
		return
	}

	if !job.Status.IsTerminal() {
		InvalidState(w, "simulation is still running")
		return
	}

	Success(w, ResultsResponse{
		ID:      job.ID,
		Status:  job.Status,
		Records: job.Results,
	})
}

// CancelSimulation отменяет незавершённое задание.
// POST /api/v1/simulations/{id}/cancel
func (h *Handler) CancelSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid simulation id")
		return
	}

	job, ok := h.jobs.Get(id)
	if !ok {
		NotFound(w, "simulation not found")
		return
	}

	if job.Status.IsTerminal() {
		InvalidState(w, "simulation already finished")
		return
	}

	if !h.jobs.Cancel(id) {
		InvalidState(w, "simulation already finished")
		return
	}

	h.logger.Info("simulation cancellation requested", "job_id", id)

	job, _ = h.jobs.Get(id)
	Success(w, JobFromDomain(job))
}
