package api

import (
	"net/http"
	"strconv"
)

// GetPool возвращает состояние пула и статистику всех воркеров.
// GET /api/v1/workers
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	Success(w, PoolFromDomain(h.dispatcher.Stats()))
}

// GetWorker возвращает статистику одного воркера.
// GET /api/v1/workers/{index}
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		BadRequest(w, "invalid worker index")
		return
	}

	stats := PoolFromDomain(h.dispatcher.Stats())
	if index >= len(stats.Workers) {
		NotFound(w, "worker not found")
		return
	}

	Success(w, stats.Workers[index])
}
