package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Simulations
	mux.Handle("POST /api/v1/simulations", chain(http.HandlerFunc(h.CreateSimulation)))
	mux.Handle("GET /api/v1/simulations", chain(http.HandlerFunc(h.ListSimulations)))
	mux.Handle("GET /api/v1/simulations/{id}", chain(http.HandlerFunc(h.GetSimulation)))
	mux.Handle("GET /api/v1/simulations/{id}/results", chain(http.HandlerFunc(h.GetSimulationResults)))
	mux.Handle("POST /api/v1/simulations/{id}/cancel", chain(http.HandlerFunc(h.CancelSimulation)))

	// Workers
	mux.Handle("GET /api/v1/workers", chain(http.HandlerFunc(h.GetPool)))
	mux.Handle("GET /api/v1/workers/{index}", chain(http.HandlerFunc(h.GetWorker)))
}
