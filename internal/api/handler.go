package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Simulo/internal/domain"
	"github.com/shaiso/Simulo/internal/pool"
)

// Dispatcher — интерфейс пула воркеров, нужный API.
type Dispatcher interface {
	RunParallel(ctx context.Context, req domain.SimulationRequest, onProgress pool.ProgressFunc) ([]domain.ResultRecord, error)
	Stats() domain.PoolStats
	Initialized() bool
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	dispatcher Dispatcher
	jobs       *JobStore
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Dispatcher Dispatcher
	Jobs       *JobStore
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	jobs := cfg.Jobs
	if jobs == nil {
		jobs = NewJobStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		dispatcher: cfg.Dispatcher,
		jobs:       jobs,
		logger:     logger,
	}
}
