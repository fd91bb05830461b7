package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Simulo/internal/domain"
)

// JobStore — in-memory хранилище заданий симуляции.
//
// Задания живут в памяти процесса: диспетчер не персистирует ни
// запросы, ни результаты. Store потокобезопасен; снаружи отдаются
// только копии заданий.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*domain.SimulationJob
	cancels map[uuid.UUID]context.CancelFunc
}

// NewJobStore создаёт пустое хранилище.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:    make(map[uuid.UUID]*domain.SimulationJob),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Add регистрирует задание и функцию его отмены.
func (s *JobStore) Add(job *domain.SimulationJob, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.cancels[job.ID] = cancel
}

// Get возвращает копию задания.
func (s *JobStore) Get(id uuid.UUID) (domain.SimulationJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.SimulationJob{}, false
	}
	return *job, true
}

// List возвращает копии всех заданий, новые первыми.
func (s *JobStore) List() []domain.SimulationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SimulationJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// MarkRunning переводит задание в RUNNING.
func (s *JobStore) MarkRunning(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobStatusPending {
		return
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
}

// UpdateProgress обновляет агрегированный прогресс задания.
func (s *JobStore) UpdateProgress(id uuid.UUID, completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && !job.Status.IsTerminal() {
		job.Completed = completed
		job.Total = total
	}
}

// Finish фиксирует финальный исход задания. Терминальный статус
// устанавливается ровно один раз; повторные вызовы игнорируются.
func (s *JobStore) Finish(id uuid.UUID, status domain.JobStatus, results []domain.ResultRecord, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	job.Status = status
	job.Results = results
	job.Error = errMsg
	job.FinishedAt = &now
	if status == domain.JobStatusSucceeded || status == domain.JobStatusPartial {
		job.Completed = job.Total
	}

	delete(s.cancels, id)
}

// Cancel отменяет задание: останавливает ожидание результатов.
// Возвращает false, если задание не найдено или уже завершено.
func (s *JobStore) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	cancel := s.cancels[id]
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}
