package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Simulo/internal/domain"
	"github.com/shaiso/Simulo/internal/protocol"
	"github.com/shaiso/Simulo/internal/telemetry"
)

// ProgressFunc получает агрегированный прогресс: количество прогонов,
// чьи батчи достигли финального исхода, от общего N. Вызывается из
// одной горутины; значения монотонно растут до N.
type ProgressFunc func(completed, total int)

// RunParallel выполняет запрос на N прогонов поверх пула.
//
// Запрос разбивается на батчи непрерывных индексов; батчи раздаются
// воркерам через общую очередь — освободившийся воркер немедленно
// забирает следующий. Восстановимо упавший батч ретраится один раз
// целиком; исчерпавший ретраи батч представляется синтетическими
// записями о неудаче.
//
// Возвращает ровно req.RunCount записей в порядке исходных индексов.
// Ошибка возвращается только при системном сбое (пул остановлен,
// контекст отменён, все воркеры выбыли) или невалидном запросе.
func (s *Supervisor) RunParallel(ctx context.Context, req domain.SimulationRequest, onProgress ProgressFunc) ([]domain.ResultRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if !s.initialized.Load() {
		return nil, ErrPoolNotInitialized
	}
	if s.isClosed() {
		return nil, ErrPoolShutdown
	}

	n := req.RunCount
	batches := PlanBatches(n, s.poolSize, s.memory.SuggestedBatchSize())

	s.logger.Info("dispatching simulation request",
		"runs", n,
		"batches", len(batches),
	)

	results := make([]domain.ResultRecord, n)
	agg := newProgressAggregator(n, onProgress)

	// Общая очередь батчей: воркеры тянут работу по готовности,
	// быстрые индексы обрабатывают больше батчей.
	queue := make(chan domain.WorkBatch)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		abortMu  sync.Mutex
		abortErr error
	)

	abort := func(err error) {
		abortMu.Lock()
		if abortErr == nil {
			abortErr = err
			cancel()
		}
		abortMu.Unlock()
	}

	drainers := min(s.poolSize, len(batches))
	for range drainers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range queue {
				if err := s.runBatch(runCtx, req, batch, results, agg); err != nil {
					abort(err)
					return
				}
			}
		}()
	}

	for _, batch := range batches {
		select {
		case queue <- batch:
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}
	}
	close(queue)
	wg.Wait()

	abortMu.Lock()
	err := abortErr
	abortMu.Unlock()

	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	return results, nil
}

// runBatch выполняет один батч до финального исхода: первая попытка,
// при восстановимом сбое — ровно один ретрай, затем синтетические
// записи о неудаче. Системные ошибки всплывают и отклоняют весь запрос.
func (s *Supervisor) runBatch(ctx context.Context, req domain.SimulationRequest, batch domain.WorkBatch, results []domain.ResultRecord, agg *progressAggregator) error {
	err := s.tryBatch(ctx, req, batch, results)
	if err != nil && retriable(err) {
		telemetry.BatchRetries.Inc()
		s.logger.Warn("retrying batch",
			"start_index", batch.StartIndex,
			"size", batch.Size,
			"cause", err,
		)
		err = s.tryBatch(ctx, req, batch, results)
	}

	if err != nil {
		if systemic(err) {
			return err
		}

		// Батч исчерпал попытки: прогоны представляются синтетическими
		// записями, запрос в целом продолжается.
		telemetry.BatchesFailed.Inc()
		s.logger.Error("batch failed permanently",
			"start_index", batch.StartIndex,
			"size", batch.Size,
			"error", err,
		)
		for i := batch.StartIndex; i < batch.EndIndex(); i++ {
			results[i] = domain.FailureRecord(i, err.Error())
		}
	} else {
		telemetry.BatchesCompleted.Inc()
		telemetry.RunsCompleted.Add(float64(batch.Size))
	}

	agg.settle(batch)
	return nil
}

// tryBatch — одна попытка выполнения батча: захват воркера, round trip
// run-batch, строгая валидация ответа, запись результатов в свой
// диапазон results.
func (s *Supervisor) tryBatch(ctx context.Context, req domain.SimulationRequest, batch domain.WorkBatch, results []domain.ResultRecord) error {
	w, err := s.acquireWorker(ctx)
	if err != nil {
		return err
	}

	payload := protocol.RunBatchPayload{
		InitialState: req.InitialState,
		Events:       req.Events,
		Config:       req.Config,
		RunCount:     batch.Size,
		StartIndex:   batch.StartIndex,
	}

	onProgress := func(p protocol.ProgressPayload) {
		s.logger.Debug("batch progress",
			"worker", w.index,
			"start_index", batch.StartIndex,
			"completed", p.Completed,
			"total", p.Total,
		)
	}

	start := time.Now()
	raw, err := w.call(ctx, protocol.KindRunBatch, payload, s.batchTimeout, onProgress)
	elapsed := time.Since(start)

	// Упавший воркер в ротацию не возвращается: его индекс вернёт
	// rebuild. Во всех остальных исходах воркер освобождается сразу.
	if err != nil {
		w.recordFailure()
		if !errorIsCrash(err) {
			s.releaseWorker(w)
		}
		return err
	}

	records, err := protocol.DecodeResult(raw, batch)
	if err != nil {
		// Ответ, не соответствующий батчу, детерминирован: ретрай не
		// поможет, батч отклоняется как невалидный.
		w.recordFailure()
		s.releaseWorker(w)
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	for _, rec := range records {
		results[rec.RunIndex] = rec
	}

	w.recordSuccess(elapsed)
	telemetry.BatchDuration.Observe(elapsed.Seconds())
	s.releaseWorker(w)
	return nil
}

// progressAggregator считает прогоны из батчей, достигших финального
// исхода. Батч учитывается ровно один раз, после всех ретраев:
// прогресс монотонен и не двоится.
type progressAggregator struct {
	mu        sync.Mutex
	total     int
	completed int
	report    ProgressFunc
}

func newProgressAggregator(total int, report ProgressFunc) *progressAggregator {
	return &progressAggregator{total: total, report: report}
}

// settle учитывает финальный исход батча.
func (a *progressAggregator) settle(batch domain.WorkBatch) {
	a.mu.Lock()
	a.completed += batch.Size
	completed := a.completed
	a.mu.Unlock()

	if a.report != nil {
		a.report(completed, a.total)
	}
}
