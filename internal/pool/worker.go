package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/shaiso/Simulo/internal/domain"
	"github.com/shaiso/Simulo/internal/engine"
	"github.com/shaiso/Simulo/internal/protocol"
	"github.com/shaiso/Simulo/internal/telemetry"
)

// Границы гистограммы латентности батча: 1 мс … 1 час.
const (
	latencyMinMs   = 1
	latencyMaxMs   = 3_600_000
	latencySigFigs = 3
)

// workerSlot — один compute worker пула.
//
// Слот привязан к индексу на всю жизнь пула: при падении контекста
// исполнения индекс перестраивается на месте (новое соединение, тот же
// индекс). Соединение меняется от поколения к поколению, реестр
// конвертов и статистика живут вместе со слотом.
type workerSlot struct {
	index  int
	logger *slog.Logger

	mu    sync.Mutex
	state domain.WorkerState
	conn  engine.Conn

	pending *registry

	// rebuilding гарантирует не более одного rebuild на индекс.
	rebuilding atomic.Bool

	// Статистика — эвристический сигнал, не вход для корректности.
	statsMu          sync.Mutex
	latency          *hdrhistogram.Histogram
	completedBatches atomic.Int64
	failedBatches    atomic.Int64
	crashes          atomic.Int64
}

func newWorkerSlot(index int, logger *slog.Logger) *workerSlot {
	wl := telemetry.WithWorker(logger, index)
	return &workerSlot{
		index:   index,
		logger:  wl,
		state:   domain.WorkerStarting,
		pending: newRegistry(wl),
		latency: hdrhistogram.New(latencyMinMs, latencyMaxMs, latencySigFigs),
	}
}

// setConn привязывает новое поколение соединения к слоту.
func (w *workerSlot) setConn(conn engine.Conn, state domain.WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn = conn
	w.state = state
}

// currentConn возвращает текущее соединение (nil после crash/terminate).
func (w *workerSlot) currentConn() engine.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn
}

// takeConn изымает соединение из слота, переводя его в данное состояние.
func (w *workerSlot) takeConn(state domain.WorkerState) engine.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	conn := w.conn
	w.conn = nil
	w.state = state
	return conn
}

// currentState возвращает текущее состояние слота.
func (w *workerSlot) currentState() domain.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// setState переводит слот в данное состояние безусловно.
func (w *workerSlot) setState(state domain.WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
}

// casState переводит слот из from в to; false, если слот не в from.
// Используется acquire/release для защиты от устаревших idle-записей
// и двойного возврата в ротацию.
func (w *workerSlot) casState(from, to domain.WorkerState) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from {
		return false
	}
	w.state = to
	return true
}

// call выполняет один round trip к движку: регистрирует конверт,
// отправляет запрос и ждёт терминального исхода либо дедлайна.
//
// По дедлайну конверт снимается с учёта: брошенное вычисление может
// продолжаться внутри воркера, но его поздний ответ будет отброшен
// по пути unknown-id.
func (w *workerSlot) call(ctx context.Context, kind protocol.Kind, payload any, timeout time.Duration, onProgress func(protocol.ProgressPayload)) (json.RawMessage, error) {
	msg, err := protocol.NewMessage(kind, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	env := &envelope{
		id:       msg.ID,
		kind:     kind,
		done:     make(chan outcome, 1),
		progress: onProgress,
	}

	if err := w.pending.add(env); err != nil {
		return nil, err
	}

	conn := w.currentConn()
	if conn == nil {
		w.pending.remove(env.id)
		return nil, ErrWorkerCrashed
	}

	if err := conn.Send(msg); err != nil {
		w.pending.remove(env.id)
		return nil, fmt.Errorf("%w: send failed: %v", ErrWorkerCrashed, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-env.done:
		return out.payload, out.err

	case <-timer.C:
		w.pending.remove(env.id)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, kind, timeout)

	case <-ctx.Done():
		w.pending.remove(env.id)
		return nil, ctx.Err()
	}
}

// notify отправляет административное сообщение без ожидания ответа
// (set-verbosity, cleanup). Best-effort.
func (w *workerSlot) notify(kind protocol.Kind, payload any) {
	conn := w.currentConn()
	if conn == nil {
		return
	}

	msg, err := protocol.NewMessage(kind, payload)
	if err != nil {
		return
	}

	if err := conn.Send(msg); err != nil {
		w.logger.Debug("administrative send failed", "kind", kind, "error", err)
	}
}

// recordSuccess учитывает успешный батч и его латентность.
func (w *workerSlot) recordSuccess(latency time.Duration) {
	w.completedBatches.Add(1)

	ms := latency.Milliseconds()
	if ms < latencyMinMs {
		ms = latencyMinMs
	}
	if ms > latencyMaxMs {
		ms = latencyMaxMs
	}

	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.latency.RecordValue(ms)
}

// recordFailure учитывает неуспешный батч.
func (w *workerSlot) recordFailure() {
	w.failedBatches.Add(1)
}

// recordCrash учитывает падение контекста исполнения.
func (w *workerSlot) recordCrash() {
	w.crashes.Add(1)
}

// stats возвращает снимок статистики слота.
func (w *workerSlot) stats() domain.WorkerStats {
	completed := w.completedBatches.Load()
	failed := w.failedBatches.Load()

	s := domain.WorkerStats{
		Index:            w.index,
		State:            w.currentState(),
		CompletedBatches: completed,
		FailedBatches:    failed,
		Crashes:          w.crashes.Load(),
	}

	if total := completed + failed; total > 0 {
		s.SuccessRate = float64(completed) / float64(total)
	}

	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	if w.latency.TotalCount() > 0 {
		s.LatencyP50Ms = w.latency.ValueAtQuantile(50)
		s.LatencyP95Ms = w.latency.ValueAtQuantile(95)
		s.LatencyMaxMs = w.latency.Max()
	}

	return s
}
