package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/Simulo/internal/domain"
	"github.com/shaiso/Simulo/internal/engine"
	"github.com/shaiso/Simulo/internal/protocol"
	"github.com/shaiso/Simulo/internal/telemetry"
)

// Default configuration values.
const (
	defaultPoolSize     = 4
	defaultInitTimeout  = 30 * time.Second
	defaultBatchTimeout = 2 * time.Minute
	defaultRebuildLimit = 3
	rebuildBaseDelay    = time.Second
	rebuildMaxDelay     = 30 * time.Second
)

// Supervisor владеет фиксированным набором compute worker'ов.
//
// Supervisor — центральный компонент диспетчера, который:
//   - Поднимает пул целиком (Initialize: либо все воркеры готовы, либо
//     fail fast без частичного пула)
//   - Выдаёт свободных воркеров, ставя ожидающих в очередь (acquire/release)
//   - Детектирует падения контекстов исполнения и перестраивает индексы
//     на месте (onWorkerFault → rebuild)
//   - Выполняет RunParallel: батчирование, динамическая раздача,
//     агрегация прогресса и сборка результатов (runner.go)
//   - Останавливает пул, отклоняя все невыполненные вызовы (Terminate)
//
// Единственное разделяемое изменяемое состояние — idle-набор (буферный
// канал индексов) и реестры конвертов воркеров; всем владеет Supervisor.
type Supervisor struct {
	transport    engine.Transport
	poolSize     int
	staticConfig json.RawMessage
	verbosity    string
	initTimeout  time.Duration
	batchTimeout time.Duration
	rebuildLimit int
	memory       *MemoryMonitor
	logger       *slog.Logger

	// workers создаётся один раз при инициализации; индексы стабильны.
	workers []*workerSlot

	// idle — набор свободных индексов. Ёмкость poolSize: возврат в
	// ротацию никогда не блокируется.
	idle chan int

	// closed закрывается в Terminate.
	closed chan struct{}

	// allDead закрывается, когда все индексы навсегда выведены из ротации.
	allDead chan struct{}
	retired atomic.Int32

	// Разделяемая инициализация: конкурентные вызовы Initialize ждут
	// один и тот же initDone.
	initMu      sync.Mutex
	initDone    chan struct{}
	initErr     error
	initialized atomic.Bool

	termOnce sync.Once
}

// Config — конфигурация Supervisor.
type Config struct {
	// Transport — транспорт до внешнего движка.
	Transport engine.Transport

	// PoolSize — количество воркеров (default: 4).
	PoolSize int

	// StaticConfig — статическая конфигурация движка; загружается в
	// каждый воркер при старте и после каждого rebuild.
	StaticConfig json.RawMessage

	// Verbosity — уровень подробности движка (best-effort, set-verbosity).
	Verbosity string

	// InitTimeout — дедлайн инициализации одного воркера (default: 30s).
	InitTimeout time.Duration

	// BatchTimeout — дедлайн одного вызова run-batch (default: 2m).
	BatchTimeout time.Duration

	// RebuildLimit — попыток rebuild до вывода индекса из ротации (default: 3).
	RebuildLimit int

	// Memory — монитор давления памяти (опционально; nil корректен).
	Memory *MemoryMonitor

	// Logger — опционально.
	Logger *slog.Logger
}

// New создаёт новый Supervisor. Пул не стартует до вызова Initialize.
func New(cfg Config) *Supervisor {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	initTimeout := cfg.InitTimeout
	if initTimeout <= 0 {
		initTimeout = defaultInitTimeout
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	rebuildLimit := cfg.RebuildLimit
	if rebuildLimit <= 0 {
		rebuildLimit = defaultRebuildLimit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		transport:    cfg.Transport,
		poolSize:     poolSize,
		staticConfig: cfg.StaticConfig,
		verbosity:    cfg.Verbosity,
		initTimeout:  initTimeout,
		batchTimeout: batchTimeout,
		rebuildLimit: rebuildLimit,
		memory:       cfg.Memory,
		logger:       logger,
		idle:         make(chan int, poolSize),
		closed:       make(chan struct{}),
		allDead:      make(chan struct{}),
	}
}

// Initialize поднимает пул: poolSize воркеров, каждый с загруженным
// движком и статической конфигурацией.
//
// Идемпотентен: конкурентные вызовы разделяют один реальный запуск и
// возвращают его результат. Разрешается только когда каждый воркер
// подтвердил готовность, либо отказывает сразу — без частичного пула.
func (s *Supervisor) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	if s.isClosed() && s.initDone == nil {
		// Terminate уже прошёл и стартующей инициализации не застал:
		// новую не начинаем.
		s.initMu.Unlock()
		return ErrPoolShutdown
	}
	if s.initDone == nil {
		s.initDone = make(chan struct{})
		go s.startPool()
	}
	done := s.initDone
	s.initMu.Unlock()

	select {
	case <-done:
		return s.initErr
	case <-s.closed:
		return ErrPoolShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startPool выполняет реальный запуск пула (ровно один раз).
func (s *Supervisor) startPool() {
	defer close(s.initDone)

	s.logger.Info("initializing pool", "pool_size", s.poolSize)
	start := time.Now()

	workers := make([]*workerSlot, s.poolSize)
	errs := make([]error, s.poolSize)

	var wg sync.WaitGroup
	for i := range workers {
		workers[i] = newWorkerSlot(i, s.logger)

		wg.Add(1)
		go func(w *workerSlot) {
			defer wg.Done()
			errs[w.index] = s.startWorker(w)
		}(workers[i])
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		// Fail fast: частичный пул не оставляем.
		for _, w := range workers {
			if conn := w.takeConn(domain.WorkerTerminated); conn != nil {
				conn.Close()
			}
		}
		s.initErr = fmt.Errorf("pool initialization failed: %w", err)
		s.logger.Error("pool initialization failed", "error", s.initErr)
		return
	}

	s.workers = workers
	for i := range workers {
		s.idle <- i
	}
	s.initialized.Store(true)
	telemetry.PoolWorkers.Set(float64(s.poolSize))

	if s.memory != nil {
		go s.memory.Run(s.closed)
	}

	s.logger.Info("pool initialized",
		"workers", s.poolSize,
		"duration", time.Since(start),
	)
}

// startWorker открывает контекст исполнения и подготавливает движок:
// init-engine, load-config, set-verbosity. Используется и при старте
// пула, и при rebuild после падения.
func (s *Supervisor) startWorker(w *workerSlot) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.initTimeout)
	defer cancel()

	conn, err := s.transport.Open(ctx, w.index)
	if err != nil {
		return fmt.Errorf("worker %d: open transport: %w", w.index, err)
	}

	w.setConn(conn, domain.WorkerStarting)

	go s.receiveLoop(w, conn)
	go s.watchFaults(w, conn)

	if _, err := w.call(ctx, protocol.KindInitEngine, nil, s.initTimeout, nil); err != nil {
		s.dropConn(w)
		return fmt.Errorf("worker %d: init engine: %w", w.index, err)
	}

	if len(s.staticConfig) > 0 {
		payload := protocol.LoadConfigPayload{Config: s.staticConfig}
		if _, err := w.call(ctx, protocol.KindLoadConfig, payload, s.initTimeout, nil); err != nil {
			s.dropConn(w)
			return fmt.Errorf("worker %d: load static config: %w", w.index, err)
		}
	}

	if s.verbosity != "" {
		w.notify(protocol.KindSetVerbosity, protocol.SetVerbosityPayload{Level: s.verbosity})
	}

	w.setState(domain.WorkerReady)
	return nil
}

// dropConn закрывает и изымает соединение слота после неудачного старта.
func (s *Supervisor) dropConn(w *workerSlot) {
	if conn := w.takeConn(domain.WorkerCrashed); conn != nil {
		conn.Close()
	}
}

// receiveLoop маршрутизирует ответы движка в реестр конвертов воркера.
// Живёт, пока живо поколение соединения.
func (s *Supervisor) receiveLoop(w *workerSlot, conn engine.Conn) {
	for msg := range conn.Messages() {
		w.pending.dispatch(msg)
	}
}

// watchFaults ждёт сигнала гибели контекста исполнения.
func (s *Supervisor) watchFaults(w *workerSlot, conn engine.Conn) {
	fault, ok := <-conn.Faults()
	if !ok {
		return
	}
	s.onWorkerFault(w, fault)
}

// onWorkerFault обрабатывает падение воркера: отклоняет все привязанные
// конверты восстановимой ошибкой и асинхронно перестраивает индекс.
//
// Ретрай упавших батчей — ответственность вызывающего уровня (runner),
// не супервизора: это исключает скрытые бесконечные циклы ретраев.
func (s *Supervisor) onWorkerFault(w *workerSlot, cause error) {
	w.recordCrash()
	telemetry.WorkerCrashes.Inc()

	if conn := w.takeConn(domain.WorkerCrashed); conn != nil {
		conn.Close()
	}

	w.pending.failAll(fmt.Errorf("%w: %v", ErrWorkerCrashed, cause))

	s.logger.Warn("worker crashed", "worker", w.index, "cause", cause)

	// До завершения инициализации сбой всплывает через отказ init-вызова;
	// после Terminate восстанавливать нечего.
	if !s.initialized.Load() || s.isClosed() {
		return
	}

	// Максимум один rebuild на индекс.
	if !w.rebuilding.CompareAndSwap(false, true) {
		return
	}

	go s.rebuildWorker(w)
}

// rebuildWorker перестраивает контекст исполнения на том же индексе:
// новое соединение, движок заново инициализирован, статическая
// конфигурация перезагружена, обработчики перепривязаны. Индекс
// возвращается в idle-набор только после успешного rebuild; после
// исчерпания попыток — навсегда выводится из ротации.
func (s *Supervisor) rebuildWorker(w *workerSlot) {
	defer w.rebuilding.Store(false)

	delay := rebuildBaseDelay

	for attempt := 1; attempt <= s.rebuildLimit; attempt++ {
		if s.isClosed() {
			return
		}

		err := s.startWorker(w)
		if err == nil {
			// Terminate мог пройти, пока соединение открывалось: его
			// обход слотов этот контекст не застал, уничтожаем здесь.
			if s.isClosed() {
				if conn := w.takeConn(domain.WorkerTerminated); conn != nil {
					conn.Close()
				}
				return
			}
			telemetry.WorkerRebuilds.Inc()
			s.logger.Info("worker rebuilt", "worker", w.index, "attempt", attempt)
			s.enqueueIdle(w.index)
			return
		}

		s.logger.Error("worker rebuild failed",
			"worker", w.index,
			"attempt", attempt,
			"error", err,
		)

		if attempt < s.rebuildLimit {
			select {
			case <-s.closed:
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, rebuildMaxDelay)
		}
	}

	// Без бесконечных ретраев: индекс выбывает до конца жизни пула.
	w.setState(domain.WorkerTerminated)
	telemetry.WorkersRetired.Inc()
	s.logger.Error("worker permanently retired", "worker", w.index)

	if int(s.retired.Add(1)) == s.poolSize {
		close(s.allDead)
	}
}

// acquireWorker возвращает свободного воркера либо ставит вызывающего
// в очередь. Запрос никогда не теряется молча: исходы — воркер,
// ErrPoolShutdown, ErrNoWorkers или отмена контекста.
func (s *Supervisor) acquireWorker(ctx context.Context) (*workerSlot, error) {
	if !s.initialized.Load() {
		return nil, ErrPoolNotInitialized
	}

	for {
		// Остановка пула имеет приоритет: select ниже выбирает между
		// готовыми ветками случайно.
		if s.isClosed() {
			return nil, ErrPoolShutdown
		}

		select {
		case idx := <-s.idle:
			w := s.workers[idx]
			// Воркер мог упасть, пока его индекс стоял в idle-наборе:
			// устаревшая запись пропускается, rebuild вернёт индекс сам.
			if !w.casState(domain.WorkerReady, domain.WorkerBusy) {
				continue
			}
			return w, nil

		case <-s.closed:
			return nil, ErrPoolShutdown

		case <-s.allDead:
			return nil, ErrNoWorkers

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// releaseWorker возвращает воркера в idle-набор и тем самым немедленно
// отдаёт его следующему ожидающему. Переход только BUSY → READY:
// упавший или выведенный из ротации воркер не может вернуться этим путём.
func (s *Supervisor) releaseWorker(w *workerSlot) {
	if !w.casState(domain.WorkerBusy, domain.WorkerReady) {
		return
	}
	s.enqueueIdle(w.index)
}

// enqueueIdle кладёт индекс в idle-набор. После остановки пула индекс
// не возвращается: drain в Terminate уже прошёл.
func (s *Supervisor) enqueueIdle(idx int) {
	if s.isClosed() {
		return
	}
	select {
	case s.idle <- idx:
	case <-s.closed:
	}
}

// Terminate останавливает пул: отклоняет все невыполненные конверты
// ошибкой ErrPoolShutdown, best-effort уведомляет каждого воркера
// (cleanup) и уничтожает контексты исполнения.
//
// Безопасен, даже если Initialize никогда не завершился. Идемпотентен.
func (s *Supervisor) Terminate() {
	s.termOnce.Do(func() {
		close(s.closed)

		// Дожидаемся исхода стартующей инициализации: её воркеры тоже
		// должны быть уничтожены.
		s.initMu.Lock()
		started := s.initDone
		s.initMu.Unlock()
		if started != nil {
			<-started
		}

		outstanding := 0
		for _, w := range s.workers {
			outstanding += w.pending.len()
			w.pending.failAll(ErrPoolShutdown)

			w.notify(protocol.KindCleanup, nil)

			if conn := w.takeConn(domain.WorkerTerminated); conn != nil {
				conn.Close()
			}
		}

		// Опустошаем idle-набор: болтающихся ссылок не остаётся.
		for {
			select {
			case <-s.idle:
				continue
			default:
			}
			break
		}

		telemetry.PoolWorkers.Set(0)
		s.logger.Info("pool terminated", "rejected_envelopes", outstanding)
	})
}

// isClosed проверяет, остановлен ли пул.
func (s *Supervisor) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Initialized возвращает true после успешной инициализации.
func (s *Supervisor) Initialized() bool {
	return s.initialized.Load()
}

// Stats возвращает снимок статистики пула.
func (s *Supervisor) Stats() domain.PoolStats {
	stats := domain.PoolStats{
		PoolSize:       s.poolSize,
		Initialized:    s.initialized.Load(),
		RetiredWorkers: int(s.retired.Load()),
	}

	for _, w := range s.workers {
		stats.Workers = append(stats.Workers, w.stats())
	}

	return stats
}
