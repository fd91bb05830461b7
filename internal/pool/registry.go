package pool

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Simulo/internal/protocol"
)

// envelope — учётная запись одного исходящего вызова (task envelope).
//
// Создаётся при отправке запроса конкретному воркеру и уничтожается по
// терминальному ответу, по дедлайну или при отстреле всех конвертов
// воркера (crash, terminate). Progress-ответы не закрывают конверт.
type envelope struct {
	id   string
	kind protocol.Kind

	// done — терминальный исход; буфер 1, settle никогда не блокируется.
	done chan outcome

	// progress — опциональный обработчик частичного выполнения.
	progress func(protocol.ProgressPayload)
}

// outcome — терминальный исход вызова.
type outcome struct {
	payload json.RawMessage
	err     error
}

// registry — реестр корреляции: сопоставляет ID невыполненных вызовов
// с их конвертами. По одному реестру на воркера; записи изменяются
// только путём вызова и приёмным циклом этого воркера.
type registry struct {
	mu      sync.Mutex
	pending map[string]*envelope
	logger  *slog.Logger
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		pending: make(map[string]*envelope),
		logger:  logger,
	}
}

// add регистрирует конверт. ID обязан быть уникальным среди невыполненных.
func (r *registry) add(env *envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[env.id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEnvelope, env.id)
	}

	r.pending[env.id] = env
	return nil
}

// remove снимает конверт с учёта (дедлайн, отмена). Поздний ответ на
// снятый конверт отбрасывается по пути unknown-id.
func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
}

// len возвращает количество невыполненных вызовов.
func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// dispatch маршрутизирует один ответ движка.
//
// Контракт обработки:
//   - неизвестный ID → молча игнорируется (поздний/дублированный ответ)
//   - progress → вызывается только progress-обработчик; конверт открыт
//   - result/ready → конверт закрывается успехом (payload валидирует вызывающий)
//   - error → конверт закрывается ErrEngineFailure с текстом движка
func (r *registry) dispatch(msg *protocol.Message) {
	r.mu.Lock()
	env, known := r.pending[msg.ID]
	if known && msg.Kind.IsTerminal() {
		delete(r.pending, msg.ID)
	}
	r.mu.Unlock()

	if !known {
		r.logger.Debug("response for unknown envelope ignored",
			"message_id", msg.ID,
			"kind", msg.Kind,
		)
		return
	}

	switch msg.Kind {
	case protocol.KindProgress:
		p, err := protocol.DecodeProgress(msg)
		if err != nil {
			// Кривой progress не закрывает конверт: терминальный ответ
			// ещё может прийти корректным.
			r.logger.Warn("malformed progress ignored", "message_id", msg.ID, "error", err)
			return
		}
		if env.progress != nil {
			env.progress(p)
		}

	case protocol.KindReady, protocol.KindResult:
		env.settle(outcome{payload: msg.Payload})

	case protocol.KindError:
		p, decodeErr := protocol.DecodeError(msg)
		if decodeErr != nil {
			env.settle(outcome{err: fmt.Errorf("%w: %v", ErrValidation, decodeErr)})
			return
		}
		env.settle(outcome{err: fmt.Errorf("%w: %s", ErrEngineFailure, p.Message)})

	default:
		r.logger.Warn("unexpected message kind from engine",
			"message_id", msg.ID,
			"kind", msg.Kind,
		)
	}
}

// failAll закрывает все невыполненные конверты одной ошибкой
// (падение воркера, terminate пула) и очищает реестр.
func (r *registry) failAll(err error) {
	r.mu.Lock()
	envs := make([]*envelope, 0, len(r.pending))
	for _, env := range r.pending {
		envs = append(envs, env)
	}
	r.pending = make(map[string]*envelope)
	r.mu.Unlock()

	for _, env := range envs {
		env.settle(outcome{err: err})
	}
}

// settle доставляет терминальный исход. Неблокирующий: done имеет буфер 1,
// а конверт закрывается не более одного раза (повторный settle после
// remove невозможен — конверт уже снят с учёта).
func (e *envelope) settle(out outcome) {
	select {
	case e.done <- out:
	default:
	}
}
