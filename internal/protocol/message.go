package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind — тип сообщения протокола.
type Kind string

// Запросы диспетчера к движку.
const (
	KindInitEngine   Kind = "init-engine"
	KindLoadConfig   Kind = "load-config"
	KindRunBatch     Kind = "run-batch"
	KindSetVerbosity Kind = "set-verbosity"
	KindCleanup      Kind = "cleanup"
)

// Ответы движка.
const (
	KindReady    Kind = "ready"
	KindProgress Kind = "progress"
	KindResult   Kind = "result"
	KindError    Kind = "error"
)

// IsTerminal возвращает true, если сообщение этого типа закрывает вызов.
func (k Kind) IsTerminal() bool {
	switch k {
	case KindReady, KindResult, KindError:
		return true
	default:
		return false
	}
}

// Message — конверт сообщения.
//
// У запроса ID генерируется заново; ответ обязан нести ID запроса,
// на который отвечает. Ответ с неизвестным ID молча отбрасывается
// принимающей стороной (поздний или дублированный ответ).
type Message struct {
	// ID — уникальный идентификатор вызова.
	ID string `json:"id"`

	// Kind — тип сообщения.
	Kind Kind `json:"kind"`

	// Payload — полезная нагрузка.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт запрос со свежим ID.
func NewMessage(kind Kind, payload any) (*Message, error) {
	msg := &Message{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		msg.Payload = data
	}

	return msg, nil
}

// Reply создаёт ответ на запрос с данным ID.
func Reply(requestID string, kind Kind, payload any) (*Message, error) {
	msg, err := NewMessage(kind, payload)
	if err != nil {
		return nil, err
	}
	msg.ID = requestID
	return msg, nil
}
