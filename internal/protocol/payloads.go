package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shaiso/Simulo/internal/domain"
)

// LoadConfigPayload — payload запроса load-config.
type LoadConfigPayload struct {
	// Config — статическая конфигурация движка (непрозрачна для диспетчера).
	Config json.RawMessage `json:"config"`
}

// SetVerbosityPayload — payload запроса set-verbosity.
type SetVerbosityPayload struct {
	Level string `json:"level"`
}

// RunBatchPayload — payload запроса run-batch.
type RunBatchPayload struct {
	InitialState json.RawMessage `json:"initial_state"`
	Events       json.RawMessage `json:"events,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`

	// RunCount — количество прогонов в батче.
	RunCount int `json:"run_count"`

	// StartIndex — глобальный индекс первого прогона батча.
	StartIndex int `json:"start_index"`
}

// ProgressPayload — payload ответа progress: частичное выполнение батча.
type ProgressPayload struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ResultPayload — payload ответа result: итог выполнения батча.
type ResultPayload struct {
	// Records — по одной записи на каждый прогон батча, каждая несёт
	// свой исходный run_index.
	Records []domain.ResultRecord `json:"records"`
}

// ErrorPayload — payload ответа error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeProgress строго парсит payload progress-сообщения.
func DecodeProgress(msg *Message) (ProgressPayload, error) {
	var p ProgressPayload
	if err := decodeStrict(msg.Payload, &p); err != nil {
		return p, fmt.Errorf("progress payload: %w", err)
	}
	if p.Completed < 0 || p.Total < 0 || p.Completed > p.Total {
		return p, fmt.Errorf("progress payload out of range: %d/%d", p.Completed, p.Total)
	}
	return p, nil
}

// DecodeResult строго парсит payload result-сообщения и сверяет его
// с ожидаемым батчем: ровно batch.Size записей, каждая с run_index
// внутри диапазона батча, без дубликатов.
func DecodeResult(raw json.RawMessage, batch domain.WorkBatch) ([]domain.ResultRecord, error) {
	var p ResultPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, fmt.Errorf("result payload: %w", err)
	}

	if len(p.Records) != batch.Size {
		return nil, fmt.Errorf("result payload has %d records, batch expects %d", len(p.Records), batch.Size)
	}

	seen := make(map[int]bool, len(p.Records))
	for i := range p.Records {
		rec := &p.Records[i]
		if !batch.Contains(rec.RunIndex) {
			return nil, fmt.Errorf("record run_index %d outside batch [%d, %d)", rec.RunIndex, batch.StartIndex, batch.EndIndex())
		}
		if seen[rec.RunIndex] {
			return nil, fmt.Errorf("duplicate run_index %d in result payload", rec.RunIndex)
		}
		seen[rec.RunIndex] = true
	}

	return p.Records, nil
}

// DecodeError строго парсит payload error-сообщения.
func DecodeError(msg *Message) (ErrorPayload, error) {
	var p ErrorPayload
	if err := decodeStrict(msg.Payload, &p); err != nil {
		return p, fmt.Errorf("error payload: %w", err)
	}
	if p.Message == "" {
		p.Message = "engine reported an unspecified error"
	}
	return p, nil
}

// decodeStrict парсит JSON, отклоняя отсутствующий payload.
// Неизвестные поля допустимы (forward compatibility), но сам payload
// обязан быть валидным JSON-объектом ожидаемой формы.
func decodeStrict(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	return nil
}
