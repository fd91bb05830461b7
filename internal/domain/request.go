package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxRunCount — верхняя граница количества прогонов в одном запросе.
const MaxRunCount = 100000

// SimulationRequest — запрос на выполнение N независимых стохастических
// прогонов. Содержимое InitialState, Events и Config непрозрачно для
// диспетчера и передаётся движку как есть.
type SimulationRequest struct {
	// InitialState — начальное состояние модели.
	InitialState json.RawMessage `json:"initial_state"`

	// Events — события, влияющие на траекторию симуляции.
	Events json.RawMessage `json:"events,omitempty"`

	// Config — конфигурация движка для этого запроса.
	Config json.RawMessage `json:"config,omitempty"`

	// RunCount — количество независимых прогонов (N).
	RunCount int `json:"run_count"`
}

// Validate проверяет корректность запроса.
func (r *SimulationRequest) Validate() error {
	if r.RunCount < 1 {
		return errors.New("run_count must be at least 1")
	}
	if r.RunCount > MaxRunCount {
		return fmt.Errorf("run_count exceeds maximum %d", MaxRunCount)
	}
	if len(r.InitialState) == 0 {
		return errors.New("initial_state is required")
	}
	return nil
}
