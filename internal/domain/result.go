package domain

import "encoding/json"

// ResultRecord — канонический результат одного прогона.
//
// Завершённый запрос всегда содержит ровно N записей: прогоны из батчей,
// которые так и не удалось выполнить, представлены синтетическими записями
// с Succeeded=false и заполненным Error. Downstream-статистика тем самым
// всегда считается по фиксированной, полной популяции.
type ResultRecord struct {
	// RunIndex — исходный индекс прогона в диапазоне [0, N).
	RunIndex int `json:"run_index"`

	// Succeeded — признак успешного завершения прогона.
	Succeeded bool `json:"succeeded"`

	// Error — причина неудачи (только при Succeeded=false).
	Error string `json:"error,omitempty"`

	// Outcome — непрозрачный результат движка (только при Succeeded=true).
	Outcome json.RawMessage `json:"outcome,omitempty"`
}

// FailureRecord создаёт синтетическую запись о неудачном прогоне.
func FailureRecord(runIndex int, reason string) ResultRecord {
	return ResultRecord{
		RunIndex:  runIndex,
		Succeeded: false,
		Error:     reason,
	}
}

// WorkBatch — непрерывный диапазон индексов прогонов, назначаемый одному
// воркеру на один round trip. Батч выполняется и ретраится целиком,
// никогда не дробится.
type WorkBatch struct {
	// StartIndex — индекс первого прогона батча.
	StartIndex int `json:"start_index"`

	// Size — количество прогонов в батче.
	Size int `json:"size"`
}

// EndIndex возвращает индекс за последним прогоном батча (эксклюзивно).
func (b WorkBatch) EndIndex() int {
	return b.StartIndex + b.Size
}

// Contains проверяет, принадлежит ли индекс прогона батчу.
func (b WorkBatch) Contains(runIndex int) bool {
	return runIndex >= b.StartIndex && runIndex < b.EndIndex()
}
