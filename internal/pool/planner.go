package pool

import "github.com/shaiso/Simulo/internal/domain"

// Пороговые значения планировщика батчей.
const (
	// smallRunThreshold — до этого N работа делится поровну между воркерами.
	smallRunThreshold = 10

	// mediumRunThreshold — до этого N размер батча держится в [5, 10].
	mediumRunThreshold = 50

	// minBatchSize и maxBatchSize ограничивают размер батча при больших N:
	// верхняя граница сдерживает пиковую память одного round trip и
	// сохраняет мелкую гранулярность прогресса.
	minBatchSize = 1
	maxBatchSize = 10

	// minMediumBatchSize — нижняя граница в среднем диапазоне.
	minMediumBatchSize = 5
)

// PlanBatches разбивает n прогонов на батчи для пула из poolSize воркеров.
//
// suggested — эвристический сигнал бюджета памяти: рекомендованный размер
// батча от монитора давления памяти. Сигнал влияет только на размер
// батчей, никогда на покрытие: объединение батчей всегда в точности
// покрывает [0, n) без перекрытий и дыр.
//
// Батчи раздаются воркерам динамически: освободившийся воркер берёт
// следующий неназначенный батч, поэтому один медленный воркер не
// доминирует во времени выполнения.
func PlanBatches(n, poolSize, suggested int) []domain.WorkBatch {
	if n <= 0 || poolSize <= 0 {
		return nil
	}

	size := batchSize(n, poolSize, suggested)

	batches := make([]domain.WorkBatch, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		b := domain.WorkBatch{StartIndex: start, Size: size}
		if b.EndIndex() > n {
			b.Size = n - start
		}
		batches = append(batches, b)
	}

	return batches
}

// batchSize выбирает размер батча по величине запроса и сигналу памяти.
func batchSize(n, poolSize, suggested int) int {
	switch {
	case n <= smallRunThreshold:
		// Один батч на воркера.
		return (n + poolSize - 1) / poolSize

	case n <= mediumRunThreshold:
		return clamp(suggested, minMediumBatchSize, maxBatchSize)

	default:
		return clamp(suggested, minBatchSize, maxBatchSize)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
