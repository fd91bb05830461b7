package pool

import (
	"context"
	"errors"
)

// Ошибки пула.
//
// Таксономия:
//   - ErrValidation — некорректный запрос или некорректный ответ движка;
//     никогда не ретраится автоматически, всегда всплывает.
//   - ErrTimeout — вызов превысил дедлайн; воркер возвращается в ротацию,
//     батч пригоден для ретрая.
//   - ErrWorkerCrashed — контекст исполнения погиб; запускается rebuild,
//     привязанные батчи ретраит вызывающий уровень.
//   - ErrPoolShutdown — Terminate вызван при невыполненных запросах.
var (
	// ErrValidation — запрос или ответ движка не прошёл валидацию.
	ErrValidation = errors.New("validation failed")

	// ErrTimeout — вызов превысил дедлайн.
	ErrTimeout = errors.New("call deadline exceeded")

	// ErrWorkerCrashed — контекст исполнения воркера погиб.
	ErrWorkerCrashed = errors.New("worker crashed")

	// ErrPoolShutdown — пул остановлен.
	ErrPoolShutdown = errors.New("pool terminated")

	// ErrPoolNotInitialized — Initialize не вызывался или не завершился успешно.
	ErrPoolNotInitialized = errors.New("pool not initialized")

	// ErrNoWorkers — все воркеры навсегда выведены из ротации.
	ErrNoWorkers = errors.New("no workers available")

	// ErrEngineFailure — движок вернул терминальный ответ error.
	// Детерминированная ошибка выполнения, не ретраится.
	ErrEngineFailure = errors.New("engine reported failure")

	// ErrDuplicateEnvelope — конверт с таким ID уже зарегистрирован.
	ErrDuplicateEnvelope = errors.New("duplicate envelope id")
)

// retriable определяет, пригоден ли батч для ретрая после этой ошибки.
// Ретраятся только восстановимые сбои: таймаут и падение воркера.
func retriable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrWorkerCrashed)
}

// errorIsCrash определяет, погиб ли контекст исполнения воркера.
func errorIsCrash(err error) bool {
	return errors.Is(err, ErrWorkerCrashed)
}

// systemic определяет, является ли ошибка системной: такие ошибки
// отклоняют весь запрос, а не один батч.
func systemic(err error) bool {
	return errors.Is(err, ErrPoolShutdown) ||
		errors.Is(err, ErrPoolNotInitialized) ||
		errors.Is(err, ErrNoWorkers) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
