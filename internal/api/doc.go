// Package api содержит HTTP API диспетчера симуляций.
//
// Структура:
//   - handler.go         — Handler с DI (диспетчер, хранилище заданий, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - jobs.go            — in-memory хранилище заданий
//   - sim_handler.go     — обработчики для /simulations
//   - worker_handler.go  — обработчики для /workers
//
// API предоставляет REST endpoints для запуска симуляций, отслеживания
// прогресса, получения результатов и наблюдения за пулом воркеров.
package api
