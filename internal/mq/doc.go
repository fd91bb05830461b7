// Package mq предоставляет инфраструктуру RabbitMQ для удалённого
// транспорта движка.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchange и очередей запросов воркеров
//
// Топология:
//   - simulo.engine (direct) — exchange запросов к движку
//   - engine.requests.<N>    — очередь запросов воркера N [routing: worker.<N>]
//   - reply-очереди          — эксклюзивные, server-named, одна на соединение
//     воркера; имя передаётся в Publishing.ReplyTo
package mq
