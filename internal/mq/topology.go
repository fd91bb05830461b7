package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeEngine — обменник запросов к удалённым экземплярам движка.
const ExchangeEngine Exchange = "simulo.engine"

// RequestQueue возвращает имя очереди запросов воркера с данным индексом.
func RequestQueue(workerIndex int) string {
	return fmt.Sprintf("engine.requests.%d", workerIndex)
}

// WorkerRoutingKey возвращает ключ маршрутизации воркера.
func WorkerRoutingKey(workerIndex int) RoutingKey {
	return RoutingKey(fmt.Sprintf("worker.%d", workerIndex))
}

// SetupTopology объявляет exchange движка. Очереди запросов воркеров
// объявляются транспортом при открытии соединения конкретного воркера.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEngine), // name
			"direct",               // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEngine, err)
		}
		return nil
	})
}

// DeclareWorkerQueue объявляет очередь запросов воркера и привязывает её
// к exchange движка. Вызывается транспортом при открытии воркера.
func DeclareWorkerQueue(ch *amqp.Channel, workerIndex int) (string, error) {
	name := RequestQueue(workerIndex)

	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue %s: %w", name, err)
	}

	err = ch.QueueBind(
		name,                                // queue name
		string(WorkerRoutingKey(workerIndex)), // routing key
		string(ExchangeEngine),              // exchange
		false,                               // no-wait
		nil,                                 // arguments
	)
	if err != nil {
		return "", fmt.Errorf("bind queue %s: %w", name, err)
	}

	return name, nil
}

// DeclareReplyQueue объявляет эксклюзивную server-named очередь ответов.
// Очередь живёт ровно столько, сколько живёт канал воркера.
func DeclareReplyQueue(ch *amqp.Channel) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare reply queue: %w", err)
	}
	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Simulo RabbitMQ Topology:

    simulo.engine (direct)
    ├── engine.requests.0 [routing: worker.0]
    ├── engine.requests.1 [routing: worker.1]
    └── ... одна очередь запросов на воркера пула
            Consumer: удалённый экземпляр движка

    reply-очереди: эксклюзивные, server-named, одна на воркера;
    движок отвечает в Publishing.ReplyTo с ID исходного запроса.
  `
}
