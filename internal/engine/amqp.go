package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Simulo/internal/mq"
	"github.com/shaiso/Simulo/internal/protocol"
)

// AMQPTransport соединяет пул с удалёнными экземплярами движка через
// RabbitMQ. Запросы публикуются в очередь engine.requests.<N>; ответы
// приходят в эксклюзивную reply-очередь соединения (имя передаётся в
// Publishing.ReplyTo вместе с ID запроса).
type AMQPTransport struct {
	// Conn — разделяемое AMQP соединение.
	Conn *mq.Connection

	// Logger — опционально; если nil, используется slog.Default().
	Logger *slog.Logger
}

// Open открывает канал и reply-очередь для воркера.
func (t *AMQPTransport) Open(ctx context.Context, workerIndex int) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch, err := t.Conn.OpenChannel()
	if err != nil {
		return nil, err
	}

	if _, err := mq.DeclareWorkerQueue(ch, workerIndex); err != nil {
		ch.Close()
		return nil, err
	}

	replyQueue, err := mq.DeclareReplyQueue(ch)
	if err != nil {
		ch.Close()
		return nil, err
	}

	deliveries, err := ch.Consume(
		replyQueue, // queue
		"",         // consumer tag (auto-generated)
		true,       // auto-ack (ответы не переигрываются)
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}

	c := &amqpConn{
		ch:          ch,
		workerIndex: workerIndex,
		replyQueue:  replyQueue,
		msgs:        make(chan *protocol.Message, 16),
		faults:      make(chan error, 1),
		logger:      logger.With("worker", workerIndex, "reply_queue", replyQueue),
	}

	go c.receiveLoop(deliveries)
	go c.watchClose(ch.NotifyClose(make(chan *amqp.Error, 1)))

	return c, nil
}

// amqpConn — соединение одного воркера поверх выделенного AMQP канала.
type amqpConn struct {
	ch          *amqp.Channel
	workerIndex int
	replyQueue  string
	logger      *slog.Logger

	msgs   chan *protocol.Message
	faults chan error

	closeOnce sync.Once
	closed    atomic.Bool
}

// Send публикует запрос в очередь воркера.
func (c *amqpConn) Send(msg *protocol.Message) error {
	if c.closed.Load() {
		return errors.New("connection closed")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = c.ch.PublishWithContext(
		context.Background(),
		string(mq.ExchangeEngine),                    // exchange
		string(mq.WorkerRoutingKey(c.workerIndex)),   // routing key
		false,                                        // mandatory
		false,                                        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   msg.ID,
			ReplyTo:     c.replyQueue,
			Timestamp:   msg.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to worker %d: %w", c.workerIndex, err)
	}

	return nil
}

// Messages возвращает поток ответов движка.
func (c *amqpConn) Messages() <-chan *protocol.Message {
	return c.msgs
}

// Faults возвращает сигнал гибели канала.
func (c *amqpConn) Faults() <-chan error {
	return c.faults
}

// Close закрывает канал воркера. Идемпотентен.
func (c *amqpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.ch.Close()
	})
	return nil
}

// receiveLoop преобразует AMQP deliveries в сообщения протокола.
func (c *amqpConn) receiveLoop(deliveries <-chan amqp.Delivery) {
	defer close(c.msgs)

	for d := range deliveries {
		var msg protocol.Message
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			c.logger.Warn("malformed engine reply dropped", "error", err)
			continue
		}
		c.msgs <- &msg
	}
}

// watchClose доставляет fault при закрытии канала не через Close.
// Канал faults закрывается в любом случае.
func (c *amqpConn) watchClose(notify <-chan *amqp.Error) {
	defer close(c.faults)

	err, ok := <-notify
	if !ok || c.closed.Load() {
		return
	}

	fault := fmt.Errorf("engine channel closed: %v", err)
	select {
	case c.faults <- fault:
	default:
	}
}
