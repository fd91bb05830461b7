package engine

import (
	"context"

	"github.com/shaiso/Simulo/internal/protocol"
)

// Conn — соединение с одним изолированным контекстом исполнения движка.
//
// Контракт:
//   - Send не блокируется в ожидании ответа; ответы приходят в Messages.
//   - Messages закрывается после Close или гибели контекста.
//   - Faults доставляет не более одного сигнала на время жизни соединения
//     и только до Close: гибель контекста после явного Close не считается
//     сбоем. Канал закрывается после Close либо после доставки сигнала,
//     поэтому получатель никогда не блокируется навсегда.
type Conn interface {
	// Send отправляет сообщение движку.
	Send(msg *protocol.Message) error

	// Messages — поток ответных сообщений движка.
	Messages() <-chan *protocol.Message

	// Faults — асинхронный сигнал гибели контекста исполнения.
	Faults() <-chan error

	// Close уничтожает контекст исполнения. Идемпотентен.
	Close() error
}

// Transport создаёт изолированные контексты исполнения движка.
// Один Transport обслуживает весь пул; Open вызывается на каждый воркер
// и повторно при каждом rebuild после падения.
type Transport interface {
	Open(ctx context.Context, workerIndex int) (Conn, error)
}
