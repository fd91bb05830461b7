// Package engine предоставляет транспорты до внешнего симуляционного движка.
//
// Движок — непрозрачный внешний компонент; диспетчер общается с ним
// исключительно сообщениями пакета protocol. Каждый compute worker пула
// владеет одним изолированным контекстом исполнения движка, представленным
// значением Conn.
//
// Транспорты:
//   - ProcTransport — один OS-процесс движка на воркера; протокол с
//     префиксом длины поверх stdin/stdout; выход процесса — сигнал fault.
//   - AMQPTransport — удалённые экземпляры движка за RabbitMQ; очередь
//     запросов на воркера и эксклюзивная reply-очередь; закрытие канала —
//     сигнал fault.
//
// Fault — асинхронный сигнал гибели контекста исполнения, отличный от
// обычного ответа error: он означает, что сам контекст мёртв и должен
// быть перестроен супервизором пула.
package engine
