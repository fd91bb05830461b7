package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/shaiso/Simulo/internal/protocol"
)

// ProcTransport запускает по одному OS-процессу движка на воркера.
// Сообщения ходят через stdin/stdout процесса с фреймингом protocol;
// stderr процесса прозрачно уходит в stderr диспетчера.
type ProcTransport struct {
	// Command — путь к исполняемому файлу движка.
	Command string

	// Args — аргументы запуска.
	Args []string

	// Logger — опционально; если nil, используется slog.Default().
	Logger *slog.Logger
}

// Open запускает новый процесс движка для воркера.
func (t *ProcTransport) Open(ctx context.Context, workerIndex int) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(t.Command, t.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine process: %w", err)
	}

	c := &procConn{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
		msgs:   make(chan *protocol.Message, 16),
		faults: make(chan error, 1),
		logger: logger.With("worker", workerIndex, "pid", cmd.Process.Pid),
	}

	go c.readLoop()
	go c.waitLoop()

	c.logger.Debug("engine process started")

	return c, nil
}

// procConn — соединение с процессом движка.
type procConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	logger *slog.Logger

	writeMu sync.Mutex
	msgs    chan *protocol.Message
	faults  chan error

	closeOnce sync.Once
	closed    atomic.Bool
}

// Send пишет одно сообщение в stdin процесса.
func (c *procConn) Send(msg *protocol.Message) error {
	if c.closed.Load() {
		return errors.New("connection closed")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return protocol.WriteMessage(c.stdin, msg)
}

// Messages возвращает поток ответов движка.
func (c *procConn) Messages() <-chan *protocol.Message {
	return c.msgs
}

// Faults возвращает сигнал гибели процесса.
func (c *procConn) Faults() <-chan error {
	return c.faults
}

// Close убивает процесс движка. Идемпотентен.
func (c *procConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.stdin.Close()
		if c.cmd.Process != nil {
			c.cmd.Process.Kill()
		}
	})
	return nil
}

// readLoop читает фреймы из stdout до ошибки или EOF.
func (c *procConn) readLoop() {
	defer close(c.msgs)

	for {
		msg, err := protocol.ReadMessage(c.reader)
		if err != nil {
			if err != io.EOF && !c.closed.Load() {
				c.logger.Debug("engine stream read failed", "error", err)
			}
			// гибель процесса сигнализирует waitLoop
			return
		}
		c.msgs <- msg
	}
}

// waitLoop ждёт выхода процесса и доставляет fault, если процесс
// умер сам, а не был закрыт через Close. Канал faults закрывается
// в любом случае, чтобы получатели не зависали после Close.
func (c *procConn) waitLoop() {
	defer close(c.faults)

	err := c.cmd.Wait()
	if c.closed.Load() {
		return
	}

	if err != nil {
		err = fmt.Errorf("engine process exited: %w", err)
	} else {
		err = errors.New("engine process exited unexpectedly")
	}

	select {
	case c.faults <- err:
	default:
	}
}
