package pool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Simulo/internal/domain"
	"github.com/shaiso/Simulo/internal/engine"
	"github.com/shaiso/Simulo/internal/protocol"
)

// fakeHandler reacts to a message sent to a fake engine connection.
type fakeHandler func(c *fakeConn, msg *protocol.Message)

// fakeTransport is an in-memory engine.Transport for pool tests.
type fakeTransport struct {
	mu       sync.Mutex
	handler  fakeHandler
	conns    map[int][]*fakeConn
	openErrs map[int]int
	opens    int

	// openGate, if set, blocks every Open after the first gateAfter
	// calls until the gate channel is closed.
	openGate  chan struct{}
	gateAfter int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handler:  echoEngine,
		conns:    make(map[int][]*fakeConn),
		openErrs: make(map[int]int),
	}
}

func (t *fakeTransport) Open(_ context.Context, workerIndex int) (engine.Conn, error) {
	t.mu.Lock()
	t.opens++
	gate := t.openGate
	gated := gate != nil && t.opens > t.gateAfter
	t.mu.Unlock()

	if gated {
		<-gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n := t.openErrs[workerIndex]; n > 0 {
		t.openErrs[workerIndex] = n - 1
		return nil, errors.New("transport open refused")
	}

	c := &fakeConn{
		index:   workerIndex,
		handler: t.handler,
		msgs:    make(chan *protocol.Message, 64),
		faults:  make(chan error, 1),
	}
	t.conns[workerIndex] = append(t.conns[workerIndex], c)
	return c, nil
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

func (t *fakeTransport) latest(workerIndex int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	conns := t.conns[workerIndex]
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

// fakeConn is a single in-memory engine connection.
type fakeConn struct {
	index   int
	handler fakeHandler
	msgs    chan *protocol.Message
	faults  chan error

	mu     sync.Mutex
	closed bool
	sent   []*protocol.Message
}

func (c *fakeConn) Send(msg *protocol.Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("connection closed")
	}
	c.sent = append(c.sent, msg)
	c.mu.Unlock()

	if c.handler != nil {
		go c.handler(c, msg)
	}
	return nil
}

func (c *fakeConn) Messages() <-chan *protocol.Message { return c.msgs }
func (c *fakeConn) Faults() <-chan error               { return c.faults }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.msgs)
		close(c.faults)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// deliver pushes a message to the dispatcher side unless the connection
// is closed. The msgs channel is buffered; tests never fill it.
func (c *fakeConn) deliver(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.msgs <- msg
}

// crash simulates the death of the execution context.
func (c *fakeConn) crash(err error) {
	c.mu.Lock()
	alreadyClosed := c.closed
	if !c.closed {
		c.closed = true
		close(c.msgs)
	}
	c.mu.Unlock()

	if !alreadyClosed {
		c.faults <- err
		close(c.faults)
	}
}

// echoEngine is the default well-behaved engine: acknowledges setup
// requests and completes every batch successfully.
func echoEngine(c *fakeConn, msg *protocol.Message) {
	switch msg.Kind {
	case protocol.KindInitEngine, protocol.KindLoadConfig:
		reply, _ := protocol.Reply(msg.ID, protocol.KindReady, nil)
		c.deliver(reply)

	case protocol.KindRunBatch:
		var p protocol.RunBatchPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		records := make([]domain.ResultRecord, 0, p.RunCount)
		for i := 0; i < p.RunCount; i++ {
			records = append(records, domain.ResultRecord{
				RunIndex:  p.StartIndex + i,
				Succeeded: true,
				Outcome:   json.RawMessage(`{"final_balance":100}`),
			})
		}
		reply, _ := protocol.Reply(msg.ID, protocol.KindResult, protocol.ResultPayload{Records: records})
		c.deliver(reply)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSupervisor(tr *fakeTransport, poolSize int) *Supervisor {
	return New(Config{
		Transport:    tr,
		PoolSize:     poolSize,
		StaticConfig: json.RawMessage(`{"inflation":0.02}`),
		InitTimeout:  2 * time.Second,
		BatchTimeout: 2 * time.Second,
		Logger:       testLogger(),
	})
}

func testRequest(runs int) domain.SimulationRequest {
	return domain.SimulationRequest{
		InitialState: json.RawMessage(`{"accounts":[{"balance":1000}]}`),
		Events:       json.RawMessage(`[{"kind":"deposit","amount":50}]`),
		RunCount:     runs,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
