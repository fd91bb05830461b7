package pool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Simulo/internal/protocol"
)

func TestRunParallel_EveryRunAccounted(t *testing.T) {
	tr := newFakeTransport()
	s := testSupervisor(tr, 4)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := s.RunParallel(context.Background(), testRequest(37), nil)
	if err != nil {
		t.Fatalf("RunParallel failed: %v", err)
	}

	if len(results) != 37 {
		t.Fatalf("expected 37 results, got %d", len(results))
	}
	for i, rec := range results {
		if rec.RunIndex != i {
			t.Errorf("result %d has run index %d", i, rec.RunIndex)
		}
		if !rec.Succeeded {
			t.Errorf("run %d should have succeeded: %s", i, rec.Error)
		}
	}
}

func TestRunParallel_SingleRun(t *testing.T) {
	tr := newFakeTransport()
	s := testSupervisor(tr, 4)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := s.RunParallel(context.Background(), testRequest(1), nil)
	if err != nil {
		t.Fatalf("RunParallel failed: %v", err)
	}
	if len(results) != 1 || results[0].RunIndex != 0 || !results[0].Succeeded {
		t.Errorf("unexpected single-run result: %+v", results)
	}
}

func TestRunParallel_ProgressMonotonicToN(t *testing.T) {
	tr := newFakeTransport()
	s := testSupervisor(tr, 2)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var mu sync.Mutex
	var reports []int

	_, err := s.RunParallel(context.Background(), testRequest(23), func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != 23 {
			t.Errorf("progress total should be 23, got %d", total)
		}
		reports = append(reports, completed)
	})
	if err != nil {
		t.Fatalf("RunParallel failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reports) == 0 {
		t.Fatal("expected progress reports")
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Errorf("progress went backwards: %v", reports)
		}
	}
	if last := reports[len(reports)-1]; last != 23 {
		t.Errorf("final progress should be 23, got %d", last)
	}
}

func TestRunParallel_InvalidRequestNotDispatched(t *testing.T) {
	tr := newFakeTransport()
	s := testSupervisor(tr, 2)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	opensBefore := tr.openCount()

	_, err := s.RunParallel(context.Background(), testRequest(0), nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if tr.openCount() != opensBefore {
		t.Error("invalid request must not touch the transport")
	}
}

func TestRunParallel_CrashedBatchRetriedOnce(t *testing.T) {
	tr := newFakeTransport()
	var crashed atomic.Bool
	tr.handler = func(c *fakeConn, msg *protocol.Message) {
		if msg.Kind == protocol.KindRunBatch && crashed.CompareAndSwap(false, true) {
			c.crash(errors.New("segfault"))
			return
		}
		echoEngine(c, msg)
	}

	s := testSupervisor(tr, 1)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := s.RunParallel(context.Background(), testRequest(8), nil)
	if err != nil {
		t.Fatalf("RunParallel failed: %v", err)
	}

	for _, rec := range results {
		if !rec.Succeeded {
			t.Errorf("run %d should succeed on retry: %s", rec.RunIndex, rec.Error)
		}
	}
	if s.Stats().Workers[0].Crashes != 1 {
		t.Errorf("expected 1 recorded crash, got %d", s.Stats().Workers[0].Crashes)
	}
}

func TestRunParallel_EngineFailureNotRetried(t *testing.T) {
	tr := newFakeTransport()
	var batchCalls atomic.Int32
	tr.handler = func(c *fakeConn, msg *protocol.Message) {
		if msg.Kind == protocol.KindRunBatch {
			batchCalls.Add(1)
			reply, _ := protocol.Reply(msg.ID, protocol.KindError, protocol.ErrorPayload{Message: "bad scenario"})
			c.deliver(reply)
			return
		}
		echoEngine(c, msg)
	}

	s := testSupervisor(tr, 1)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := s.RunParallel(context.Background(), testRequest(4), nil)
	if err != nil {
		t.Fatalf("engine failure should not fail the whole request: %v", err)
	}

	// Deterministic engine errors get exactly one attempt.
	if calls := batchCalls.Load(); calls != 1 {
		t.Errorf("expected 1 batch attempt, got %d", calls)
	}
	for _, rec := range results {
		if rec.Succeeded {
			t.Errorf("run %d should carry a failure record", rec.RunIndex)
		}
		if !strings.Contains(rec.Error, "bad scenario") {
			t.Errorf("failure record should carry engine message, got %q", rec.Error)
		}
	}
}

func TestRunParallel_MalformedResultRejected(t *testing.T) {
	tr := newFakeTransport()
	tr.handler = func(c *fakeConn, msg *protocol.Message) {
		if msg.Kind == protocol.KindRunBatch {
			// Result with zero records never matches the batch.
			reply, _ := protocol.Reply(msg.ID, protocol.KindResult, protocol.ResultPayload{})
			c.deliver(reply)
			return
		}
		echoEngine(c, msg)
	}

	s := testSupervisor(tr, 1)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := s.RunParallel(context.Background(), testRequest(5), nil)
	if err != nil {
		t.Fatalf("malformed result should degrade to failure records: %v", err)
	}
	for _, rec := range results {
		if rec.Succeeded {
			t.Errorf("run %d should carry a failure record", rec.RunIndex)
		}
	}
}

func TestRunParallel_TimeoutRetriedThenFailureRecords(t *testing.T) {
	tr := newFakeTransport()
	var batchCalls atomic.Int32
	tr.handler = func(c *fakeConn, msg *protocol.Message) {
		if msg.Kind == protocol.KindRunBatch {
			batchCalls.Add(1)
			return // never answers
		}
		echoEngine(c, msg)
	}

	s := New(Config{
		Transport:    tr,
		PoolSize:     1,
		InitTimeout:  time.Second,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       testLogger(),
	})
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := s.RunParallel(context.Background(), testRequest(3), nil)
	if err != nil {
		t.Fatalf("timed-out batch should degrade to failure records: %v", err)
	}

	if calls := batchCalls.Load(); calls != 2 {
		t.Errorf("expected initial attempt plus one retry, got %d", calls)
	}
	for _, rec := range results {
		if rec.Succeeded || rec.Error == "" {
			t.Errorf("run %d should carry a failure record, got %+v", rec.RunIndex, rec)
		}
	}

	// Worker stays in rotation after a timeout.
	if _, err := s.RunParallel(context.Background(), testRequest(1), nil); err != nil {
		t.Fatalf("pool should still accept work after a timeout: %v", err)
	}
}

func TestRunParallel_ContextCancelled(t *testing.T) {
	tr := newFakeTransport()
	tr.handler = func(c *fakeConn, msg *protocol.Message) {
		if msg.Kind == protocol.KindRunBatch {
			return // never answers
		}
		echoEngine(c, msg)
	}

	s := testSupervisor(tr, 1)
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.RunParallel(ctx, testRequest(5), nil)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunParallel did not return after cancellation")
	}
}

func TestRunParallel_LateReplyIgnored(t *testing.T) {
	tr := newFakeTransport()
	tr.handler = func(c *fakeConn, msg *protocol.Message) {
		if msg.Kind == protocol.KindRunBatch {
			// Answers long after the dispatcher gave up waiting.
			time.Sleep(150 * time.Millisecond)
		}
		echoEngine(c, msg)
	}

	s := New(Config{
		Transport:    tr,
		PoolSize:     1,
		InitTimeout:  time.Second,
		BatchTimeout: 30 * time.Millisecond,
		Logger:       testLogger(),
	})
	defer s.Terminate()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := s.RunParallel(context.Background(), testRequest(2), nil)
	if err != nil {
		t.Fatalf("RunParallel failed: %v", err)
	}
	for _, rec := range results {
		if rec.Succeeded {
			t.Errorf("run %d should have timed out", rec.RunIndex)
		}
	}

	// Late replies for abandoned envelopes must be dropped quietly.
	time.Sleep(300 * time.Millisecond)
}
