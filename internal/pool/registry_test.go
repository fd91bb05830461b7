package pool

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shaiso/Simulo/internal/protocol"
)

func newTestEnvelope(id string) *envelope {
	return &envelope{
		id:   id,
		kind: protocol.KindRunBatch,
		done: make(chan outcome, 1),
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	r := newRegistry(testLogger())

	env := newTestEnvelope("a")
	if err := r.add(env); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if r.len() != 1 {
		t.Errorf("expected 1 pending envelope, got %d", r.len())
	}

	r.remove("a")
	if r.len() != 0 {
		t.Errorf("expected empty registry, got %d", r.len())
	}
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := newRegistry(testLogger())

	if err := r.add(newTestEnvelope("a")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := r.add(newTestEnvelope("a")); !errors.Is(err, ErrDuplicateEnvelope) {
		t.Errorf("expected ErrDuplicateEnvelope, got %v", err)
	}
}

func TestRegistry_UnknownIDIgnored(t *testing.T) {
	r := newRegistry(testLogger())

	// Must not panic or block.
	msg, _ := protocol.Reply("nobody", protocol.KindResult, nil)
	r.dispatch(msg)
}

func TestRegistry_ResultSettlesEnvelope(t *testing.T) {
	r := newRegistry(testLogger())
	env := newTestEnvelope("a")
	r.add(env)

	payload := protocol.ResultPayload{}
	msg, _ := protocol.Reply("a", protocol.KindResult, payload)
	r.dispatch(msg)

	select {
	case out := <-env.done:
		if out.err != nil {
			t.Errorf("expected success, got %v", out.err)
		}
		if out.payload == nil {
			t.Error("expected payload")
		}
	default:
		t.Fatal("envelope should be settled")
	}

	if r.len() != 0 {
		t.Error("terminal response should remove the envelope")
	}
}

func TestRegistry_ErrorSettlesWithEngineFailure(t *testing.T) {
	r := newRegistry(testLogger())
	env := newTestEnvelope("a")
	r.add(env)

	msg, _ := protocol.Reply("a", protocol.KindError, protocol.ErrorPayload{Message: "kaput"})
	r.dispatch(msg)

	out := <-env.done
	if !errors.Is(out.err, ErrEngineFailure) {
		t.Errorf("expected ErrEngineFailure, got %v", out.err)
	}
}

func TestRegistry_ProgressDoesNotSettle(t *testing.T) {
	r := newRegistry(testLogger())

	var got protocol.ProgressPayload
	env := newTestEnvelope("a")
	env.progress = func(p protocol.ProgressPayload) { got = p }
	r.add(env)

	msg, _ := protocol.Reply("a", protocol.KindProgress, protocol.ProgressPayload{Completed: 3, Total: 10})
	r.dispatch(msg)

	if got.Completed != 3 || got.Total != 10 {
		t.Errorf("progress callback got %+v", got)
	}
	select {
	case <-env.done:
		t.Error("progress must not settle the envelope")
	default:
	}
	if r.len() != 1 {
		t.Error("envelope should stay pending after progress")
	}
}

func TestRegistry_MalformedProgressIgnored(t *testing.T) {
	r := newRegistry(testLogger())

	env := newTestEnvelope("a")
	env.progress = func(protocol.ProgressPayload) {
		t.Error("malformed progress must not reach the callback")
	}
	r.add(env)

	msg := &protocol.Message{
		ID:      "a",
		Kind:    protocol.KindProgress,
		Payload: json.RawMessage(`{"completed":7,"total":3}`),
	}
	r.dispatch(msg)

	if r.len() != 1 {
		t.Error("envelope should stay pending")
	}
}

func TestRegistry_FailAll(t *testing.T) {
	r := newRegistry(testLogger())

	envs := []*envelope{newTestEnvelope("a"), newTestEnvelope("b"), newTestEnvelope("c")}
	for _, env := range envs {
		r.add(env)
	}

	cause := errors.New("boom")
	r.failAll(cause)

	if r.len() != 0 {
		t.Errorf("registry should be empty, got %d", r.len())
	}
	for _, env := range envs {
		select {
		case out := <-env.done:
			if !errors.Is(out.err, cause) {
				t.Errorf("envelope %s got %v", env.id, out.err)
			}
		default:
			t.Errorf("envelope %s should be settled", env.id)
		}
	}
}
