package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shaiso/Simulo/internal/protocol"
)

// cat эхом возвращает фреймы: удобный суррогат движка для проверки
// транспортного уровня без настоящего бинарника.
func TestProcTransport_EchoRoundTrip(t *testing.T) {
	tr := &ProcTransport{Command: "cat"}

	conn, err := tr.Open(context.Background(), 0)
	if err != nil {
		t.Skipf("cannot start cat: %v", err)
	}
	defer conn.Close()

	msg, _ := protocol.NewMessage(protocol.KindInitEngine, nil)
	if err := conn.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got, ok := <-conn.Messages():
		if !ok {
			t.Fatal("messages channel closed unexpectedly")
		}
		if got.ID != msg.ID || got.Kind != msg.Kind {
			t.Errorf("echo mismatch: got %s/%s, want %s/%s", got.ID, got.Kind, msg.ID, msg.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for echo")
	}
}

func TestProcTransport_ProcessExitIsFault(t *testing.T) {
	tr := &ProcTransport{Command: "false"}

	conn, err := tr.Open(context.Background(), 0)
	if err != nil {
		t.Skipf("cannot start false: %v", err)
	}
	defer conn.Close()

	select {
	case fault := <-conn.Faults():
		if fault == nil {
			t.Error("fault should carry an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for fault")
	}
}

func TestProcConn_CloseSuppressesFault(t *testing.T) {
	tr := &ProcTransport{Command: "cat"}

	conn, err := tr.Open(context.Background(), 0)
	if err != nil {
		t.Skipf("cannot start cat: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// повторный Close безопасен
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// после Close канал Faults закрывается без доставки сигнала
	select {
	case fault, ok := <-conn.Faults():
		if ok {
			t.Errorf("no fault expected after explicit close, got %v", fault)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("faults channel should close after Close")
	}
}

func TestProcConn_SendAfterClose(t *testing.T) {
	tr := &ProcTransport{Command: "cat"}

	conn, err := tr.Open(context.Background(), 0)
	if err != nil {
		t.Skipf("cannot start cat: %v", err)
	}
	conn.Close()

	msg, _ := protocol.NewMessage(protocol.KindCleanup, nil)
	if err := conn.Send(msg); err == nil {
		t.Error("send after close should fail")
	}
}
