package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/shaiso/Simulo/internal/domain"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(KindRunBatch, RunBatchPayload{RunCount: 5, StartIndex: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.ID == "" {
		t.Error("ID should be generated")
	}
	if msg.Kind != KindRunBatch {
		t.Errorf("expected kind %s, got %s", KindRunBatch, msg.Kind)
	}
	if msg.Payload == nil {
		t.Error("payload should be set")
	}

	var p RunBatchPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("payload should round-trip: %v", err)
	}
	if p.RunCount != 5 || p.StartIndex != 10 {
		t.Errorf("payload mismatch: %+v", p)
	}
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg, err := NewMessage(KindInitEngine, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[msg.ID] {
			t.Fatalf("duplicate message ID: %s", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestReply_CarriesRequestID(t *testing.T) {
	req, _ := NewMessage(KindInitEngine, nil)
	resp, err := Reply(req.ID, KindReady, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ID != req.ID {
		t.Errorf("reply should carry request ID: got %s, want %s", resp.ID, req.ID)
	}
}

func TestKind_IsTerminal(t *testing.T) {
	terminal := []Kind{KindReady, KindResult, KindError}
	for _, k := range terminal {
		if !k.IsTerminal() {
			t.Errorf("%s should be terminal", k)
		}
	}
	if KindProgress.IsTerminal() {
		t.Error("progress should not be terminal")
	}
	if KindRunBatch.IsTerminal() {
		t.Error("run-batch should not be terminal")
	}
}

func TestWriteReadMessage_RoundTrip(t *testing.T) {
	msg, _ := NewMessage(KindRunBatch, RunBatchPayload{
		InitialState: json.RawMessage(`{"balance":100000}`),
		RunCount:     7,
		StartIndex:   21,
	})

	var buf bytes.Buffer
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.ID != msg.ID || got.Kind != msg.Kind {
		t.Errorf("envelope mismatch: got %s/%s, want %s/%s", got.ID, got.Kind, msg.ID, msg.Kind)
	}

	var p RunBatchPayload
	if err := json.Unmarshal(got.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.RunCount != 7 || p.StartIndex != 21 {
		t.Errorf("payload mismatch: %+v", p)
	}
}

func TestReadMessage_EOF(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReadMessage_OversizedFrame(t *testing.T) {
	// Префикс длины, превышающий MaxMessageSize
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	_, err := ReadMessage(&buf)
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestReadMessage_TruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x10}) // объявлено 16 байт
	buf.WriteString("short")

	_, err := ReadMessage(&buf)
	if err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestDecodeProgress(t *testing.T) {
	msg, _ := NewMessage(KindProgress, ProgressPayload{Completed: 3, Total: 10})

	p, err := DecodeProgress(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Completed != 3 || p.Total != 10 {
		t.Errorf("payload mismatch: %+v", p)
	}
}

func TestDecodeProgress_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload json.RawMessage
	}{
		{"missing", nil},
		{"not json", json.RawMessage(`garbage`)},
		{"completed exceeds total", json.RawMessage(`{"completed":11,"total":10}`)},
		{"negative", json.RawMessage(`{"completed":-1,"total":10}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &Message{ID: "x", Kind: KindProgress, Payload: tt.payload}
			if _, err := DecodeProgress(msg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeResult(t *testing.T) {
	batch := domain.WorkBatch{StartIndex: 5, Size: 3}
	payload := json.RawMessage(`{"records":[
		{"run_index":5,"succeeded":true,"outcome":{"v":1}},
		{"run_index":6,"succeeded":true,"outcome":{"v":2}},
		{"run_index":7,"succeeded":false,"error":"diverged"}
	]}`)

	records, err := DecodeResult(payload, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[2].Succeeded || records[2].Error != "diverged" {
		t.Errorf("failed record mismatch: %+v", records[2])
	}
}

func TestDecodeResult_Invalid(t *testing.T) {
	batch := domain.WorkBatch{StartIndex: 0, Size: 2}

	tests := []struct {
		name    string
		payload json.RawMessage
	}{
		{"missing", nil},
		{"not json", json.RawMessage(`[]garbage`)},
		{"wrong count", json.RawMessage(`{"records":[{"run_index":0,"succeeded":true}]}`)},
		{"index outside batch", json.RawMessage(`{"records":[{"run_index":0,"succeeded":true},{"run_index":5,"succeeded":true}]}`)},
		{"duplicate index", json.RawMessage(`{"records":[{"run_index":0,"succeeded":true},{"run_index":0,"succeeded":true}]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeResult(tt.payload, batch); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeError(t *testing.T) {
	msg, _ := NewMessage(KindError, ErrorPayload{Message: "engine exploded"})

	p, err := DecodeError(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Message != "engine exploded" {
		t.Errorf("message mismatch: %q", p.Message)
	}
}

func TestDecodeError_EmptyMessage(t *testing.T) {
	msg := &Message{ID: "x", Kind: KindError, Payload: json.RawMessage(`{}`)}

	p, err := DecodeError(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Message == "" {
		t.Error("empty engine error should get a placeholder message")
	}
}
