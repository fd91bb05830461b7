// Simulo Engine (stub) — заглушка движка симуляций для локальной
// разработки и интеграционных прогонов диспетчера.
//
// Говорит на framed-протоколе диспетчера через stdin/stdout: читает
// запросы, отвечает ready/progress/result. Прогоны детерминированы
// по глобальному индексу, результаты — синтетические.
//
// Логи пишутся в stderr: stdout целиком занят протоколом.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"

	"github.com/shaiso/Simulo/internal/protocol"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logger.Info("engine stub started", "pid", os.Getpid())

	for {
		msg, err := protocol.ReadMessage(os.Stdin)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("stdin closed, exiting")
				return
			}
			logger.Error("read failed", "error", err)
			os.Exit(1)
		}

		if err := handle(msg, logger); err != nil {
			logger.Error("handle failed", "kind", msg.Kind, "error", err)
			os.Exit(1)
		}

		if msg.Kind == protocol.KindCleanup {
			logger.Info("cleanup received, exiting")
			return
		}
	}
}

func handle(msg *protocol.Message, logger *slog.Logger) error {
	switch msg.Kind {
	case protocol.KindInitEngine, protocol.KindLoadConfig:
		return reply(msg.ID, protocol.KindReady, nil)

	case protocol.KindSetVerbosity:
		var p protocol.SetVerbosityPayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			logger.Info("verbosity set", "level", p.Level)
		}
		return nil

	case protocol.KindRunBatch:
		return runBatch(msg)

	case protocol.KindCleanup:
		return nil

	default:
		return reply(msg.ID, protocol.KindError, protocol.ErrorPayload{
			Message: fmt.Sprintf("unsupported request kind %q", msg.Kind),
		})
	}
}

// runBatch выполняет батч: прогресс после каждой четверти, затем result.
func runBatch(msg *protocol.Message) error {
	var p protocol.RunBatchPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return reply(msg.ID, protocol.KindError, protocol.ErrorPayload{
			Message: "malformed run-batch payload: " + err.Error(),
		})
	}
	if p.RunCount < 1 {
		return reply(msg.ID, protocol.KindError, protocol.ErrorPayload{
			Message: "run_count must be at least 1",
		})
	}

	progressStep := p.RunCount / 4
	if progressStep < 1 {
		progressStep = 1
	}

	records := make([]runRecord, 0, p.RunCount)
	for i := 0; i < p.RunCount; i++ {
		runIndex := p.StartIndex + i
		records = append(records, runRecord{
			RunIndex:  runIndex,
			Succeeded: true,
			Outcome:   syntheticOutcome(p.InitialState, runIndex),
		})

		if (i+1)%progressStep == 0 && i+1 < p.RunCount {
			err := reply(msg.ID, protocol.KindProgress, protocol.ProgressPayload{
				Completed: i + 1,
				Total:     p.RunCount,
			})
			if err != nil {
				return err
			}
		}
	}

	return reply(msg.ID, protocol.KindResult, resultPayload{Records: records})
}

// runRecord и resultPayload зеркалят формат ответа result.
type runRecord struct {
	RunIndex  int             `json:"run_index"`
	Succeeded bool            `json:"succeeded"`
	Outcome   json.RawMessage `json:"outcome,omitempty"`
}

type resultPayload struct {
	Records []runRecord `json:"records"`
}

// syntheticOutcome — детерминированный псевдорезультат прогона:
// одинаковый вход и индекс всегда дают одинаковый исход.
func syntheticOutcome(state json.RawMessage, runIndex int) json.RawMessage {
	h := fnv.New64a()
	h.Write(state)
	fmt.Fprintf(h, "#%d", runIndex)
	seed := h.Sum64()

	// Грубая траектория баланса вокруг 100 с разбросом от seed.
	balance := 100 + int64(seed%41) - 20
	out := fmt.Sprintf(`{"run_index":%d,"final_balance":%d,"seed":%d}`, runIndex, balance, seed)
	return json.RawMessage(out)
}

func reply(requestID string, kind protocol.Kind, payload any) error {
	msg, err := protocol.Reply(requestID, kind, payload)
	if err != nil {
		return err
	}
	return protocol.WriteMessage(os.Stdout, msg)
}
