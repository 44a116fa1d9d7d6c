package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	skafka "github.com/segmentio/kafka-go"
)

// fakeWriter registra los mensajes escritos.
type fakeWriter struct {
	msgs []skafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink(t *testing.T) {
	fw := &fakeWriter{}
	prev := SetSink(NewKafkaSinkWithWriter(fw))
	defer SetSink(prev)

	Log(context.Background(), EventLogout, map[string]any{"user_id": "u1"})

	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != EventLogout {
		t.Fatalf("key: %s", fw.msgs[0].Key)
	}
	var e Event
	if err := json.Unmarshal(fw.msgs[0].Value, &e); err != nil {
		t.Fatalf("value: %v", err)
	}
	if e.Fields["user_id"] != "u1" || e.At.IsZero() {
		t.Fatalf("event: %+v", e)
	}
}

func TestSinkErrorDoesNotPanic(t *testing.T) {
	prev := SetSink(NewKafkaSinkWithWriter(&fakeWriter{err: errors.New("broker down")}))
	defer SetSink(prev)
	Log(context.Background(), EventLoginFailed, nil)
}
