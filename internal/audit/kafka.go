package audit

import (
	"context"
	"encoding/json"
	"fmt"

	skafka "github.com/segmentio/kafka-go"
)

// Writer es el subset de kafka.Writer que usamos (inyectable en tests).
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// KafkaSink publica cada evento como JSON; la key es el nombre del evento.
type KafkaSink struct {
	writer Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.LeastBytes{},
		Async:        true,
		RequiredAcks: skafka.RequireOne,
	}
	return &KafkaSink{writer: w}
}

func NewKafkaSinkWithWriter(w Writer) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (k *KafkaSink) Emit(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, skafka.Message{Key: []byte(e.Name), Value: b, Time: e.At})
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
