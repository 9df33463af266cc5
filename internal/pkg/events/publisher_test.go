package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront_checkout/internal/pkg/config"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestNewPublisherWithoutBrokers(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{Brokers: " , "})
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeOrderCreated}))
}

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, timeout: 1e9}

	err := p.Publish(context.Background(), Event{Type: TypePaymentOutcome, OrderSn: "SN1", PaymentSn: "P1", Payload: "SUCCESS"})

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "SN1", string(w.msgs[0].Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, TypePaymentOutcome, decoded.Type)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestPublishOrLogSwallowsErrors(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}, timeout: 1e9}
	assert.NotPanics(t, func() {
		PublishOrLog(context.Background(), p, Event{Type: TypeOrderCreated, OrderSn: "SN1"})
		PublishOrLog(context.Background(), nil, Event{})
	})
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers("a:9092, b:9092,"))
	assert.Empty(t, splitBrokers(""))
}
