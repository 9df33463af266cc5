package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// 事件类型
const (
	TypeOrderCreated   = "order.created"
	TypePaymentOutcome = "payment.outcome"
)

// Event 发布到 kafka 的结账事件
type Event struct {
	Type       string      `json:"type"`
	OrderSn    string      `json:"orderSn"`
	PaymentSn  string      `json:"paymentSn,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// Publisher 事件发布；发布失败不影响主流程，由调用方记录日志
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// messageWriter kafka.Writer 的最小接口，便于测试
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewPublisher brokers 为空时返回不做任何事的发布者
func NewPublisher(cfg config.KafkaConfig) Publisher {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		logger.Log.Info("kafka brokers not configured, checkout events disabled")
		return NopPublisher{}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		timeout: 3 * time.Second,
	}
}

// Publish 以订单号为 key，同一订单的事件落在同一分区
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.OrderSn), Value: data, Time: e.OccurredAt})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// PublishOrLog 发布并在失败时记录 warn 日志
func PublishOrLog(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Log.Warn("publish checkout event failed",
			zap.String("type", e.Type),
			zap.String("order_sn", e.OrderSn),
			zap.Error(err),
		)
	}
}

func splitBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
