package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/pkg/logger"
	"llm-ledger-api/pkg/metrics"
	"llm-ledger-api/pkg/tracer"
)

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	stream Stream
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, stream Stream, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	if stream == "" {
		stream = StreamLedgerInvocations
	}
	return &Producer{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		metrics.RedisStreamPublished.WithLabelValues(string(stream), "error").Inc()
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	metrics.RedisStreamPublished.WithLabelValues(string(stream), "ok").Inc()
	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishInvocationRecorded 发布调用记录落库事件
func (p *Producer) PublishInvocationRecorded(ctx context.Context, event *entity.InvocationRecordedEvent) error {
	msg, err := NewMessage(uuid.NewString(), entity.EventTypeInvocationRecorded, event)
	if err != nil {
		return err
	}

	msg.SetMetadata("record_id", strconv.FormatUint(event.RecordID, 10))
	msg.SetMetadata("status", event.Status)
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok && rid != "" {
		msg.SetMetadata("request_id", rid)
	}

	_, err = p.Publish(ctx, p.stream, msg)
	return err
}
