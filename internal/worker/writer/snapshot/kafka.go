package snapshot

import (
	"context"
	"time"

	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/writer"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const retryCount = 3

// MessageWriter kafka.Writer 的最小接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSnapshotWriter 快照发布/清空事件写入 kafka，key 为 session id 保证同一 session 有序
type KafkaSnapshotWriter struct {
	mq MessageWriter
	tl *zap.Logger

	topic string
}

func NewKafkaSnapshotWriter(mq MessageWriter, tl *zap.Logger, topic string) writer.BatchWriter[model.SnapshotEvent] {
	return &KafkaSnapshotWriter{mq: mq, tl: tl, topic: topic}
}

func (w *KafkaSnapshotWriter) BWrite(ctx context.Context, events []model.SnapshotEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := w.marshalToMsg(ev)
		if err != nil {
			w.tl.Warn("❌ marshal snapshot event failed", zap.String("session", ev.SessionID), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	newCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	// 重试机制
	var err error
	for attempt := 0; attempt < retryCount; attempt++ {
		err = w.mq.WriteMessages(newCtx, msgs...)
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ MQ write failed, exceeded the maximum number of retries", zap.Int("size", len(msgs)), zap.Error(err))
		return err
	}
	return nil
}

func (w *KafkaSnapshotWriter) Close() error {
	return nil
}

func (w *KafkaSnapshotWriter) marshalToMsg(ev model.SnapshotEvent) (kafka.Message, error) {
	jsonData, err := sonic.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: w.topic,
		Key:   []byte(ev.SessionID),
		Value: jsonData,
	}, nil
}
