package consumer

import (
	"context"
	"strconv"
	"time"

	"web3-balance/internal/worker/config"
	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/monitor"
	"web3-balance/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SessionEventHandler handler.SessionHandler
type SessionEventHandler interface {
	HandleSession(ctx context.Context, ev model.SessionEvent) error
}

// SessionConsumer 消费账户状态事件，同一 session 固定分到一个 worker 保证顺序
type SessionConsumer struct {
	*Consumer
	id         string
	logger     *zap.Logger
	workerSize int
	buffers    []chan model.SessionEvent
	handler    SessionEventHandler
	ctx        context.Context
}

func NewSessionConsumer(conf config.Config, logger *zap.Logger, handler SessionEventHandler) *SessionConsumer {
	sc := newSessionConsumer(logger, handler, conf.Worker.WorkerNum)
	sc.Consumer = NewConsumer(conf.Kafka, logger, conf.Kafka.TopicSession)
	return sc
}

func newSessionConsumer(logger *zap.Logger, handler SessionEventHandler, workerSize int) *SessionConsumer {
	if workerSize <= 0 {
		workerSize = 1
	}
	buffers := make([]chan model.SessionEvent, workerSize)
	for i := range workerSize {
		buffers[i] = make(chan model.SessionEvent, 200)
	}
	return &SessionConsumer{
		id:         "session_consumer",
		logger:     logger,
		workerSize: workerSize,
		buffers:    buffers,
		handler:    handler,
		ctx:        context.Background(),
	}
}

func (sc *SessionConsumer) Run(ctx context.Context) {
	sc.startWorkers(ctx)
	sc.Consumer.Start(ctx, sc)
}

func (sc *SessionConsumer) startWorkers(ctx context.Context) {
	sc.ctx = ctx
	for i := 0; i < sc.workerSize; i++ {
		idx := i
		go func() {
			workerID := strconv.Itoa(idx)
			for {
				select {
				case ev := <-sc.buffers[idx]:
					startTime := time.Now()
					sc.logger.Debug("✅ Process session", zap.String("consumerID", sc.id), zap.String("session", ev.Session.ID), zap.String("type", string(ev.Type)))
					_ = sc.handler.HandleSession(ctx, ev)
					elapsed := time.Since(startTime).Seconds()
					monitor.KafkaWorkerMessagesProcessed.WithLabelValues(workerID).Inc()
					monitor.KafkaWorkerProcessDuration.WithLabelValues(workerID).Observe(elapsed)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

func (sc *SessionConsumer) HandleMessage(msg kafka.Message) {
	monitor.KafkaMessagesReceived.WithLabelValues("session").Inc()
	var ev model.SessionEvent
	if err := sonic.Unmarshal(msg.Value, &ev); err != nil {
		sc.logger.Warn("❌ JSON Parse Error", zap.String("consumerID", sc.id), zap.Error(err), zap.String("raw", string(msg.Value)))
		return
	}
	// 消息体缺少 id 时用 kafka key
	if ev.Session.ID == "" {
		ev.Session.ID = string(msg.Key)
	}
	if ev.Session.ID == "" {
		sc.logger.Warn("❌ session event without id", zap.String("consumerID", sc.id), zap.String("raw", string(msg.Value)))
		return
	}
	sc.dispatch(ev)
}

func (sc *SessionConsumer) ID() string {
	return sc.id
}

// Stop 只停止 kafka 读取，worker 随 ctx 退出
func (sc *SessionConsumer) Stop() error {
	if sc.Consumer == nil {
		return nil
	}
	return sc.Consumer.Stop()
}

// dispatch session 事件带状态，不能丢：buffer 满时阻塞读取循环，由 kafka 积压
func (sc *SessionConsumer) dispatch(ev model.SessionEvent) {
	idx := utils.GetHashBucket(ev.Session.ID, uint32(sc.workerSize))
	select {
	case sc.buffers[idx] <- ev:
		monitor.KafkaWorkerMessagesDispatched.WithLabelValues(strconv.Itoa(int(idx))).Inc()
	case <-sc.ctx.Done():
		sc.logger.Warn("❌ consumer stopped before dispatch", zap.String("consumerID", sc.id), zap.String("session", ev.Session.ID), zap.String("type", string(ev.Type)))
	}
}
