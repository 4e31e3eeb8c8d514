package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// AggregationRuns 聚合相关
	AggregationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_aggregation_runs_total",
			Help: "Total number of balance aggregation runs.",
		},
		[]string{"chain_id"},
	)
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balance_aggregation_duration_seconds",
			Help:    "Time taken by one balance aggregation run.",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"chain_id"},
	)
	BatchCallFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_batch_call_failures_total",
			Help: "Whole-batch balanceOf failures degraded to zero balances.",
		},
		[]string{"chain_id"},
	)
	NativeBalanceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_native_failures_total",
			Help: "Native balance lookups that failed.",
		},
		[]string{"chain_id"},
	)
	PriceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_price_lookups_total",
			Help: "USD price lookups by outcome.",
		},
		[]string{"chain_id", "status"},
	)
	SupersededRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_superseded_runs_total",
			Help: "Aggregation results dropped because a newer run had started.",
		},
	)
	PublishedSnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_published_snapshots_total",
			Help: "Balance snapshots published by lifecycle controllers.",
		},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "balance_active_sessions",
			Help: "Number of sessions currently bound to a controller.",
		},
	)

	// KafkaMessagesReceived Kafka 消费相关
	KafkaMessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_received_total",
			Help: "Total number of messages received from Kafka.",
		},
		[]string{"topic"},
	)
	KafkaWorkerMessagesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_consumer_worker_dispatch_count_total",
			Help: "Number of session events assigned to each worker.",
		},
		[]string{"worker_id"},
	)
	KafkaWorkerMessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_worker_messages_processed_total",
			Help: "Total number of messages processed by each session consumer worker.",
		},
		[]string{"worker_id"},
	)
	KafkaWorkerProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_worker_process_duration_seconds",
			Help:    "Time taken to process a message by each Trade consumer worker.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"worker_id"},
	)

	// AsyncWriterMessagesQueued AsyncWriter 指标
	AsyncWriterMessagesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_queued_total",
			Help: "Total number of messages queued to async writer.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_dropped_total",
			Help: "Total number of messages dropped due to full queue.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_batch_size",
			Help:    "Number of items in each batch submitted to the writer.",
			Buckets: []float64{10, 50, 100, 200, 500, 1000},
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_flush_count_total",
			Help: "Total number of batch flushes triggered.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_flush_duration_seconds",
			Help:    "Time taken to flush a batch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"writer_id"},
	)
	AsyncWriterItemsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_items_written_total",
			Help: "Total number of items successfully written by the async writer.",
		},
		[]string{"writer_id"},
	)
)

func init() {
	prometheus.MustRegister(
		// 聚合指标
		AggregationRuns,
		AggregationDuration,
		BatchCallFailures,
		NativeBalanceFailures,
		PriceLookups,
		SupersededRuns,
		PublishedSnapshots,
		ActiveSessions,

		// kafka指标
		KafkaMessagesReceived,
		KafkaWorkerMessagesDispatched,
		KafkaWorkerMessagesProcessed,
		KafkaWorkerProcessDuration,

		// async 写入指标
		AsyncWriterMessagesQueued,
		AsyncWriterMessagesDropped,
		AsyncWriterBatchSize,
		AsyncWriterFlushCount,
		AsyncWriterFlushDuration,
		AsyncWriterItemsWritten,
	)
}
