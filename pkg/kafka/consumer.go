package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "CryptoArchive/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
	Logger      *applogger.Logger
	// Retryable decides whether a handler error is worth another attempt.
	// Nil means every error is retried.
	Retryable func(error) bool
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerWorkers sets number of worker goroutines.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerRetryable installs an error classifier; errors it rejects go straight to the DLQ.
func WithConsumerRetryable(fn func(error) bool) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Retryable = fn
	}
}

// WithConsumerDLQ sets a Kafka topic name for DLQ.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
	}
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the internal channel buffer size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(l *applogger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Logger = l
	}
}

type dlqWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer wraps Kafka readers with a worker pool. Messages of one partition are
// handled one at a time; offsets are committed after success or after a DLQ write.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *applogger.Logger
	readers   map[string]*kafka.Reader
	handlers  map[string]MessageHandler
	stopChan  chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	msgChan   chan *message
	dlq       dlqWriter
	partMu    sync.Mutex
	partLocks map[string]map[int]*sync.Mutex
}

type message struct {
	topic string
	km    kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	c := &Consumer{
		cfg:       cfg,
		log:       cfg.Logger,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		stopChan:  make(chan struct{}),
		msgChan:   make(chan *message, cfg.BufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
	}

	initConsumerMetrics()

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	return c, nil
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Topics lists registered topics.
func (c *Consumer) Topics() []string {
	topics := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		topics = append(topics, t)
	}
	return topics
}

// Start starts the Kafka readers and workers. It does not block.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}

	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.messageWorker()
	}

	var readers sync.WaitGroup
	for topic, reader := range c.readers {
		readers.Add(1)
		go func(topic string, reader *kafka.Reader) {
			defer readers.Done()
			c.consumeMessages(topic, reader)
		}(topic, reader)
	}
	// Workers drain msgChan until every reader has exited.
	go func() {
		readers.Wait()
		close(c.msgChan)
	}()

	c.log.Info("kafka consumer started",
		applogger.Strings("topics", c.Topics()),
		applogger.Int("workers", c.cfg.WorkerCount),
	)
	return nil
}

// Stop stops the Kafka consumer gracefully.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		close(c.stopChan)
		stopErr = c.waitForWg(ctx)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("kafka reader close", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka dlq close", applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("kafka consumer stopped")
		}
	})

	return stopErr
}

func (c *Consumer) waitForWg(ctx context.Context) error {
	doneChan := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(doneChan)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-doneChan:
		return nil
	}
}

func (c *Consumer) consumeMessages(topic string, reader *kafka.Reader) {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.log.Warn("kafka fetch", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}

		select {
		case c.msgChan <- &message{topic: topic, km: msg}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-c.stopChan:
			return
		}
	}
}

func (c *Consumer) messageWorker() {
	defer c.wg.Done()
	for msg := range c.msgChan {
		c.process(msg)
	}
}

// process runs the handler with retries, DLQs exhausted or non-retryable messages,
// and commits the offset.
func (c *Consumer) process(msg *message) {
	handler, ok := c.handlers[msg.topic]
	if !ok {
		return
	}
	start := time.Now()

	pl := c.partitionLock(msg.topic, msg.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	attempts, err := c.handleWithRetry(handler, msg.km.Value)
	result := "ok"
	if err != nil {
		result = "failed"
		c.log.Error("kafka message failed",
			applogger.String("topic", msg.topic),
			applogger.Int("partition", msg.km.Partition),
			applogger.Int64("offset", msg.km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		if c.writeDLQ(msg, err) {
			result = "dlq"
		}
	}
	consumerMessages.WithLabelValues(msg.topic, result).Inc()
	consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())

	if err == nil || result == "dlq" {
		if reader := c.readers[msg.topic]; reader != nil {
			_ = c.commitWithRetry(reader, msg.km, 3)
		}
	}
}

func (c *Consumer) handleWithRetry(handler MessageHandler, data []byte) (attempts int, err error) {
	for {
		attempts++
		err = c.safeHandle(handler, data)
		if err == nil || attempts > c.cfg.RetryMax || !c.retryable(err) {
			return attempts, err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopChan:
			return attempts, err
		}
	}
}

func (c *Consumer) safeHandle(handler MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(context.Background(), data)
}

func (c *Consumer) retryable(err error) bool {
	if c.cfg.Retryable == nil {
		return true
	}
	return c.cfg.Retryable(err)
}

func (c *Consumer) writeDLQ(msg *message, cause error) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.km.Key,
		Value: msg.km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("kafka dlq write", applogger.String("dlq", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit", applogger.Int("attempts", max), applogger.Error(err))
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()
	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

var (
	consumerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "cryptoarchive_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
		[]string{"topic"},
	)
	consumerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptoarchive_kafka_consumer_messages_total", Help: "Messages handled by result"},
		[]string{"topic", "result"},
	)
	consumerHandleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "cryptoarchive_kafka_consumer_handle_seconds", Help: "Handling time per message"},
		[]string{"topic"},
	)
	consumerOnce sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		prometheus.MustRegister(consumerQueueDepth, consumerMessages, consumerHandleLatency)
	})
}
