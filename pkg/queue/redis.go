package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"CryptoArchive/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed job queue with delayed retries and a dead letter list.
type RedisQueue struct {
	logger    *logger.Logger
	config    QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
	now       func() time.Time
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, config QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if config.PollWait <= 0 {
		config.PollWait = time.Second
	}

	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		keyPrefix: "archive:queue",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers a handler for its message type. Later registrations of the
// same type are ignored.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	r.jobs[job.Type()] = job
}

// Start pings Redis and launches workers plus the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.isRunning = true
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryProcessor()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels workers and waits for in-flight jobs until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// PublishMessage enqueues payload under msgType (implements QueueService).
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: r.now()}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
			return
		default:
			r.processNext()
		}
	}
}

func (r *RedisQueue) processNext() {
	result, err := r.client.BRPop(r.ctx, r.config.PollWait, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("brpop error", logger.Error(err))
		select {
		case <-r.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return
	}
	r.process(msg)
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, exists := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !exists {
		r.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.push(r.deadLetterKey(), msg)
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	if err == nil {
		r.logger.Debug("message processed",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Warn("message cancelled", logger.String("id", msg.ID), logger.String("type", msg.Type))
		return
	}

	r.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))
	if msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("type", msg.Type))
		r.push(r.deadLetterKey(), msg)
		return
	}
	msg.Attempts++
	r.scheduleRetry(msg, r.now().Add(r.config.RetryDelay))
}

func (r *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(at.Unix()),
		Member: data,
	}).Err()
	if err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) push(key string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal message", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), key, data).Err(); err != nil {
		r.logger.Error("lpush", logger.String("key", key), logger.Error(err))
	}
}

func (r *RedisQueue) retryProcessor() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.moveDueRetries()
		}
	}
}

// moveDueRetries moves retries whose time has come back onto the main list.
func (r *RedisQueue) moveDueRetries() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Error("fetch retry messages", logger.Error(err))
		}
		return
	}

	for _, data := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), data)
		pipe.LPush(r.ctx, r.queueKey(), data)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("move retry to queue", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string {
	return fmt.Sprintf("%s:messages", r.keyPrefix)
}

func (r *RedisQueue) retryKey() string {
	return fmt.Sprintf("%s:retry", r.keyPrefix)
}

func (r *RedisQueue) deadLetterKey() string {
	return fmt.Sprintf("%s:dlq", r.keyPrefix)
}
