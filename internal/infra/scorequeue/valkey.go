package scorequeue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/oaracle/oaracle/internal/domain/conditions"
)

const defaultQueueKey = "oaracle:scores"

// ValkeyQueue persists scores in a Valkey list and delivers them to a handler.
type ValkeyQueue struct {
	client      valkey.Client
	queueKey    string
	handler     Handler
	logger      *slog.Logger
	stop        chan struct{}
	done        chan struct{}
	once        sync.Once
	started     bool
	pollTimeout time.Duration
}

// NewValkeyQueue constructs a Valkey-backed queue.
func NewValkeyQueue(client valkey.Client, queueKey string, logger *slog.Logger) *ValkeyQueue {
	if queueKey == "" {
		queueKey = defaultQueueKey
	}
	return &ValkeyQueue{
		client:      client,
		queueKey:    queueKey,
		logger:      logger.With("component", "scorequeue.valkey"),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		pollTimeout: 5 * time.Second,
	}
}

// SetHandler starts the worker loop that pops scores and invokes the handler.
// It must be called at most once.
func (q *ValkeyQueue) SetHandler(handler Handler) {
	q.handler = handler
	if handler == nil {
		return
	}
	q.started = true
	go q.consume()
}

// Enqueue pushes a score onto the list.
func (q *ValkeyQueue) Enqueue(ctx context.Context, record conditions.ScoreRecord) error {
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}
	cmd := q.client.B().Lpush().Key(q.queueKey).Element(encoded).Build()
	return q.client.Do(ctx, cmd).Error()
}

// Close stops the worker after the current poll returns.
func (q *ValkeyQueue) Close() {
	q.once.Do(func() {
		close(q.stop)
		if q.started {
			<-q.done
		}
	})
}

func (q *ValkeyQueue) consume() {
	defer close(q.done)
	ctx := context.Background()
	for {
		select {
		case <-q.stop:
			return
		default:
		}
		resp := q.client.Do(ctx, q.client.B().Brpop().Key(q.queueKey).Timeout(q.pollTimeout.Seconds()).Build())
		values, err := resp.ToArray()
		if err != nil {
			if !valkey.IsValkeyNil(err) {
				q.logger.Warn("valkey queue pop failed", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(values) < 2 {
			continue
		}
		raw, err := values[1].ToString()
		if err != nil {
			q.logger.Warn("valkey queue payload decode failed", "error", err)
			continue
		}
		record, err := decodeRecord(raw)
		if err != nil {
			q.logger.Warn("valkey queue unmarshal failed", "error", err)
			continue
		}
		if err := q.handler(ctx, record); err != nil {
			q.logger.Warn("score handler failed", "location_id", record.LocationID, "error", err)
		}
	}
}

func encodeRecord(record conditions.ScoreRecord) (string, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeRecord(raw string) (conditions.ScoreRecord, error) {
	var record conditions.ScoreRecord
	err := json.Unmarshal([]byte(raw), &record)
	return record, err
}

var _ HandlerQueue = (*ValkeyQueue)(nil)
