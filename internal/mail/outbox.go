package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cmsapi/internal/metrics"
)

const KeyOutbox = "cms:mail:outbox"

var ErrNoMessage = errors.New("no message available")

// RedisOutbox is a Redis list used as a FIFO mail queue.
type RedisOutbox struct {
	rdb *redis.Client
	key string
}

func NewRedisOutbox(rdb *redis.Client) (*RedisOutbox, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	return &RedisOutbox{rdb: rdb, key: KeyOutbox}, nil
}

func (o *RedisOutbox) Enqueue(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}
	if err := o.rdb.LPush(ctx, o.key, data).Err(); err != nil {
		return fmt.Errorf("lpush mail job: %w", err)
	}
	metrics.MailJob(metrics.MailQueued)
	return nil
}

// Pop blocks up to timeout for the oldest job.
func (o *RedisOutbox) Pop(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := o.rdb.BRPop(ctx, timeout, o.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessage
	}
	if err != nil {
		return nil, fmt.Errorf("brpop mail job: %w", err)
	}
	// res[0] is the key, res[1] the payload.
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected brpop reply: %v", res)
	}
	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal mail job: %w", err)
	}
	return &msg, nil
}

func (o *RedisOutbox) Depth(ctx context.Context) (int64, error) {
	return o.rdb.LLen(ctx, o.key).Result()
}

// InlineOutbox delivers each message on its own goroutine. Used when Redis
// is disabled.
type InlineOutbox struct {
	sender  Sender
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInlineOutbox(sender Sender, log *zap.Logger) *InlineOutbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &InlineOutbox{sender: sender, log: log, timeout: 30 * time.Second}
}

func (o *InlineOutbox) Enqueue(_ context.Context, msg Message) error {
	metrics.MailJob(metrics.MailQueued)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		deliver(ctx, o.sender, msg, o.log)
	}()
	return nil
}

// Wait blocks until every enqueued message has been attempted.
func (o *InlineOutbox) Wait() { o.wg.Wait() }

func deliver(ctx context.Context, sender Sender, msg Message, log *zap.Logger) {
	if err := sender.Send(ctx, msg); err != nil {
		metrics.MailJob(metrics.MailFailed)
		log.Warn("mail delivery failed",
			zap.String("to", msg.To), zap.String("purpose", string(msg.Purpose)), zap.Error(err))
		return
	}
	metrics.MailJob(metrics.MailSent)
}
