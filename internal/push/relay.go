// internal/push/relay.go
package push

import (
	"context"
	"fmt"
	"sync"

	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/metrics"
	"lending-engine/internal/registry"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher is the Redis surface the relay needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type envelope struct {
	UserID  uuid.UUID `json:"user_id"`
	Payload string    `json:"payload"`
}

func encodeEnvelope(userID uuid.UUID, payload []byte) ([]byte, error) {
	return json.Marshal(envelope{UserID: userID, Payload: string(payload)})
}

// RedisRelay publishes every push on a shared channel; each process subscribes and
// delivers messages to its own registry. When publishing fails the push is
// delivered locally so single-process deployments keep working.
type RedisRelay struct {
	client  Publisher
	channel string
	local   *registry.Registry
	logger  logger.Logger

	mu     sync.Mutex
	sub    *redis.PubSub
	done   chan struct{}
	cancel context.CancelFunc

	// in-flight deliveries; each is bounded by the registry write timeout
	deliveries sync.WaitGroup
}

func NewRedisRelay(client Publisher, channel string, local *registry.Registry, log logger.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  log.WithFields(map[string]interface{}{"component": "push-relay", "channel": channel}),
	}
}

func (r *RedisRelay) Push(ctx context.Context, userID uuid.UUID, payload []byte) {
	msg, err := encodeEnvelope(userID, payload)
	if err == nil {
		err = r.client.Publish(ctx, r.channel, msg).Err()
	}
	if err != nil {
		r.logger.Warn("Relay publish failed, delivering locally", map[string]interface{}{
			"userId": userID.String(),
			"error":  err.Error(),
		})
		r.local.PushToUser(ctx, userID, payload)
		return
	}
	metrics.RelayMessages.WithLabelValues("published").Inc()
}

// Start subscribes to the channel and delivers incoming messages until ctx ends or
// Close is called. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return fmt.Errorf("relay already started")
	}

	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.sub = sub
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(runCtx, sub, r.done)

	r.logger.Info("Push relay subscribed", nil)
	return nil
}

func (r *RedisRelay) run(ctx context.Context, sub *redis.PubSub, done chan struct{}) {
	defer close(done)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Warn("Dropping malformed relay message", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.RelayMessages.WithLabelValues("received").Inc()

	// A slow connection of one user must not hold up the subscription loop.
	pushCtx := context.WithoutCancel(ctx)
	r.deliveries.Add(1)
	go func() {
		defer r.deliveries.Done()
		r.local.PushToUser(pushCtx, env.UserID, []byte(env.Payload))
	}()
}

// Close stops the subscription and waits for the delivery loop and any in-flight
// deliveries to finish.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	sub, cancel, done := r.sub, r.cancel, r.done
	r.sub = nil
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	cancel()
	err := sub.Close()
	<-done
	r.deliveries.Wait()
	return err
}
