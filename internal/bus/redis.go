package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/metrics"
)

// Channel is the Redis Pub/Sub channel all bmrk processes share.
const Channel = "bmrk:events"

// Redis is a Bus over Redis Pub/Sub, connecting an agent and popups that run
// as separate processes.
type Redis struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedis(client *redis.Client, log logger.Logger) *Redis {
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{client: client, log: log}
}

func (b *Redis) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}
	metrics.BusEventsTotal.WithLabelValues(string(msg.Type), "published").Inc()
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so a message
// published after Subscribe returns is delivered.
func (b *Redis) Subscribe(ctx context.Context) (Subscription, error) {
	ps := b.client.Subscribe(ctx, Channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel, err)
	}

	s := &redisSub{ps: ps, out: make(chan Message, DefaultBuffer), done: make(chan struct{})}
	s.wg.Add(1)
	go s.pump(b.log)
	return s, nil
}

// Close is a no-op; the caller owns the Redis client.
func (b *Redis) Close() error { return nil }

type redisSub struct {
	ps   *redis.PubSub
	out  chan Message
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *redisSub) C() <-chan Message { return s.out }

func (s *redisSub) pump(log logger.Logger) {
	defer s.wg.Done()
	defer close(s.out)
	for raw := range s.ps.Channel() {
		var msg Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			log.Warn("discarding undecodable bus message", logger.Error(err))
			continue
		}
		if err := msg.Validate(); err != nil {
			log.Warn("discarding invalid bus message", logger.Error(err))
			continue
		}
		select {
		case s.out <- msg:
			metrics.BusEventsTotal.WithLabelValues(string(msg.Type), "received").Inc()
		case <-s.done:
			return
		default:
			metrics.BusEventsTotal.WithLabelValues(string(msg.Type), "dropped").Inc()
		}
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.wg.Wait()
	})
	return err
}
