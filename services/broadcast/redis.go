package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"autodiag/models"
	"autodiag/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// presenceKey is a hash of user ID to open stream count across instances.
const presenceKey = "presence:online"

// leaveScript decrements a user's stream count and drops the field at zero.
var leaveScript = redis.NewScript(`
local n = redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
if n <= 0 then
	redis.call("HDEL", KEYS[1], ARGV[1])
	return 0
end
return n
`)

// RedisBroadcaster fans events out through Redis PUBLISH so every API
// instance can serve any stream.
type RedisBroadcaster struct {
	client      *redis.Client
	logger      *zap.Logger
	presenceKey string
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, logger: utils.GetLogger(), presenceKey: presenceKey}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel, eventType string, data any) error {
	payload, err := json.Marshal(models.Event{
		Channel: channel,
		Type:    eventType,
		Data:    data,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan models.Event, 32),
		done:   make(chan struct{}),
	}
	go sub.pump(b.logger)
	return sub, nil
}

func (b *RedisBroadcaster) Join(ctx context.Context, userID string) error {
	if err := b.client.HIncrBy(ctx, b.presenceKey, userID, 1).Err(); err != nil {
		return fmt.Errorf("presence join: %w", err)
	}
	return b.Publish(ctx, PresenceOnline, EventPresenceJoined, map[string]string{"userId": userID})
}

func (b *RedisBroadcaster) Leave(ctx context.Context, userID string) error {
	if err := leaveScript.Run(ctx, b.client, []string{b.presenceKey}, userID).Err(); err != nil {
		return fmt.Errorf("presence leave: %w", err)
	}
	return b.Publish(ctx, PresenceOnline, EventPresenceLeft, map[string]string{"userId": userID})
}

func (b *RedisBroadcaster) Online(ctx context.Context) ([]string, error) {
	members, err := b.client.HKeys(ctx, b.presenceKey).Result()
	if err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan models.Event
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) pump(logger *zap.Logger) {
	defer close(s.events)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan models.Event { return s.events }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
