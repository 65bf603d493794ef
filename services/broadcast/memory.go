package broadcast

import (
	"context"
	"sort"
	"sync"
	"time"

	"autodiag/models"
)

// MemoryBroadcaster delivers events within the process. Slow subscribers
// drop events rather than block publishers.
type MemoryBroadcaster struct {
	mu     sync.Mutex
	subs   map[*memorySubscription]struct{}
	online map[string]int
	sent   []models.Event
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{
		subs:   make(map[*memorySubscription]struct{}),
		online: make(map[string]int),
	}
}

func (b *MemoryBroadcaster) Publish(_ context.Context, channel, eventType string, data any) error {
	ev := models.Event{Channel: channel, Type: eventType, Data: data, SentAt: time.Now().UTC()}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, ev)
	for sub := range b.subs {
		if _, ok := sub.channels[channel]; !ok {
			continue
		}
		select {
		case sub.events <- ev:
		default:
		}
	}
	return nil
}

func (b *MemoryBroadcaster) Subscribe(_ context.Context, channels ...string) (Subscription, error) {
	sub := &memorySubscription{
		owner:    b,
		channels: make(map[string]struct{}, len(channels)),
		events:   make(chan models.Event, 32),
	}
	for _, ch := range channels {
		sub.channels[ch] = struct{}{}
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

func (b *MemoryBroadcaster) Join(ctx context.Context, userID string) error {
	b.mu.Lock()
	b.online[userID]++
	b.mu.Unlock()
	return b.Publish(ctx, PresenceOnline, EventPresenceJoined, map[string]string{"userId": userID})
}

func (b *MemoryBroadcaster) Leave(ctx context.Context, userID string) error {
	b.mu.Lock()
	if b.online[userID] <= 1 {
		delete(b.online, userID)
	} else {
		b.online[userID]--
	}
	b.mu.Unlock()
	return b.Publish(ctx, PresenceOnline, EventPresenceLeft, map[string]string{"userId": userID})
}

func (b *MemoryBroadcaster) Online(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.online))
	for id := range b.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Sent returns every event published so far, optionally limited to one channel.
func (b *MemoryBroadcaster) Sent(channel string) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Event
	for _, ev := range b.sent {
		if channel == "" || ev.Channel == channel {
			out = append(out, ev)
		}
	}
	return out
}

type memorySubscription struct {
	owner    *MemoryBroadcaster
	channels map[string]struct{}
	events   chan models.Event
	once     sync.Once
}

func (s *memorySubscription) Events() <-chan models.Event { return s.events }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.subs, s)
		close(s.events)
		s.owner.mu.Unlock()
	})
	return nil
}
