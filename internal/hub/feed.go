package hub

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how far a feed reader may fall behind before it is dropped.
const subscriberBuffer = 32

// Subscriber receives the messages published on the topics it subscribed to.
// Channel is closed when the subscriber is unsubscribed, dropped for being slow,
// or the broker is closed.
type Subscriber struct {
	Channel chan []byte
	once    sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.Channel) })
}

type Broker interface {
	Subscribe(ctx context.Context, topics ...string) *Subscriber
	Unsubscribe(ctx context.Context, sub *Subscriber)
	Publish(ctx context.Context, topic string, message []byte) error
	Close()
}

// MemoryBroker is an in-process Broker.
type MemoryBroker struct {
	mutex       sync.Mutex
	subscribers map[string][]*Subscriber
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subscribers: make(map[string][]*Subscriber)}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topics ...string) *Subscriber {
	sub := &Subscriber{Channel: make(chan []byte, subscriberBuffer)}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, t := range topics {
		b.subscribers[t] = append(b.subscribers[t], sub)
	}
	return sub
}

func (b *MemoryBroker) Unsubscribe(ctx context.Context, sub *Subscriber) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.remove(sub)
}

// Publish never blocks: a subscriber whose buffer is full is dropped.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, message []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var slow []*Subscriber
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.Channel <- message:
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		b.remove(sub)
	}
	return nil
}

func (b *MemoryBroker) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, subscribers := range b.subscribers {
		for _, sub := range subscribers {
			sub.close()
		}
	}
	b.subscribers = make(map[string][]*Subscriber)
}

// remove detaches sub from every topic. Callers hold the mutex.
func (b *MemoryBroker) remove(sub *Subscriber) {
	for topic, subscribers := range b.subscribers {
		kept := subscribers[:0]
		for _, s := range subscribers {
			if s != sub {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = kept
		}
	}
	sub.close()
}

func gameTopic(gameID string) string {
	return "game:" + gameID
}

func playerTopic(gameID, userID string) string {
	return "game:" + gameID + ":" + userID
}
