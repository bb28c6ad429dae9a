// Package feed turns store change notifications into live, snapshot-style views.
//
// A store publishes a Topic whenever documents behind it change. Watch subscribes to
// that topic, reloads the query result on every signal and hands the snapshot to a
// handler, one delivery at a time, until the returned Handle is cancelled.
package feed

import (
	"sync"

	"github.com/google/uuid"
)

type Topic string

const (
	TopicAppointments  Topic = "appointments"
	TopicConversations Topic = "conversations"

	threadTopicPrefix = "thread:"
)

// ThreadTopic is the topic of the message list of one conversation.
func ThreadTopic(threadID string) Topic {
	return Topic(threadTopicPrefix + threadID)
}

// Broker fans change signals out to subscribers. Signals coalesce: a subscriber that has
// not consumed the previous signal yet does not get a second one, it reloads once.
type Broker struct {
	mu   sync.RWMutex
	subs map[Topic]map[uuid.UUID]chan struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[Topic]map[uuid.UUID]chan struct{})}
}

// Publish signals every subscriber of topic. It never blocks.
func (b *Broker) Publish(topic Topic) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishAll signals every subscriber of every topic.
func (b *Broker) PublishAll() {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subs := range b.subs {
		for _, ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns how many listeners are attached to topic.
func (b *Broker) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Broker) subscribe(topic Topic) (uuid.UUID, <-chan struct{}) {
	id := uuid.New()
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uuid.UUID]chan struct{})
	}
	b.subs[topic][id] = ch
	return id, ch
}

func (b *Broker) unsubscribe(topic Topic, id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.subs, topic)
	}
}
