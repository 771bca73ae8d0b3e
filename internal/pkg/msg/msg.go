package msg

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Topic partitions a publisher's message stream.
type Topic int

// Topics published by the simulation core.
const (
	Telemetry Topic = iota // per-step frequency and dispatch samples
	Result                 // complete run output, published once at termination
)

// Publisher is an interface for objects that allow subscription to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg wraps a payload with its sender and topic.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// PubSub fans messages out to per-topic subscribers.
type PubSub struct {
	mux  *sync.Mutex
	pid  uuid.UUID
	subs map[Topic]map[uuid.UUID]chan<- Msg
}

// NewPublisher returns a PubSub owned by the pid parameter.
func NewPublisher(pid uuid.UUID) *PubSub {
	subs := make(map[Topic]map[uuid.UUID]chan<- Msg)
	return &PubSub{&sync.Mutex{}, pid, subs}
}

// PID returns the publisher's PID
func (p PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a read only channel carrying messages on the topic parameter.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if _, ok := p.subs[topic]; !ok {
		p.subs[topic] = make(map[uuid.UUID]chan<- Msg)
	}
	if _, ok := p.subs[topic][pid]; ok {
		return nil, errors.New("msg: pid already subscribed to topic")
	}
	ch := make(chan Msg, 50)
	p.subs[topic][pid] = ch
	return ch, nil
}

// Unsubscribe closes all channels associated with the pid parameter.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for topic := range p.subs {
		if ch, ok := p.subs[topic][pid]; ok {
			delete(p.subs[topic], pid)
			close(ch)
		}
	}
}

// Publish broadcasts the payload to all subscribers on the topic.
// Subscribers with full channels are skipped, not blocked on.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.subs[topic] {
		select {
		case ch <- New(p.pid, topic, payload):
		default:
		}
	}
}

// StopProcess closes all subscriber channels.
func (p *PubSub) StopProcess() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for topic := range p.subs {
		for pid, ch := range p.subs[topic] {
			delete(p.subs[topic], pid)
			close(ch)
		}
	}
}
