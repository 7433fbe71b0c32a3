package bus

import (
	"context"
	"sync"

	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/metrics"
)

// DefaultBuffer is the per-subscriber queue length of a Local bus.
const DefaultBuffer = 32

// Local fans messages out to subscribers in the same process. A subscriber
// whose queue is full misses the message rather than blocking the publisher.
type Local struct {
	mu     sync.RWMutex
	subs   map[*localSub]struct{}
	closed bool
	buffer int
	log    logger.Logger
}

func NewLocal(log logger.Logger) *Local {
	if log == nil {
		log = logger.Nop()
	}
	return &Local{subs: make(map[*localSub]struct{}), buffer: DefaultBuffer, log: log}
}

func (b *Local) Publish(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := b.fanOut(msg); err != nil {
		return err
	}
	metrics.BusEventsTotal.WithLabelValues(string(msg.Type), "published").Inc()
	return nil
}

// fanOut hands msg to every subscriber queue.
func (b *Local) fanOut(msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for s := range b.subs {
		if !s.deliver(msg) {
			metrics.BusEventsTotal.WithLabelValues(string(msg.Type), "dropped").Inc()
			b.log.Warn("bus subscriber queue full, message dropped", logger.String("type", string(msg.Type)))
		}
	}
	return nil
}

func (b *Local) Subscribe(_ context.Context) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &localSub{bus: b, ch: make(chan Message, b.buffer)}
	b.subs[s] = struct{}{}
	return s, nil
}

// Close ends every subscription.
func (b *Local) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*localSub]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.shut()
	}
	return nil
}

type localSub struct {
	bus    *Local
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

func (s *localSub) C() <-chan Message { return s.ch }

func (s *localSub) deliver(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *localSub) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *localSub) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.shut()
	return nil
}
