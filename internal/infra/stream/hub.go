package stream

import (
	"sync"

	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain/model"
)

const subscriberBuffer = 256

// Hub fans newly published results out to per-job subscribers.
//
// Each job id maps to a topic guarded by its own mutex. Publish runs the
// persist step and the broadcast under that mutex, and Subscribe runs the
// snapshot read and the registration under the same mutex, so a subscriber
// never misses a row between its snapshot and its first live event, and
// never sees a row twice. Topics with no subscribers are removed so the map
// does not accumulate an entry per job.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topic
	log    *zerolog.Logger
}

type topic struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	gone bool // swept from the hub; lookups holding a stale pointer must retry
}

// Subscription is one attached stream consumer.
type Subscription struct {
	ch     chan *model.Result
	hub    *Hub
	t      *topic
	jobID  string
	closed bool // guarded by t.mu
}

// C delivers newly published results in publish order. The channel is closed
// when the subscription is cancelled or the consumer falls too far behind.
func (s *Subscription) C() <-chan *model.Result { return s.ch }

// Close detaches the subscription and releases its resources. Safe to call
// more than once; does not affect other subscribers, and never blocks an
// in-flight Publish beyond the topic lock.
func (s *Subscription) Close() {
	s.t.mu.Lock()
	if s.closed {
		s.t.mu.Unlock()
		return
	}
	s.closed = true
	delete(s.t.subs, s)
	close(s.ch)
	empty := len(s.t.subs) == 0
	s.t.mu.Unlock()

	if empty {
		s.hub.sweep(s.jobID, s.t)
	}
}

func NewHub(log *zerolog.Logger) *Hub {
	return &Hub{topics: make(map[string]*topic), log: log}
}

// lockTopic returns the job's topic with its mutex held, creating it on
// demand. A topic swept between lookup and lock is stale; retry.
func (h *Hub) lockTopic(jobID string) *topic {
	for {
		h.mu.Lock()
		t, ok := h.topics[jobID]
		if !ok {
			t = &topic{subs: make(map[*Subscription]struct{})}
			h.topics[jobID] = t
		}
		h.mu.Unlock()

		t.mu.Lock()
		if !t.gone {
			return t
		}
		t.mu.Unlock()
	}
}

// sweep removes the topic if it still belongs to the job and has no
// subscribers left.
func (h *Hub) sweep(jobID string, t *topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) == 0 && h.topics[jobID] == t {
		t.gone = true
		delete(h.topics, jobID)
	}
}

// Publish runs persist and, if it succeeds, broadcasts rows to every
// subscriber of the job. The two steps share the topic lock so no subscriber
// can attach between them.
func (h *Hub) Publish(jobID string, persist func() error, rows []*model.Result) error {
	t := h.lockTopic(jobID)

	if err := persist(); err != nil {
		t.mu.Unlock()
		return err
	}
	for sub := range t.subs {
		h.deliver(t, jobID, sub, rows)
	}
	empty := len(t.subs) == 0
	t.mu.Unlock()

	if empty {
		h.sweep(jobID, t)
	}
	return nil
}

// deliver runs under t.mu.
func (h *Hub) deliver(t *topic, jobID string, sub *Subscription, rows []*model.Result) {
	for _, r := range rows {
		select {
		case sub.ch <- r:
		default:
			// Consumer stopped draining; detach it so the publisher never
			// blocks. The client reconnects and re-snapshots.
			h.log.Warn().Str("job_id", jobID).Msg("dropping lagging stream subscriber")
			sub.closed = true
			delete(t.subs, sub)
			close(sub.ch)
			return
		}
	}
}

// Subscribe reads the current snapshot and registers a live subscription as
// one atomic step with respect to Publish.
func (h *Hub) Subscribe(jobID string, snapshot func() ([]*model.Result, error)) ([]*model.Result, *Subscription, error) {
	t := h.lockTopic(jobID)

	snap, err := snapshot()
	if err != nil {
		empty := len(t.subs) == 0
		t.mu.Unlock()
		if empty {
			h.sweep(jobID, t)
		}
		return nil, nil, err
	}
	sub := &Subscription{
		ch:    make(chan *model.Result, subscriberBuffer),
		hub:   h,
		t:     t,
		jobID: jobID,
	}
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	return snap, sub, nil
}
