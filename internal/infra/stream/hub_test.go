package stream

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain/model"
)

func testHub() *Hub {
	l := zerolog.Nop()
	return NewHub(&l)
}

func rows(n int) []*model.Result {
	out := make([]*model.Result, n)
	for i := range out {
		out[i] = &model.Result{ID: fmt.Sprintf("id-%04d", i), JobID: "job-1"}
	}
	return out
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	h := testHub()

	_, sub1, err := h.Subscribe("job-1", func() ([]*model.Result, error) { return nil, nil })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub1.Close()
	_, sub2, err := h.Subscribe("job-1", func() ([]*model.Result, error) { return nil, nil })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub2.Close()

	if err := h.Publish("job-1", func() error { return nil }, rows(3)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, sub := range []*Subscription{sub1, sub2} {
		for i := 0; i < 3; i++ {
			select {
			case r := <-sub.C():
				if r.ID != fmt.Sprintf("id-%04d", i) {
					t.Errorf("row %d out of order: %s", i, r.ID)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for row")
			}
		}
	}
}

func TestHub_PersistFailureSkipsBroadcast(t *testing.T) {
	h := testHub()
	_, sub, _ := h.Subscribe("job-1", func() ([]*model.Result, error) { return nil, nil })
	defer sub.Close()

	wantErr := fmt.Errorf("db down")
	if err := h.Publish("job-1", func() error { return wantErr }, rows(1)); err != wantErr {
		t.Fatalf("expected persist error back, got %v", err)
	}

	select {
	case r := <-sub.C():
		t.Fatalf("unexpected row after failed persist: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_LaggingSubscriberIsDetached(t *testing.T) {
	h := testHub()
	_, sub, _ := h.Subscribe("job-1", func() ([]*model.Result, error) { return nil, nil })

	// Overflow the buffer without draining; the hub must cut the consumer
	// loose instead of blocking the publisher.
	if err := h.Publish("job-1", func() error { return nil }, rows(subscriberBuffer+10)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	n := 0
	for range sub.C() {
		n++
	}
	if n != subscriberBuffer {
		t.Errorf("expected exactly %d buffered rows before close, got %d", subscriberBuffer, n)
	}

	// Close after detach is a harmless no-op.
	sub.Close()
}

func TestHub_CloseDuringPublishDoesNotBlockPublisher(t *testing.T) {
	h := testHub()
	_, sub, _ := h.Subscribe("job-1", func() ([]*model.Result, error) { return nil, nil })

	// The subscriber starts closing while the publish is mid-flight and its
	// buffer is about to overflow. Close waits for the topic lock; Publish
	// must still run to completion.
	persist := func() error {
		go sub.Close()
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- h.Publish("job-1", persist, rows(subscriberBuffer+50)) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Publish did not return while a subscriber was closing")
	}

	// Whoever lost the race, the channel ends up closed, never leaked.
	for {
		select {
		case _, open := <-sub.C():
			if !open {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("subscription channel never closed")
		}
	}
}

func TestHub_EmptyTopicsAreSwept(t *testing.T) {
	h := testHub()

	// Publishing with no subscribers must not retain a topic.
	if err := h.Publish("job-1", func() error { return nil }, rows(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	// Neither must the last subscriber leaving.
	_, sub, _ := h.Subscribe("job-2", func() ([]*model.Result, error) { return nil, nil })
	sub.Close()

	h.mu.Lock()
	n := len(h.topics)
	h.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no retained topics, got %d", n)
	}

	// A later subscriber still gets live rows through a fresh topic.
	_, sub2, err := h.Subscribe("job-2", func() ([]*model.Result, error) { return nil, nil })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub2.Close()
	if err := h.Publish("job-2", func() error { return nil }, rows(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case <-sub2.C():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for row after resubscribe")
	}
}

func TestHub_SubscribeIsolatesJobs(t *testing.T) {
	h := testHub()
	_, other, _ := h.Subscribe("job-2", func() ([]*model.Result, error) { return nil, nil })
	defer other.Close()

	if err := h.Publish("job-1", func() error { return nil }, rows(2)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case r := <-other.C():
		t.Fatalf("row leaked across jobs: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SnapshotComesFromCallback(t *testing.T) {
	h := testHub()
	snap, sub, err := h.Subscribe("job-1", func() ([]*model.Result, error) {
		return rows(4), nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	if len(snap) != 4 {
		t.Errorf("expected snapshot of 4, got %d", len(snap))
	}
}
