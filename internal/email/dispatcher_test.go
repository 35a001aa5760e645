package email

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	block chan struct{}
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcher_DeliversAndDrains(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(zap.NewNop(), sender, 2, 10)

	for i := 0; i < 5; i++ {
		if err := d.Enqueue(Job{Kind: "otp", Message: Message{To: "user@example.com"}}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if sender.count() != 5 {
		t.Fatalf("expected 5 messages sent, got %d", sender.count())
	}
	stats := d.Stats()
	if stats.Enqueued != 5 || stats.Sent != 5 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDispatcher_SendFailuresAreCounted(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := NewDispatcher(zap.NewNop(), sender, 1, 10)

	if err := d.Enqueue(Job{Kind: "login", Message: Message{To: "user@example.com"}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if stats := d.Stats(); stats.Failed != 1 || stats.Sent != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDispatcher_QueueFullDoesNotBlock(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := NewDispatcher(zap.NewNop(), sender, 1, 1)

	// El worker toma el primero y queda bloqueado; el segundo llena la cola.
	_ = d.Enqueue(Job{Kind: "otp"})
	deadline := time.Now().Add(time.Second)
	var err error
	for time.Now().Before(deadline) {
		if err = d.Enqueue(Job{Kind: "otp"}); errors.Is(err, ErrQueueFull) {
			break
		}
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(sender.block)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if d.Stats().Dropped == 0 {
		t.Fatalf("expected dropped jobs to be counted")
	}
}

func TestDispatcher_EnqueueAfterShutdown(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), &recordingSender{}, 1, 1)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := d.Enqueue(Job{Kind: "otp"}); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestDisabledSender(t *testing.T) {
	s := NewDisabledSender(zap.NewNop(), "smtp not configured in production")
	if err := s.Send(context.Background(), Message{To: "user@example.com"}); !errors.Is(err, ErrSenderDisabled) {
		t.Fatalf("expected ErrSenderDisabled, got %v", err)
	}
}

func TestPreviewSender(t *testing.T) {
	s := NewPreviewSender(zap.NewNop())
	if err := s.Send(context.Background(), Message{To: "user@example.com"}); err != nil {
		t.Fatalf("expected preview send to succeed, got %v", err)
	}
}
