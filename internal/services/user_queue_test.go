package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestUserQueueSerializesSameUser(t *testing.T) {
	q := NewUserQueue()
	var (
		running int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Do(context.Background(), 7, func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one concurrent call, saw %d", maxSeen)
	}
	if q.Len() != 0 {
		t.Fatalf("expected idle queue, got %d entries", q.Len())
	}
}

func TestUserQueueDifferentUsersDoNotBlock(t *testing.T) {
	q := NewUserQueue()
	release := make(chan struct{})
	started := make(chan struct{})

	go q.Do(context.Background(), 1, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	called := false
	if err := q.Do(ctx, 2, func(context.Context) error {
		called = true
		return nil
	}); err != nil || !called {
		t.Fatalf("expected user 2 to run, called=%v err=%v", called, err)
	}
	close(release)
}

func TestUserQueueHonoursContext(t *testing.T) {
	q := NewUserQueue()
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		q.Do(context.Background(), 1, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Do(ctx, 1, func(context.Context) error {
		t.Error("fn must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	<-done
	if q.Len() != 0 {
		t.Fatalf("expected idle queue, got %d entries", q.Len())
	}
}

func TestUserQueuePropagatesError(t *testing.T) {
	q := NewUserQueue()
	boom := errors.New("boom")
	if err := q.Do(context.Background(), 3, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
