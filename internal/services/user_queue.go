package services

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// UserQueue runs at most one function at a time per user. Callers for the
// same user wait their turn; different users never block each other.
type UserQueue struct {
	mu      sync.Mutex
	entries map[int64]*queueEntry
}

type queueEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewUserQueue() *UserQueue {
	return &UserQueue{entries: make(map[int64]*queueEntry)}
}

// Do runs fn once the user's slot is free. If ctx ends first, fn is not
// run and ctx's error is returned.
func (q *UserQueue) Do(ctx context.Context, userID int64, fn func(context.Context) error) error {
	e := q.retain(userID)
	defer q.release(userID)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	return fn(ctx)
}

// Len is the number of users with a running or waiting call.
func (q *UserQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *UserQueue) retain(userID int64) *queueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[userID]
	if !ok {
		e = &queueEntry{sem: semaphore.NewWeighted(1)}
		q.entries[userID] = e
	}
	e.refs++
	return e
}

func (q *UserQueue) release(userID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.entries[userID]
	e.refs--
	if e.refs == 0 {
		delete(q.entries, userID)
	}
}
