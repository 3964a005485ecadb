package memory

import (
	"context"
	"fmt"
	"sync"

	"finanzas/internal/core"
)

// Mirror keeps mirrored events in memory. It backs the worker when no
// spreadsheet is configured, and tests.
type Mirror struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	fail   error
}

func New() *Mirror {
	return &Mirror{}
}

// AppendEvent stores the event and returns a synthetic row reference.
func (m *Mirror) AppendEvent(_ context.Context, ev core.LedgerEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	m.events = append(m.events, ev)
	return fmt.Sprintf("mem:%d", len(m.events)), nil
}

// Events returns a copy of everything appended so far.
func (m *Mirror) Events() []core.LedgerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.LedgerEvent(nil), m.events...)
}

// FailWith makes subsequent appends return err until called with nil.
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}
