package core

import (
	"fmt"
	"time"
)

// Action names a change to the ledger.
type Action string

const (
	ActionRecorded Action = "recorded"
	ActionEdited   Action = "edited"
	ActionDeleted  Action = "deleted"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionRecorded, ActionEdited, ActionDeleted:
		return true
	}
	return false
}

// LedgerEvent carries the state of a movement after a change, or its last
// state for a deletion.
type LedgerEvent struct {
	Action   Action
	Movement Movement
	At       time.Time
}

func (e LedgerEvent) Validate() error {
	if !e.Action.Valid() {
		return fmt.Errorf("invalid action %q", e.Action)
	}
	if e.Movement.ID <= 0 {
		return fmt.Errorf("invalid movement id %d", e.Movement.ID)
	}
	return e.Movement.Validate()
}
