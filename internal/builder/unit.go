package builder

import (
	"fmt"
	"slices"
)

type Kind int

const (
	KindScript Kind = iota
	KindWorker
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindWorker:
		return "worker"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type State int

const (
	StateDeclared State = iota
	StateGraphConstructing
	StateEmitting
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDeclared:
		return "declared"
	case StateGraphConstructing:
		return "graph-constructing"
	case StateEmitting:
		return "emitting"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateDeclared:          {StateGraphConstructing, StateFailed},
	StateGraphConstructing: {StateEmitting, StateFailed},
	StateEmitting:          {StateComplete, StateFailed},
}

// Unit is one independently built bundle. A worker unit declared on an
// Orchestrator is a template: every parent build gets a fresh copy, so state
// never leaks between invocations.
type Unit struct {
	ID            string
	Kind          Kind
	Entry         string // worker units
	Filename      string
	ChunkFilename string
	Plugins       []Plugin

	state State
}

func NewWorker(id, entry, filename string, plugins ...Plugin) *Unit {
	return &Unit{
		ID:       id,
		Kind:     KindWorker,
		Entry:    entry,
		Filename: filename,
		Plugins:  plugins,
	}
}

func (u *Unit) State() State {
	return u.state
}

func (u *Unit) transition(to State) error {
	if !slices.Contains(transitions[u.state], to) {
		return fmt.Errorf("unit %q: invalid transition %v -> %v", u.ID, u.state, to)
	}
	u.state = to
	return nil
}

func (u *Unit) fresh() *Unit {
	return &Unit{
		ID:            u.ID,
		Kind:          u.Kind,
		Entry:         u.Entry,
		Filename:      u.Filename,
		ChunkFilename: u.ChunkFilename,
		Plugins:       slices.Clone(u.Plugins),
	}
}
