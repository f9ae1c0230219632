// Package scene holds the per-area scene controllers the dispatch table
// drives. Each controller tracks the state it last applied and forwards every
// change to a Sink, normally the websocket link to the engine.
package scene

import (
	log "log/slog"
	"strings"
	"sync"
)

const (
	TargetLight = "light"
	TargetWall  = "wall"
	TargetPlant = "plant"
)

// Command is one scene mutation as sent to the engine.
type Command struct {
	Target string `json:"target"`
	Area   string `json:"area"`
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
	Extra  string `json:"extra,omitempty"`
}

type Sink interface {
	Apply(cmd Command) error
}

type SinkFunc func(Command) error

func (f SinkFunc) Apply(cmd Command) error { return f(cmd) }

// LogSink only logs commands, for running without an engine attached.
var LogSink Sink = SinkFunc(func(cmd Command) error {
	log.Info("Scene command", "target", cmd.Target, "area", cmd.Area, "action", cmd.Action, "value", cmd.Value)
	return nil
})

// areaIndex resolves area names case-insensitively to their configured spelling.
type areaIndex[T any] struct {
	mu    sync.Mutex
	names map[string]string
	state map[string]*T
}

func newAreaIndex[T any](areas []string, init func() T) *areaIndex[T] {
	idx := &areaIndex[T]{
		names: make(map[string]string, len(areas)),
		state: make(map[string]*T, len(areas)),
	}
	for _, a := range areas {
		key := strings.ToLower(strings.TrimSpace(a))
		if key == "" {
			continue
		}
		if _, dup := idx.names[key]; dup {
			continue
		}
		v := init()
		idx.names[key] = a
		idx.state[key] = &v
	}
	return idx
}

// update runs fn on the area's state under the lock. It reports false for unknown areas.
func (idx *areaIndex[T]) update(area string, fn func(name string, st *T)) bool {
	key := strings.ToLower(strings.TrimSpace(area))

	idx.mu.Lock()
	defer idx.mu.Unlock()

	st, ok := idx.state[key]
	if !ok {
		return false
	}
	fn(idx.names[key], st)
	return true
}

// snapshot copies every area's state, passing each through clone when set.
func (idx *areaIndex[T]) snapshot(clone func(T) T) map[string]T {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make(map[string]T, len(idx.state))
	for key, st := range idx.state {
		v := *st
		if clone != nil {
			v = clone(v)
		}
		out[idx.names[key]] = v
	}
	return out
}

func forward(sink Sink, cmd Command) {
	if sink == nil {
		return
	}
	if err := sink.Apply(cmd); err != nil {
		log.Error("Failed to forward scene command", "target", cmd.Target, "area", cmd.Area, "action", cmd.Action, "err", err)
	}
}
