package scheduler

import (
	"sync"

	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
)

// traceGamepad records every press/release call in order for assertions.
// It never fails.
type traceGamepad struct {
	mu    sync.Mutex
	trace []string
}

func (g *traceGamepad) Press(m chatcmd.Movement) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trace = append(g.trace, "press("+m.String()+")")
	return nil
}

func (g *traceGamepad) Release(m chatcmd.Movement) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trace = append(g.trace, "release("+m.String()+")")
	return nil
}

func (g *traceGamepad) snapshot() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.trace))
	copy(out, g.trace)
	return out
}
