// Package scheduler implements the input scheduler (C3): a single-task
// cooperative loop on a fixed 100ms tick that queues, arbitrates, and
// dispatches button-press packets onto a virtual gamepad.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
)

const tickInterval = 100 * time.Millisecond

// Gamepad is the virtual-device driver the scheduler presses and
// releases buttons on. Both operations are infallible from the
// scheduler's perspective; an error is treated as fatal and terminates
// Run.
type Gamepad interface {
	Press(m chatcmd.Movement) error
	Release(m chatcmd.Movement) error
}

// Scheduler multiplexes overlapping, directional-priority, and blocking
// MovementPackets onto a Gamepad.
type Scheduler struct {
	pad Gamepad
	log *slog.Logger

	remaining     map[chatcmd.Movement]time.Duration
	queue         []chatcmd.MovementPacket
	applyNextTick *chatcmd.MovementPacket
	draining      bool
}

func New(pad Gamepad, log *slog.Logger) *Scheduler {
	return &Scheduler{
		pad:       pad,
		log:       log,
		remaining: make(map[chatcmd.Movement]time.Duration),
	}
}

// Run consumes packets from in on a 100ms tick until in is closed, then
// drains the queue and any active buttons before returning.
func (s *Scheduler) Run(ctx context.Context, in <-chan chatcmd.MovementPacket) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		if s.draining && len(s.queue) == 0 && !s.anyActive() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-in:
			if !ok {
				s.draining = true
				in = nil
				continue
			}
			accepted, err := s.processPacket(p, false)
			if err != nil {
				return err
			}
			if !accepted {
				s.queue = append(s.queue, p)
			}
		case <-ticker.C:
			if err := s.tick(); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) tick() error {
	for m, rem := range s.remaining {
		rem -= tickInterval
		if rem <= 0 {
			if err := s.pad.Release(m); err != nil {
				return err
			}
			delete(s.remaining, m)
		} else {
			s.remaining[m] = rem
		}
	}

	// The queue-draining check below reads the post-release-only state,
	// before apply_next_tick has a chance to occupy the gamepad again.
	noneActiveAfterRelease := !s.anyActive()

	if s.applyNextTick != nil {
		pkt := *s.applyNextTick
		for _, m := range pkt.Movements {
			if err := s.pad.Press(m); err != nil {
				return err
			}
			s.remaining[m] = time.Duration(pkt.DurationMS) * time.Millisecond
		}
		s.applyNextTick = nil
	}

	if noneActiveAfterRelease {
		for len(s.queue) > 0 {
			accepted, err := s.processPacket(s.queue[0], true)
			if err != nil {
				return err
			}
			if !accepted {
				break
			}
			s.queue = s.queue[1:]
		}
	}
	return nil
}

// processPacket implements the five-step arbitration rule. ticking is
// true only when called from the queue-drain step of tick().
func (s *Scheduler) processPacket(p chatcmd.MovementPacket, ticking bool) (bool, error) {
	if p.Blocking {
		if s.anyActive() {
			return false, nil
		}
		if err := s.runBlocking(p); err != nil {
			return false, err
		}
		return true, nil
	}

	if !ticking && len(s.queue) > 0 {
		return false, nil
	}

	if p.HasDirectional() {
		released := false
		for m, rem := range s.remaining {
			if rem <= 0 {
				continue
			}
			if m.Directional() || p.Contains(m) {
				if err := s.pad.Release(m); err != nil {
					return false, err
				}
				delete(s.remaining, m)
				released = true
			}
		}
		if released {
			pkt := p
			s.applyNextTick = &pkt
			return true, nil
		}
	}

	allInactive := true
	for _, m := range p.Movements {
		if rem, ok := s.remaining[m]; ok && rem > 0 {
			allInactive = false
			break
		}
	}
	if allInactive {
		for _, m := range p.Movements {
			if err := s.pad.Press(m); err != nil {
				return false, err
			}
			s.remaining[m] = time.Duration(p.DurationMS) * time.Millisecond
		}
		return true, nil
	}

	return false, nil
}

// runBlocking executes a blocking packet end to end, synchronously,
// with no interleaving: press in order (staggered), hold for duration,
// release in reverse order (staggered), then a fixed 50ms settle.
func (s *Scheduler) runBlocking(p chatcmd.MovementPacket) error {
	stagger := time.Duration(p.StaggerMS) * time.Millisecond
	duration := time.Duration(p.DurationMS) * time.Millisecond

	for i, m := range p.Movements {
		if err := s.pad.Press(m); err != nil {
			return err
		}
		if stagger > 0 && i < len(p.Movements)-1 {
			time.Sleep(stagger)
		}
	}
	time.Sleep(duration)
	for i := len(p.Movements) - 1; i >= 0; i-- {
		if err := s.pad.Release(p.Movements[i]); err != nil {
			return err
		}
		if stagger > 0 && i > 0 {
			time.Sleep(stagger)
		}
	}
	time.Sleep(50 * time.Millisecond)
	return nil
}

func (s *Scheduler) anyActive() bool {
	for _, rem := range s.remaining {
		if rem > 0 {
			return true
		}
	}
	return false
}
