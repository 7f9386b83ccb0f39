// Package moderation implements the privileged-action arbitration stage
// (C2): privilege elevation, block/cooldown/mode gating, and dispatch of
// accepted commands to the scheduler, game supervisor, and sound-effect
// dispatcher. It is the sole owner of the durable state handle - no
// other component mutates user/block/operator/cooldown/kv data.
package moderation

import (
	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
)

// GameInfo describes one configured game: its launch command, the
// movements it declares off limits in every anarchy mode except
// Restricted, and an optional controls blurb shown by the Controls
// command.
type GameInfo struct {
	Name             string
	Launch           []string
	RestrictedInputs map[chatcmd.Movement]bool
	ControlsMsg      string
}

// Restricts reports whether the game forbids any movement in p.
func (g GameInfo) Restricts(p chatcmd.MovementPacket) bool {
	for _, m := range p.Movements {
		if g.RestrictedInputs[m] {
			return true
		}
	}
	return false
}

// Request is one unit of work handed to the arbiter: a parsed command
// plus the asserted sender identity and a single-use reply channel.
// Reply must have capacity 1 so the arbiter never blocks sending it.
type Request struct {
	Msg   chatcmd.Message
	Reply chan<- *string

	// CorrelationID ties this request's log lines back to the chat event
	// that produced it. Optional; empty when the caller doesn't care.
	CorrelationID string
}
