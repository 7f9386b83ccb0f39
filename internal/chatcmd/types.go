// Package chatcmd turns raw chat text into typed commands for the
// moderation arbiter. It has no side effects and no dependency on the
// transport, the database, or the scheduler.
package chatcmd

import "time"

// Movement is one button on the virtual gamepad.
type Movement int

const (
	A Movement = iota
	B
	C
	X
	Y
	Z
	TL
	TR
	Up
	Down
	Left
	Right
	Start
	Select
	Mode
)

func (m Movement) String() string {
	switch m {
	case A:
		return "A"
	case B:
		return "B"
	case C:
		return "C"
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	case TL:
		return "TL"
	case TR:
		return "TR"
	case Up:
		return "Up"
	case Down:
		return "Down"
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Start:
		return "Start"
	case Select:
		return "Select"
	case Mode:
		return "Mode"
	default:
		return "Unknown"
	}
}

// Directional reports whether m is one of the six movements subject to
// the scheduler's directional-priority rule.
func (m Movement) Directional() bool {
	switch m {
	case Up, Down, Left, Right, Start, Select:
		return true
	default:
		return false
	}
}

// MovementPacket is one unit of scheduler input.
type MovementPacket struct {
	Movements  []Movement
	DurationMS uint64
	StaggerMS  uint64
	Blocking   bool
}

// HasDirectional reports whether any movement in the packet is directional.
func (p MovementPacket) HasDirectional() bool {
	for _, m := range p.Movements {
		if m.Directional() {
			return true
		}
	}
	return false
}

// Contains reports whether m appears in the packet's movement list.
func (p MovementPacket) Contains(m Movement) bool {
	for _, pm := range p.Movements {
		if pm == m {
			return true
		}
	}
	return false
}

// Kind tags which field of Command is populated.
type Kind int

const (
	KindMovement Kind = iota
	KindAddOperator
	KindRemoveOperator
	KindBlock
	KindUnblock
	KindGame
	KindStop
	KindListBlocked
	KindListOperators
	KindListGames
	KindPrintHelp
	KindSaveState
	KindLoadState
	KindReset
	KindSetCooldown
	KindSetAnarchyMode
	KindPrintAnarchyMode
	KindPlaySfx
	KindControls
	KindPartial
)

// PartialHint is the usage-hint tag carried by a Partial command: the
// parser recognized the keyword but the arguments were missing or
// malformed.
type PartialHint int

const (
	HintBlock PartialHint = iota
	HintUnblock
	HintOp
	HintDeop
	HintGame
	HintList
	HintCooldown
	HintSfx
	HintAnarchyMode
)

// AnarchyMode is the channel-wide moderation posture.
type AnarchyMode int

const (
	Anarchy AnarchyMode = iota
	Democracy
	Restricted
	Streaming
)

func (m AnarchyMode) String() string {
	switch m {
	case Anarchy:
		return "anarchy"
	case Democracy:
		return "democracy"
	case Restricted:
		return "restricted"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// ParseAnarchyMode parses the textual form stored in config_kv and typed
// in chat (`tp mode <name>`).
func ParseAnarchyMode(s string) (AnarchyMode, bool) {
	switch s {
	case "anarchy":
		return Anarchy, true
	case "democracy":
		return Democracy, true
	case "restricted":
		return Restricted, true
	case "stream", "streaming":
		return Streaming, true
	default:
		return 0, false
	}
}

// Privilege is totally ordered; higher values may do more.
type Privilege int

const (
	Standard Privilege = iota
	Operator
	Moderator
	Broadcaster
)

// Command is a tagged union over every chat-originated action. Only the
// fields relevant to Kind are populated; this mirrors the teacher's
// tag+payload protocol messages rather than an interface hierarchy, since
// there is no behavior attached to individual variants.
type Command struct {
	Kind Kind

	Packet MovementPacket // KindMovement

	Target      string     // AddOperator/RemoveOperator/Block/Unblock
	BlockUntil  *time.Time // KindBlock, nil means indefinite
	HasDeadline bool       // KindBlock

	GameName string // KindGame, KindControls (optional)

	Cooldown time.Duration // KindSetCooldown
	Mode     AnarchyMode   // KindSetAnarchyMode

	SfxName string // KindPlaySfx

	Hint PartialHint // KindPartial
}

// Message is the unit delivered to the moderation arbiter.
type Message struct {
	Command           Command
	SenderID          string
	SenderName        string
	PrivilegeAsserted Privilege
}
