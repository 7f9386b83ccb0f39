// Package chatgw is the chat transport adapter (XPORT). Message
// transport protocol compliance is out of scope; this package only
// defines the boundary interfaces the rest of the pipeline consumes
// and one concrete, swappable implementation for local development: a
// websocket-fed relay reading newline-delimited JSON, grounded on the
// teacher's internal/turn Socket/WSClient pattern.
package chatgw

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
	"github.com/shift-devs/twitch-gamepad/internal/turn"
)

// Event is one chat line, already resolved to a sender identity and an
// asserted privilege level by the relay (e.g. from Twitch IRC tags).
type Event struct {
	SenderID          string
	SenderName        string
	PrivilegeAsserted chatcmd.Privilege
	RawText           string
}

// Source produces chat Events until ctx is cancelled.
type Source interface {
	OnEvent(func(Event))
	Run(ctx context.Context) error
}

// SubSource produces cumulative sub-gift counts until ctx is cancelled.
type SubSource interface {
	OnSubGift(func(count uint64))
	Run(ctx context.Context) error
}

// wireMessage is the newline-delimited JSON shape read from the relay.
// Exactly one of the two payload shapes is populated per "type".
type wireMessage struct {
	Type       string `json:"type"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Privilege  string `json:"privilege"`
	Text       string `json:"text"`
	Count      uint64 `json:"count"`
}

// Gateway is a single websocket connection multiplexing both chat
// events and sub-gift counts, distinguished by the wire message's
// "type" field. It implements both Source and SubSource.
type Gateway struct {
	log       *slog.Logger
	client    *turn.WSClient
	onEvent   func(Event)
	onSubGift func(uint64)
}

// NewGateway wraps an already-dialed socket (turn.RealDialer for a
// live relay, turn.NewFakeSocket for tests).
func NewGateway(log *slog.Logger, sock turn.Socket) *Gateway {
	g := &Gateway{log: log, client: turn.NewWSClient(sock)}
	g.client.OnText(g.handleLine)
	return g
}

func (g *Gateway) OnEvent(fn func(Event))       { g.onEvent = fn }
func (g *Gateway) OnSubGift(fn func(count uint64)) { g.onSubGift = fn }

// Run reads lines from the relay until ctx is cancelled or the
// connection closes.
func (g *Gateway) Run(ctx context.Context) error {
	return g.client.Run(ctx)
}

func (g *Gateway) handleLine(line string) {
	var msg wireMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		g.log.Warn("discarding malformed relay message", "err", err)
		return
	}
	switch msg.Type {
	case "chat":
		if g.onEvent == nil {
			return
		}
		priv, ok := parsePrivilege(msg.Privilege)
		if !ok {
			g.log.Warn("unknown privilege in relay message, treating as standard", "privilege", msg.Privilege)
		}
		g.onEvent(Event{
			SenderID:          msg.SenderID,
			SenderName:        msg.SenderName,
			PrivilegeAsserted: priv,
			RawText:           msg.Text,
		})
	case "sub_gift":
		if g.onSubGift != nil {
			g.onSubGift(msg.Count)
		}
	default:
		g.log.Warn("unknown relay message type", "type", msg.Type)
	}
}

func parsePrivilege(s string) (chatcmd.Privilege, bool) {
	switch s {
	case "broadcaster":
		return chatcmd.Broadcaster, true
	case "moderator":
		return chatcmd.Moderator, true
	case "operator":
		return chatcmd.Operator, true
	case "standard", "":
		return chatcmd.Standard, true
	default:
		return chatcmd.Standard, false
	}
}
