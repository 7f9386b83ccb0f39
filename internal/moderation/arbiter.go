package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
	"github.com/shift-devs/twitch-gamepad/internal/gamerunner"
	"github.com/shift-devs/twitch-gamepad/internal/sfx"
	"github.com/shift-devs/twitch-gamepad/internal/statestore"
	"github.com/shift-devs/twitch-gamepad/internal/status"
)

const permissionDeniedMsg = "You don't have permission to do that"

// Effects bundles the arbiter's outbound channels to the other three
// components. Each channel is owned exclusively by its receiver's run
// loop; the arbiter only ever sends.
type Effects struct {
	Scheduler  chan<- chatcmd.MovementPacket
	GameRunner chan<- gamerunner.Command
	Sfx        chan<- sfx.Request
	// Status is optional; sends are skipped (not blocked) when nil so the
	// status snapshot writer is not a required component.
	Status chan<- status.Update
}

func (a *Arbiter) pushStatus(u status.Update) {
	if a.effects.Status == nil {
		return
	}
	a.effects.Status <- u
}

// Arbiter is the single-threaded serializer over durable state (C2).
type Arbiter struct {
	store   *statestore.Store
	log     *slog.Logger
	effects Effects
	games   map[string]GameInfo

	mode        chatcmd.AnarchyMode
	cooldown    time.Duration
	currentGame *GameInfo
}

// New constructs an Arbiter. games maps a game's name (as matched by the
// parser's "tp game <name>" form) to its definition.
func New(store *statestore.Store, log *slog.Logger, effects Effects, games map[string]GameInfo) *Arbiter {
	return &Arbiter{
		store:   store,
		log:     log,
		effects: effects,
		games:   games,
		mode:    chatcmd.Democracy,
	}
}

// Init loads anarchy_mode and cooldown from the KV table, seeding
// defaults on first run and resetting to defaults (with a log warning)
// on a parse failure. If the restored mode is not Streaming, sound
// effects are disabled on startup.
func (a *Arbiter) Init() error {
	modeStr, ok, err := a.store.GetKV(statestore.AnarchyModeKey())
	if err != nil {
		return err
	}
	if !ok {
		a.mode = chatcmd.Democracy
		if err := a.store.SetKV(statestore.AnarchyModeKey(), a.mode.String()); err != nil {
			return err
		}
	} else if parsed, ok := chatcmd.ParseAnarchyMode(modeStr); ok {
		a.mode = parsed
	} else {
		a.log.Warn("unparseable anarchy_mode in config_kv, resetting to default", "value", modeStr)
		a.mode = chatcmd.Democracy
		if err := a.store.SetKV(statestore.AnarchyModeKey(), a.mode.String()); err != nil {
			return err
		}
	}

	cooldownStr, ok, err := a.store.GetKV(statestore.CooldownKey())
	if err != nil {
		return err
	}
	if !ok {
		a.cooldown = 0
		if err := a.store.SetKV(statestore.CooldownKey(), "0"); err != nil {
			return err
		}
	} else if ms, err := parseMillis(cooldownStr); err == nil {
		a.cooldown = time.Duration(ms) * time.Millisecond
	} else {
		a.log.Warn("unparseable cooldown in config_kv, resetting to default", "value", cooldownStr)
		a.cooldown = 0
		if err := a.store.SetKV(statestore.CooldownKey(), "0"); err != nil {
			return err
		}
	}

	if a.mode != chatcmd.Streaming {
		a.effects.Sfx <- sfx.Enable(false)
	}

	blockedNames, err := a.store.ListBlockedNames()
	if err != nil {
		return err
	}
	a.pushStatus(status.ModeUpdate(a.mode))
	a.pushStatus(status.CooldownUpdate(a.cooldown.Milliseconds()))
	a.pushStatus(status.BlockedCountUpdate(len(blockedNames)))
	return nil
}

func parseMillis(s string) (int64, error) {
	var ms int64
	_, err := fmt.Sscanf(s, "%d", &ms)
	if err != nil {
		return 0, err
	}
	return ms, nil
}

// Run consumes Requests until ctx is cancelled or the channel is
// closed. Every Request produces exactly one reply value delivered to
// its Reply channel; Run never blocks on that delivery since Reply is
// required to have capacity 1.
func (a *Arbiter) Run(ctx context.Context, requests <-chan Request) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-requests:
			if !ok {
				return nil
			}
			if req.CorrelationID != "" {
				a.log.Debug("handling request", "correlation_id", req.CorrelationID, "sender", req.Msg.SenderName)
			}
			reply := a.handle(req.Msg)
			req.Reply <- reply
		}
	}
}

func (a *Arbiter) handle(msg chatcmd.Message) *string {
	if err := a.store.UpsertUser(msg.SenderID, msg.SenderName); err != nil {
		a.log.Error("failed to upsert user", "err", err)
		return nil
	}

	priv := msg.PrivilegeAsserted
	if priv < chatcmd.Operator {
		isOp, err := a.store.IsOperator(msg.SenderID)
		if err != nil {
			a.log.Error("failed to check operator status", "err", err)
			return nil
		}
		if isOp {
			priv = chatcmd.Operator
		}
	}

	if priv < chatcmd.Operator {
		switch a.mode {
		case chatcmd.Restricted:
			return nil
		case chatcmd.Democracy:
			if a.cooldown > 0 {
				lapsed, err := a.store.TestAndSetCooldownLapsed(msg.SenderID, a.cooldown)
				if err != nil {
					a.log.Error("failed to test cooldown", "err", err)
					return nil
				}
				if !lapsed {
					return nil
				}
			}
		}
	}

	return a.dispatch(msg, priv)
}

func (a *Arbiter) dispatch(msg chatcmd.Message, priv chatcmd.Privilege) *string {
	cmd := msg.Command
	switch cmd.Kind {
	case chatcmd.KindMovement:
		return a.handleMovement(cmd.Packet, msg.SenderID)
	case chatcmd.KindSetAnarchyMode:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.setAnarchyMode(cmd.Mode) })
	case chatcmd.KindSetCooldown:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.setCooldown(cmd.Cooldown) })
	case chatcmd.KindGame:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.startGame(cmd.GameName) })
	case chatcmd.KindStop:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.stopGame() })
	case chatcmd.KindSaveState:
		return a.requirePriv(priv, chatcmd.Operator, func() *string { return a.synthetic(chatcmd.A) })
	case chatcmd.KindLoadState:
		return a.requirePriv(priv, chatcmd.Operator, func() *string { return a.synthetic(chatcmd.B) })
	case chatcmd.KindReset:
		return a.requirePriv(priv, chatcmd.Operator, func() *string { return a.synthetic(chatcmd.X) })
	case chatcmd.KindBlock:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.block(cmd) })
	case chatcmd.KindUnblock:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.unblock(cmd.Target) })
	case chatcmd.KindAddOperator:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.addOperator(cmd.Target) })
	case chatcmd.KindRemoveOperator:
		return a.requirePriv(priv, chatcmd.Moderator, func() *string { return a.removeOperator(cmd.Target) })
	case chatcmd.KindListBlocked:
		return a.listBlocked()
	case chatcmd.KindListOperators:
		return a.listOperators()
	case chatcmd.KindListGames:
		return a.listGames()
	case chatcmd.KindPrintHelp:
		return a.printHelp(priv)
	case chatcmd.KindPrintAnarchyMode:
		return strPtr(fmt.Sprintf("Current mode: %s", a.mode))
	case chatcmd.KindControls:
		return a.controls(cmd.GameName)
	case chatcmd.KindPlaySfx:
		return a.requirePriv(priv, chatcmd.Broadcaster, func() *string { return a.playSfx(cmd.SfxName) })
	case chatcmd.KindPartial:
		return strPtr(partialUsage(cmd.Hint))
	default:
		return nil
	}
}

func (a *Arbiter) requirePriv(have, need chatcmd.Privilege, fn func() *string) *string {
	if have < need {
		return strPtr(permissionDeniedMsg)
	}
	return fn()
}

func (a *Arbiter) handleMovement(p chatcmd.MovementPacket, senderID string) *string {
	if a.mode == chatcmd.Streaming {
		return nil
	}
	if a.mode != chatcmd.Anarchy {
		blocked, err := a.store.IsBlocked(senderID)
		if err != nil {
			a.log.Error("failed to check block status", "err", err)
			return nil
		}
		if blocked {
			return nil
		}
	}
	if a.mode != chatcmd.Restricted {
		if a.currentGame != nil && a.currentGame.Restricts(p) {
			return nil
		}
	}
	a.effects.Scheduler <- p
	return nil
}

func (a *Arbiter) synthetic(m chatcmd.Movement) *string {
	a.effects.Scheduler <- chatcmd.MovementPacket{
		Movements:  []chatcmd.Movement{chatcmd.Mode, m},
		DurationMS: 100,
		StaggerMS:  100,
		Blocking:   true,
	}
	return nil
}

func (a *Arbiter) setAnarchyMode(mode chatcmd.AnarchyMode) *string {
	wasStreaming := a.mode == chatcmd.Streaming
	if wasStreaming && mode != chatcmd.Streaming {
		a.effects.Sfx <- sfx.Enable(false)
	}
	a.mode = mode
	if err := a.store.SetKV(statestore.AnarchyModeKey(), mode.String()); err != nil {
		a.log.Error("failed to persist anarchy_mode", "err", err)
		return nil
	}
	if !wasStreaming && mode == chatcmd.Streaming {
		a.currentGame = nil
		a.effects.GameRunner <- gamerunner.Stop()
		a.effects.Sfx <- sfx.Enable(true)
		a.pushStatus(status.CurrentGameUpdate(""))
	}
	a.pushStatus(status.ModeUpdate(mode))
	return strPtr(fmt.Sprintf("Set mode to %s", mode))
}

func (a *Arbiter) setCooldown(d time.Duration) *string {
	a.cooldown = d
	ms := d.Milliseconds()
	if err := a.store.SetKV(statestore.CooldownKey(), fmt.Sprintf("%d", ms)); err != nil {
		a.log.Error("failed to persist cooldown", "err", err)
		return nil
	}
	a.pushStatus(status.CooldownUpdate(ms))
	return strPtr(fmt.Sprintf("Set cooldown to %d seconds", d/time.Second))
}

func (a *Arbiter) startGame(name string) *string {
	if a.mode == chatcmd.Streaming {
		return strPtr("Cannot start game in streaming mode, change mode first")
	}
	game, ok := a.games[name]
	if !ok {
		return strPtr(fmt.Sprintf("No game %s found, see full list with \"tp games\"", name))
	}
	a.currentGame = &game
	a.effects.GameRunner <- gamerunner.SwitchTo(game.Launch)
	a.pushStatus(status.CurrentGameUpdate(game.Name))
	return strPtr(fmt.Sprintf("Switched to %s", game.Name))
}

func (a *Arbiter) stopGame() *string {
	a.currentGame = nil
	a.effects.GameRunner <- gamerunner.Stop()
	a.pushStatus(status.CurrentGameUpdate(""))
	return nil
}

func (a *Arbiter) block(cmd chatcmd.Command) *string {
	found, err := a.store.BlockByName(cmd.Target, cmd.BlockUntil)
	if err != nil {
		a.log.Error("failed to block user", "err", err)
		return nil
	}
	if !found {
		return strPtr(fmt.Sprintf("No user %s found", cmd.Target))
	}
	a.pushBlockedCount()
	if cmd.HasDeadline && cmd.BlockUntil != nil {
		a.log.Info("blocked user", "target", cmd.Target, "until", cmd.BlockUntil.Format(time.RFC3339), "duration", humanize.Time(*cmd.BlockUntil))
		return strPtr(fmt.Sprintf("Blocked %s until %s", cmd.Target, cmd.BlockUntil.Format(time.RFC3339)))
	}
	a.log.Info("blocked user", "target", cmd.Target, "duration", "forever")
	return strPtr(fmt.Sprintf("Blocked %s forever", cmd.Target))
}

func (a *Arbiter) pushBlockedCount() {
	if a.effects.Status == nil {
		return
	}
	names, err := a.store.ListBlockedNames()
	if err != nil {
		a.log.Error("failed to refresh blocked count", "err", err)
		return
	}
	a.pushStatus(status.BlockedCountUpdate(len(names)))
}

func (a *Arbiter) unblock(name string) *string {
	found, err := a.store.UnblockByName(name)
	if err != nil {
		a.log.Error("failed to unblock user", "err", err)
		return nil
	}
	if !found {
		return strPtr(fmt.Sprintf("No user %s found", name))
	}
	a.pushBlockedCount()
	return strPtr(fmt.Sprintf("Unblocked %s", name))
}

func (a *Arbiter) addOperator(name string) *string {
	found, err := a.store.AddOperatorByName(name)
	if err != nil {
		a.log.Error("failed to add operator", "err", err)
		return nil
	}
	if !found {
		return strPtr(fmt.Sprintf("No user %s found", name))
	}
	return strPtr(fmt.Sprintf("Added %s as operator", name))
}

func (a *Arbiter) removeOperator(name string) *string {
	found, err := a.store.RemoveOperatorByName(name)
	if err != nil {
		a.log.Error("failed to remove operator", "err", err)
		return nil
	}
	if !found {
		return strPtr(fmt.Sprintf("No user %s found", name))
	}
	return strPtr(fmt.Sprintf("Removed %s as operator", name))
}

func (a *Arbiter) printHelp(priv chatcmd.Privilege) *string {
	lines := []string{
		`movement: <button...> [seconds] (e.g. "up 0.5")`,
		`tp games / tp game <name> / tp stop`,
		`tp mode [anarchy|democracy|restricted|streaming]`,
		`tp controls [game]`,
	}
	if priv >= chatcmd.Operator {
		lines = append(lines, `tp save / tp load / tp reset`)
	}
	if priv >= chatcmd.Moderator {
		lines = append(lines,
			`tp block <user> [duration] / tp unblock <user>`,
			`tp op <user> / tp deop <user>`,
			`tp cooldown <duration>`,
			`tp list block|op`,
		)
	}
	if priv >= chatcmd.Broadcaster {
		lines = append(lines, `tp sfx <name>`)
	}
	return strPtr(strings.Join(lines, " | "))
}

func (a *Arbiter) listBlocked() *string {
	names, err := a.store.ListBlockedNames()
	if err != nil {
		a.log.Error("failed to list blocked users", "err", err)
		return nil
	}
	if len(names) == 0 {
		return strPtr("No blocked users")
	}
	return strPtr("Blocked: " + joinComma(names))
}

func (a *Arbiter) listOperators() *string {
	names, err := a.store.ListOperatorNames()
	if err != nil {
		a.log.Error("failed to list operators", "err", err)
		return nil
	}
	if len(names) == 0 {
		return strPtr("No operators")
	}
	return strPtr("Operators: " + joinComma(names))
}

func (a *Arbiter) listGames() *string {
	if len(a.games) == 0 {
		return strPtr("No games configured")
	}
	names := make([]string, 0, len(a.games))
	for name := range a.games {
		names = append(names, name)
	}
	return strPtr("Games: " + joinComma(names))
}

func (a *Arbiter) controls(gameName string) *string {
	if gameName == "" {
		if a.currentGame == nil {
			return strPtr("No game running")
		}
		if a.currentGame.ControlsMsg == "" {
			return strPtr(fmt.Sprintf("No controls listed for %s", a.currentGame.Name))
		}
		return strPtr(a.currentGame.ControlsMsg)
	}
	game, ok := a.games[gameName]
	if !ok {
		return strPtr(fmt.Sprintf("No game %s found, see full list with \"tp games\"", gameName))
	}
	if game.ControlsMsg == "" {
		return strPtr(fmt.Sprintf("No controls listed for %s", game.Name))
	}
	return strPtr(game.ControlsMsg)
}

func (a *Arbiter) playSfx(name string) *string {
	a.effects.Sfx <- sfx.Named(name)
	return nil
}

func strPtr(s string) *string { return &s }

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

func partialUsage(hint chatcmd.PartialHint) string {
	switch hint {
	case chatcmd.HintBlock:
		return `usage: tp block <user> [duration]`
	case chatcmd.HintUnblock:
		return `usage: tp unblock <user>`
	case chatcmd.HintOp:
		return `usage: tp op <user>`
	case chatcmd.HintDeop:
		return `usage: tp deop <user>`
	case chatcmd.HintGame:
		return `usage: tp game <name>`
	case chatcmd.HintList:
		return `usage: tp list block|op`
	case chatcmd.HintCooldown:
		return `usage: tp cooldown <duration>`
	case chatcmd.HintSfx:
		return `usage: tp sfx <name>`
	case chatcmd.HintAnarchyMode:
		return `usage: tp mode anarchy|democracy|restricted|streaming`
	default:
		return `unrecognized command`
	}
}
