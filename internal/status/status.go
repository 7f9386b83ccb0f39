// Package status persists a small JSON snapshot of the bot's current
// mode, game, cooldown, and blocked-user count, each time one changes, for
// stream-overlay consumption. It subscribes to the moderation
// arbiter's effect stream rather than touching the state store
// directly, keeping the arbiter the sole owner of durable state.
package status

import (
	"context"
	"log/slog"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
)

// Snapshot is the JSON document written to disk.
type Snapshot struct {
	Mode         string `json:"mode"`
	CooldownMS   int64  `json:"cooldown_ms"`
	CurrentGame  string `json:"current_game"`
	BlockedCount int    `json:"blocked_count"`
}

// Update is one field change pushed onto the writer's channel. Only
// its non-nil fields are meaningful; Writer.Run applies them to its
// in-memory snapshot and rewrites the file.
type Update struct {
	Mode         *chatcmd.AnarchyMode
	CooldownMS   *int64
	CurrentGame  *string // non-nil empty string clears it
	BlockedCount *int
}

// Writer owns the snapshot file. Exactly one goroutine should call Run.
type Writer struct {
	log  *slog.Logger
	path string
	snap Snapshot
}

// New constructs a Writer, attempting to restore the last snapshot
// from path (crash-recovery); a missing or corrupt file just starts
// from the zero snapshot.
func New(log *slog.Logger, path string) *Writer {
	w := &Writer{log: log, path: path}
	w.restore()
	return w
}

func (w *Writer) restore() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	result := gjson.ParseBytes(raw)
	if !result.Exists() {
		return
	}
	w.snap = Snapshot{
		Mode:         result.Get("mode").String(),
		CooldownMS:   result.Get("cooldown_ms").Int(),
		CurrentGame:  result.Get("current_game").String(),
		BlockedCount: int(result.Get("blocked_count").Int()),
	}
}

// Run consumes Updates until ctx is cancelled or updates is closed,
// rewriting the snapshot file on every change.
func (w *Writer) Run(ctx context.Context, updates <-chan Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			w.apply(u)
			if err := w.write(); err != nil {
				w.log.Error("failed to write status snapshot", "err", err)
			}
		}
	}
}

func (w *Writer) apply(u Update) {
	if u.Mode != nil {
		w.snap.Mode = u.Mode.String()
	}
	if u.CooldownMS != nil {
		w.snap.CooldownMS = *u.CooldownMS
	}
	if u.CurrentGame != nil {
		w.snap.CurrentGame = *u.CurrentGame
	}
	if u.BlockedCount != nil {
		w.snap.BlockedCount = *u.BlockedCount
	}
}

func (w *Writer) write() error {
	doc := "{}"
	var err error
	doc, err = sjson.Set(doc, "mode", w.snap.Mode)
	if err != nil {
		return err
	}
	doc, err = sjson.Set(doc, "cooldown_ms", w.snap.CooldownMS)
	if err != nil {
		return err
	}
	doc, err = sjson.Set(doc, "current_game", w.snap.CurrentGame)
	if err != nil {
		return err
	}
	doc, err = sjson.Set(doc, "blocked_count", w.snap.BlockedCount)
	if err != nil {
		return err
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

func ModeUpdate(m chatcmd.AnarchyMode) Update { return Update{Mode: &m} }
func CooldownUpdate(ms int64) Update          { return Update{CooldownMS: &ms} }
func CurrentGameUpdate(name string) Update    { return Update{CurrentGame: &name} }
func BlockedCountUpdate(count int) Update     { return Update{BlockedCount: &count} }
