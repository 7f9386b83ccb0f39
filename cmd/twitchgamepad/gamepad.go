package main

import (
	"log/slog"

	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
)

// loggingGamepad is the default scheduler.Gamepad: it logs every press
// and release instead of driving a real virtual input device. Binding
// to an actual uinput/evdev device is out of scope; this is the
// boundary a real driver would sit behind.
type loggingGamepad struct {
	log *slog.Logger
}

func newLoggingGamepad(log *slog.Logger) *loggingGamepad {
	return &loggingGamepad{log: log}
}

func (g *loggingGamepad) Press(m chatcmd.Movement) error {
	g.log.Info("press", "button", m.String())
	return nil
}

func (g *loggingGamepad) Release(m chatcmd.Movement) error {
	g.log.Info("release", "button", m.String())
	return nil
}
