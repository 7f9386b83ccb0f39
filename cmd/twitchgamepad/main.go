// Command twitchgamepad is the entrypoint wiring all five pipeline
// components (C1-C5), the state store, the chat transport adapter, and
// the status snapshot writer together under the lifecycle manager.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/shift-devs/twitch-gamepad/internal/chatcmd"
	"github.com/shift-devs/twitch-gamepad/internal/chatgw"
	"github.com/shift-devs/twitch-gamepad/internal/command"
	"github.com/shift-devs/twitch-gamepad/internal/config"
	"github.com/shift-devs/twitch-gamepad/internal/db"
	"github.com/shift-devs/twitch-gamepad/internal/gamerunner"
	"github.com/shift-devs/twitch-gamepad/internal/lifecycle"
	"github.com/shift-devs/twitch-gamepad/internal/logging"
	"github.com/shift-devs/twitch-gamepad/internal/moderation"
	"github.com/shift-devs/twitch-gamepad/internal/scheduler"
	"github.com/shift-devs/twitch-gamepad/internal/sfx"
	"github.com/shift-devs/twitch-gamepad/internal/statestore"
	"github.com/shift-devs/twitch-gamepad/internal/status"
	"github.com/shift-devs/twitch-gamepad/internal/turn"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			gamerunner.KillRecordedChild()
			panic(r)
		}
	}()

	app := command.BuildApp(command.Deps{
		RunServe:     runServe,
		RunMigrateUp: runMigrateUp,
		PrintMode:    printMode,
		SetCooldown:  setCooldown,
	})

	if err := app.Run(os.Args); err != nil {
		logging.NewLogger(logging.Options{Component: "twitchgamepad"}).Error("fatal", "err", err)
		os.Exit(1)
	}
}

func runMigrateUp(ctx context.Context, cfg config.Config, configPath string) error {
	gdb, err := db.OpenSQLiteGORMWithMigrations(cfg.Runtime.DatabasePath)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func printMode(ctx context.Context, cfg config.Config, configPath string) (string, error) {
	gdb, err := db.OpenSQLiteGORMWithMigrations(cfg.Runtime.DatabasePath)
	if err != nil {
		return "", err
	}
	store, err := statestore.Open(gdb)
	if err != nil {
		return "", err
	}
	defer store.Close()

	modeStr, ok, err := store.GetKV(statestore.AnarchyModeKey())
	if err != nil {
		return "", err
	}
	if !ok {
		return chatcmd.Democracy.String(), nil
	}
	return modeStr, nil
}

func setCooldown(ctx context.Context, cfg config.Config, configPath string, seconds int) error {
	gdb, err := db.OpenSQLiteGORMWithMigrations(cfg.Runtime.DatabasePath)
	if err != nil {
		return err
	}
	store, err := statestore.Open(gdb)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SetKV(statestore.CooldownKey(), strconv.Itoa(seconds*1000))
}

func runServe(ctx context.Context, cfg config.Config, configPath string) error {
	log := logging.NewLogger(logging.Options{Level: cfg.Runtime.LogLevel, Component: "twitchgamepad"})

	gdb, err := db.OpenSQLiteGORMWithMigrations(cfg.Runtime.DatabasePath)
	if err != nil {
		return err
	}
	store, err := statestore.Open(gdb)
	if err != nil {
		return err
	}
	defer store.Close()

	games, err := buildGames(cfg)
	if err != nil {
		return err
	}

	schedulerIn := make(chan chatcmd.MovementPacket, 100)
	gamerunnerIn := make(chan gamerunner.Command, 20)
	sfxQueue := sfx.NewUnbounded()
	requests := make(chan moderation.Request, 100)
	statusUpdates := make(chan status.Update, 32)

	arbiter := moderation.New(store, log.With("part", "moderation"), moderation.Effects{
		Scheduler:  schedulerIn,
		GameRunner: gamerunnerIn,
		Sfx:        sfxQueue.In(),
		Status:     statusUpdates,
	}, games)
	if err := arbiter.Init(); err != nil {
		return err
	}

	pad := newLoggingGamepad(log.With("part", "gamepad"))
	sched := scheduler.New(pad, log.With("part", "scheduler"))
	runner := gamerunner.New(log.With("part", "gamerunner"))
	dispatcher := sfx.New(log.With("part", "sfx"), buildSfxConfig(cfg))
	statusWriter := status.New(log.With("part", "status"), cfg.Runtime.StatusPath)

	relayURL := cfg.Twitch.RelayURL
	if cfg.Twitch.RelayRegisterURL != "" {
		session, err := chatgw.NewRelayRegistrar(cfg.Twitch.RelayRegisterURL).Register(ctx)
		if err != nil {
			return fmt.Errorf("relay registration: %w", err)
		}
		relayURL = session.WSURL
		log.Info("registered with relay", "session_id", session.SessionID)
	}

	sock, err := turn.RealDialer{}.Dial(ctx, relayURL)
	if err != nil {
		return err
	}
	gateway := chatgw.NewGateway(log.With("part", "chatgw"), sock)
	gateway.OnEvent(func(e chatgw.Event) {
		handleChatEvent(ctx, log, requests, e)
	})
	gateway.OnSubGift(func(count uint64) {
		sfxQueue.In() <- sfx.SubEvent(count)
	})

	mgr := lifecycle.NewManager()
	mgr.AddRun("scheduler", func(ctx context.Context) error { return sched.Run(ctx, schedulerIn) })
	mgr.AddRun("gamerunner", func(ctx context.Context) error { return runner.Run(ctx, gamerunnerIn) })
	mgr.AddRun("sfx", func(ctx context.Context) error { return dispatcher.Run(ctx, sfxQueue.Out()) })
	mgr.AddRun("moderation", func(ctx context.Context) error { return arbiter.Run(ctx, requests) })
	mgr.AddRun("status", func(ctx context.Context) error { return statusWriter.Run(ctx, statusUpdates) })
	mgr.AddRun("chatgw", func(ctx context.Context) error { return gateway.Run(ctx) })

	mgr.AddShutdown("gamerunner-reap", func(ctx context.Context) error {
		gamerunnerIn <- gamerunner.Stop()
		return nil
	})
	mgr.AddShutdown("state-store", func(ctx context.Context) error { return store.Close() })

	return mgr.StartAndWait(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func handleChatEvent(ctx context.Context, log *slog.Logger, requests chan<- moderation.Request, e chatgw.Event) {
	cmd, ok := chatcmd.Parse(e.RawText)
	if !ok {
		return
	}
	reply := make(chan *string, 1)
	req := moderation.Request{
		Msg: chatcmd.Message{
			Command:           cmd,
			SenderID:          e.SenderID,
			SenderName:        e.SenderName,
			PrivilegeAsserted: e.PrivilegeAsserted,
		},
		Reply:         reply,
		CorrelationID: newCorrelationID(),
	}
	select {
	case requests <- req:
	case <-ctx.Done():
		return
	}
	select {
	case msg := <-reply:
		if msg != nil {
			log.Info("chat reply", "correlation_id", req.CorrelationID, "text", *msg)
		}
	case <-ctx.Done():
	}
}

// newCorrelationID generates a short per-request ID for tying a chat
// event's log lines together across the gateway, moderation, and
// downstream component logs.
func newCorrelationID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// buildGames converts the config file's [games.<name>] tables into the
// moderation arbiter's GameInfo map: splitting the space-separated
// launch command and resolving restricted_inputs tokens to Movements.
func buildGames(cfg config.Config) (map[string]moderation.GameInfo, error) {
	games := make(map[string]moderation.GameInfo, len(cfg.Games))
	for name, g := range cfg.Games {
		launch := strings.Fields(g.Command)
		if len(launch) == 0 {
			return nil, fmt.Errorf("config: games.%s has an empty command", name)
		}
		restricted := make(map[chatcmd.Movement]bool, len(g.RestrictedInputs))
		for _, tok := range g.RestrictedInputs {
			mv, ok := chatcmd.ParseMovementToken(tok)
			if !ok {
				return nil, fmt.Errorf("config: games.%s has an unrecognized restricted input %q", name, tok)
			}
			restricted[mv] = true
		}
		games[name] = moderation.GameInfo{
			Name:             name,
			Launch:           launch,
			RestrictedInputs: restricted,
			ControlsMsg:      g.Controls,
		}
	}
	return games, nil
}

// buildSfxConfig converts the config file's [sound_effects] table into
// the dispatcher's Config, parsing sub_events keys (chat-gift-count
// thresholds) from strings into uint64.
func buildSfxConfig(cfg config.Config) sfx.Config {
	if cfg.SoundEffects == nil {
		return sfx.Config{}
	}
	subEvents := make(map[uint64]string, len(cfg.SoundEffects.SubEvents))
	for k, v := range cfg.SoundEffects.SubEvents {
		threshold, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			continue
		}
		subEvents[threshold] = v
	}
	return sfx.Config{
		Command:   cfg.SoundEffects.Command,
		Sounds:    cfg.SoundEffects.Sounds,
		SubEvents: subEvents,
	}
}
