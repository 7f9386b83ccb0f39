package sfx

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shift-devs/twitch-gamepad/internal/logging"
)

type spawnCall struct {
	command string
	args    []string
}

func newTestDispatcher(cfg Config) (*Dispatcher, *[]spawnCall) {
	var buf bytes.Buffer
	log := logging.NewLogger(logging.Options{Writer: &buf, Component: "sfx"})
	d := New(log, cfg)

	var mu sync.Mutex
	calls := make([]spawnCall, 0)
	d.spawn = func(command string, args ...string) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, spawnCall{command: command, args: args})
		return nil
	}
	return d, &calls
}

func runDispatcher(d *Dispatcher, in chan Request) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, in) }()
	return func() {
		cancel()
		<-done
	}
}

func TestNamed_SpawnsConfiguredCommand(t *testing.T) {
	d, calls := newTestDispatcher(Config{
		Command: "player",
		Sounds:  map[string]string{"airhorn": "/sounds/airhorn.wav"},
	})
	in := make(chan Request, 4)
	stop := runDispatcher(d, in)
	defer stop()

	in <- Named("airhorn")
	time.Sleep(50 * time.Millisecond)

	if len(*calls) != 1 || (*calls)[0].command != "player" || (*calls)[0].args[0] != "/sounds/airhorn.wav" {
		t.Fatalf("unexpected calls: %+v", *calls)
	}
}

func TestNamed_UnknownNameDropped(t *testing.T) {
	d, calls := newTestDispatcher(Config{Command: "player", Sounds: map[string]string{}})
	in := make(chan Request, 4)
	stop := runDispatcher(d, in)
	defer stop()

	in <- Named("nope")
	time.Sleep(50 * time.Millisecond)

	if len(*calls) != 0 {
		t.Fatalf("expected no spawn for unknown sound name, got %+v", *calls)
	}
}

func TestEnable_DropsSubsequentRequestsWhenDisabled(t *testing.T) {
	d, calls := newTestDispatcher(Config{
		Command: "player",
		Sounds:  map[string]string{"airhorn": "/sounds/airhorn.wav"},
	})
	in := make(chan Request, 4)
	stop := runDispatcher(d, in)
	defer stop()

	in <- Enable(false)
	in <- Named("airhorn")
	time.Sleep(50 * time.Millisecond)

	if len(*calls) != 0 {
		t.Fatalf("expected disabled dispatcher to drop requests, got %+v", *calls)
	}

	in <- Enable(true)
	in <- Named("airhorn")
	time.Sleep(50 * time.Millisecond)
	if len(*calls) != 1 {
		t.Fatalf("expected one spawn after re-enabling, got %+v", *calls)
	}
}

func TestSubEvent_PicksGreatestThresholdBelowOrEqual(t *testing.T) {
	cfg := Config{
		Command: "player",
		Sounds: map[string]string{
			"20":  "/sounds/20.wav",
			"60":  "/sounds/60.wav",
			"80":  "/sounds/80.wav",
			"100": "/sounds/100.wav",
		},
		SubEvents: map[uint64]string{20: "20", 60: "60", 80: "80", 100: "100"},
	}

	cases := []struct {
		count uint64
		want  string
		any   bool
	}{
		{10, "", false},
		{20, "/sounds/20.wav", true},
		{30, "/sounds/20.wav", true},
		{60, "/sounds/60.wav", true},
		{99, "/sounds/80.wav", true},
		{100, "/sounds/100.wav", true},
		{2147483647, "/sounds/100.wav", true},
	}

	for _, tc := range cases {
		d, calls := newTestDispatcher(cfg)
		in := make(chan Request, 1)
		stop := runDispatcher(d, in)

		in <- SubEvent(tc.count)
		time.Sleep(30 * time.Millisecond)
		stop()

		if tc.any {
			if len(*calls) != 1 || (*calls)[0].args[0] != tc.want {
				t.Fatalf("count=%d: expected spawn with %q, got %+v", tc.count, tc.want, *calls)
			}
		} else if len(*calls) != 0 {
			t.Fatalf("count=%d: expected no spawn, got %+v", tc.count, *calls)
		}
	}
}
