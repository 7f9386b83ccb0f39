package sfx

import (
	"context"
	"log/slog"
	"os/exec"
	"sort"
)

// Config is the resolved sound-effect configuration: the audio player
// executable, a name-to-file-path map, and an ordered threshold map for
// sub-gift events.
type Config struct {
	Command   string
	Sounds    map[string]string
	SubEvents map[uint64]string
}

// Dispatcher serializes sound-effect requests against an enable flag
// and spawns the configured audio player, grounded on the original
// game runner's sound_effect_runner.
type Dispatcher struct {
	log        *slog.Logger
	cfg        Config
	enabled    bool
	spawn      func(command string, args ...string) error
	thresholds []uint64
}

// New constructs a Dispatcher. enabled starts true per §4.5.
func New(log *slog.Logger, cfg Config) *Dispatcher {
	thresholds := make([]uint64, 0, len(cfg.SubEvents))
	for t := range cfg.SubEvents {
		thresholds = append(thresholds, t)
	}
	sort.Slice(thresholds, func(i, j int) bool { return thresholds[i] < thresholds[j] })

	d := &Dispatcher{
		log:        log,
		cfg:        cfg,
		enabled:    true,
		thresholds: thresholds,
	}
	d.spawn = d.defaultSpawn
	return d
}

func (d *Dispatcher) defaultSpawn(command string, args ...string) error {
	return exec.Command(command, args...).Start()
}

// Run consumes Requests until ctx is cancelled or in is closed.
func (d *Dispatcher) Run(ctx context.Context, in <-chan Request) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-in:
			if !ok {
				return nil
			}
			d.handle(req)
		}
	}
}

func (d *Dispatcher) handle(req Request) {
	if req.Kind == KindEnable {
		d.log.Info("setting sfx enabled", "enabled", req.Enabled)
		d.enabled = req.Enabled
		return
	}

	file, ok := d.resolve(req)
	if !ok {
		d.log.Warn("no sound effect file for request", "kind", req.Kind, "name", req.Name, "count", req.Count)
		return
	}
	if !d.enabled {
		d.log.Info("sfx disabled, skipping", "file", file)
		return
	}
	d.log.Info("playing sound effect", "file", file)
	if err := d.spawn(d.cfg.Command, file, "--fullscreen"); err != nil {
		d.log.Error("failed to spawn audio player", "err", err)
	}
}

// resolve maps a Request to a sound file path. For SubEvent it picks
// the greatest configured threshold that is <= the reported count.
func (d *Dispatcher) resolve(req Request) (string, bool) {
	switch req.Kind {
	case KindNamed:
		file, ok := d.cfg.Sounds[req.Name]
		return file, ok
	case KindSubEvent:
		name, ok := d.thresholdName(req.Count)
		if !ok {
			return "", false
		}
		file, ok := d.cfg.Sounds[name]
		return file, ok
	default:
		return "", false
	}
}

func (d *Dispatcher) thresholdName(count uint64) (string, bool) {
	best := -1
	for i, t := range d.thresholds {
		if t <= count {
			best = i
		} else {
			break
		}
	}
	if best == -1 {
		return "", false
	}
	return d.cfg.SubEvents[d.thresholds[best]], true
}
