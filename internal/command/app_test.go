package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shift-devs/twitch-gamepad/internal/config"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, config.ConfigFileName)
	if err := os.WriteFile(path, []byte("[twitch]\nchannel_name = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBuildApp_RunsServeWithDiscoveredConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var gotPath string
	app := BuildApp(Deps{
		FindConfig: func(d string) (string, error) { return cfgPath, nil },
		RunServe: func(ctx context.Context, cfg config.Config, configPath string) error {
			gotPath = configPath
			return nil
		},
	})
	app.Writer = &bytes.Buffer{}

	if err := app.Run([]string{"twitchgamepad"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotPath != cfgPath {
		t.Fatalf("expected %s, got %s", cfgPath, gotPath)
	}
}

func TestBuildApp_MigrateUp(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	called := false
	app := BuildApp(Deps{
		FindConfig:   func(d string) (string, error) { return cfgPath, nil },
		RunMigrateUp: func(ctx context.Context, cfg config.Config, configPath string) error { called = true; return nil },
	})
	app.Writer = &bytes.Buffer{}

	if err := app.Run([]string{"twitchgamepad", "migrate", "up"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatal("expected RunMigrateUp to be called")
	}
}

func TestBuildApp_Mode_PrintsResult(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	app := BuildApp(Deps{
		FindConfig: func(d string) (string, error) { return cfgPath, nil },
		PrintMode: func(ctx context.Context, cfg config.Config, configPath string) (string, error) {
			return "democracy", nil
		},
	})
	var out bytes.Buffer
	app.Writer = &out

	if err := app.Run([]string{"twitchgamepad", "mode"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "democracy\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestBuildApp_Cooldown_ParsesSeconds(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var gotSeconds int
	app := BuildApp(Deps{
		FindConfig: func(d string) (string, error) { return cfgPath, nil },
		SetCooldown: func(ctx context.Context, cfg config.Config, configPath string, seconds int) error {
			gotSeconds = seconds
			return nil
		},
	})
	app.Writer = &bytes.Buffer{}

	if err := app.Run([]string{"twitchgamepad", "cooldown", "45"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotSeconds != 45 {
		t.Fatalf("expected 45, got %d", gotSeconds)
	}
}

func TestBuildApp_Cooldown_RejectsNonInteger(t *testing.T) {
	app := BuildApp(Deps{})
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	if err := app.Run([]string{"twitchgamepad", "cooldown", "soon"}); err == nil {
		t.Fatal("expected an error for a non-integer cooldown")
	}
}

func TestBuildApp_NoRunnerConfigured_Errors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	app := BuildApp(Deps{FindConfig: func(d string) (string, error) { return cfgPath, nil }})
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	if err := app.Run([]string{"twitchgamepad"}); err == nil {
		t.Fatal("expected an error when RunServe is not configured")
	}
}
