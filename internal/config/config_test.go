package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindConfigFile_WalksParentDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFileName), "")

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, err := FindConfigFile(nested)
	if err != nil {
		t.Fatalf("FindConfigFile: %v", err)
	}
	want := filepath.Join(root, ConfigFileName)
	if found != want {
		t.Fatalf("expected %s, got %s", want, found)
	}
}

func TestFindConfigFile_NotFound(t *testing.T) {
	root := t.TempDir()
	if _, err := FindConfigFile(root); err == nil {
		t.Fatal("expected an error when no config file exists up the tree")
	}
}

func TestLoad_AnonymousAuthDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	writeFile(t, path, `
[twitch]
channel_name = "somechannel"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Twitch.ChannelName != "somechannel" {
		t.Fatalf("unexpected channel name: %s", cfg.Twitch.ChannelName)
	}
	if cfg.Twitch.Auth.Kind != AuthAnonymous {
		t.Fatalf("expected anonymous auth by default, got %v", cfg.Twitch.Auth.Kind)
	}
}

func TestLoad_LoginAuthAndGamesAndSfx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	writeFile(t, path, `
[twitch]
channel_name = "somechannel"

[twitch.auth]
type = "login"
client = "abc"
secret = "def"

[sound_effects]
command = "mpv"

[sound_effects.sounds]
airhorn = "/sounds/airhorn.wav"

[sound_effects.sub_events]
"20" = "airhorn"

[games.mario]
command = "fceux rom.nes"
restricted_inputs = ["select"]
controls = "A jumps, B runs"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Twitch.Auth.Kind != AuthLogin || cfg.Twitch.Auth.Client != "abc" || cfg.Twitch.Auth.Secret != "def" {
		t.Fatalf("unexpected auth: %+v", cfg.Twitch.Auth)
	}
	if cfg.SoundEffects == nil || cfg.SoundEffects.Command != "mpv" {
		t.Fatalf("unexpected sound effects: %+v", cfg.SoundEffects)
	}
	if cfg.SoundEffects.Sounds["airhorn"] != "/sounds/airhorn.wav" {
		t.Fatalf("unexpected sounds map: %+v", cfg.SoundEffects.Sounds)
	}
	if cfg.SoundEffects.SubEvents["20"] != "airhorn" {
		t.Fatalf("unexpected sub_events map: %+v", cfg.SoundEffects.SubEvents)
	}
	game, ok := cfg.Games["mario"]
	if !ok {
		t.Fatal("expected a games.mario entry")
	}
	if game.Command != "fceux rom.nes" {
		t.Fatalf("unexpected game command: %s", game.Command)
	}
	if len(game.RestrictedInputs) != 1 || game.RestrictedInputs[0] != "select" {
		t.Fatalf("unexpected restricted inputs: %v", game.RestrictedInputs)
	}
}

func TestLoad_UnknownAuthTypeErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	writeFile(t, path, `
[twitch]
channel_name = "x"
[twitch.auth]
type = "bogus"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unrecognized auth type")
	}
}

func TestTokens_RoundTripViaAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	writeFile(t, configPath, "[twitch]\nchannel_name = \"x\"\n")

	if _, ok, err := LoadTokens(configPath); err != nil || ok {
		t.Fatalf("expected no tokens file yet: ok=%v err=%v", ok, err)
	}

	want := Tokens{AccessToken: "at", RefreshToken: "rt", CreatedAt: 1000, ExpiresAt: 2000}
	if err := SaveTokens(configPath, want); err != nil {
		t.Fatalf("SaveTokens: %v", err)
	}

	got, ok, err := LoadTokens(configPath)
	if err != nil || !ok {
		t.Fatalf("LoadTokens: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if _, err := os.Stat(filepath.Join(dir, TokensFileName+".tmp")); !os.IsNotExist(err) {
		t.Fatal("expected the temp file to be renamed away, not left behind")
	}
}
