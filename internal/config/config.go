// Package config loads twitch_gamepad.toml (and the sibling tokens.toml
// OAuth state file) following the teacher's ConfigStore shape: parse
// with github.com/pelletier/go-toml/v2, write atomically via
// temp-file-then-rename.
package config

import (
	"errors"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	ConfigFileName = "twitch_gamepad.toml"
	TokensFileName = "tokens.toml"
)

// AuthKind tags the twitch.auth tagged variant.
type AuthKind int

const (
	AuthAnonymous AuthKind = iota
	AuthLogin
)

// Auth holds the channel's chat-connection credentials. Kind selects
// which of Client/Secret/Access are meaningful.
type Auth struct {
	Kind   AuthKind `toml:"-"`
	Type   string   `toml:"type"`
	Client string   `toml:"client,omitempty"`
	Secret string   `toml:"secret,omitempty"`
	Access string   `toml:"access,omitempty"`
}

// Twitch is the `[twitch]` section.
type Twitch struct {
	ChannelName string `toml:"channel_name"`
	Auth        Auth   `toml:"auth"`
	// RelayURL is the websocket endpoint chatgw.Gateway dials for
	// newline-delimited JSON chat/sub-gift events. See SPEC_FULL.md §4.10:
	// real IRC transport is out of scope, this is the dev adapter boundary.
	RelayURL string `toml:"relay_url"`
	// RelayRegisterURL, when set, is an HTTP endpoint hit once at startup
	// to obtain the session-scoped RelayURL to dial instead of using a
	// static one. Optional: most local-dev relays skip registration and
	// just set relay_url directly.
	RelayRegisterURL string `toml:"relay_register_url,omitempty"`
}

// Runtime is the optional `[runtime]` section controlling where the bot
// keeps its local state on disk.
type Runtime struct {
	DatabasePath string `toml:"database_path"`
	StatusPath   string `toml:"status_path"`
	LogLevel     string `toml:"log_level"`
}

// SoundEffects is the optional `[sound_effects]` section.
type SoundEffects struct {
	Command   string            `toml:"command"`
	Sounds    map[string]string `toml:"sounds"`
	SubEvents map[string]string `toml:"sub_events"`
}

// Game is one entry of the optional `[games.<name>]` section. Command
// is space-separated: its first token is the program, the rest are
// arguments.
type Game struct {
	Command          string   `toml:"command"`
	RestrictedInputs []string `toml:"restricted_inputs,omitempty"`
	Controls         string   `toml:"controls,omitempty"`
}

// Config is the parsed form of twitch_gamepad.toml.
type Config struct {
	Twitch       Twitch          `toml:"twitch"`
	Runtime      Runtime         `toml:"runtime,omitempty"`
	SoundEffects *SoundEffects   `toml:"sound_effects,omitempty"`
	Games        map[string]Game `toml:"games,omitempty"`
}

const (
	defaultDatabasePath = "twitch_gamepad.sqlite3"
	defaultStatusPath   = "twitch_gamepad_status.json"
)

// applyDefaults fills in the runtime paths relative to the directory
// holding the config file when left unset.
func (c *Config) applyDefaults(configDir string) {
	if c.Runtime.DatabasePath == "" {
		c.Runtime.DatabasePath = filepath.Join(configDir, defaultDatabasePath)
	}
	if c.Runtime.StatusPath == "" {
		c.Runtime.StatusPath = filepath.Join(configDir, defaultStatusPath)
	}
}

// Tokens is the sibling tokens.toml OAuth refresh-state file. It is
// parsed but never refreshed - refresh is out of scope.
type Tokens struct {
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	CreatedAt    int64  `toml:"created_at"`
	ExpiresAt    int64  `toml:"expires_at"`
}

// FindConfigFile walks parent directories starting at dir, looking for
// twitch_gamepad.toml, exactly as the CLI's bare invocation does.
func FindConfigFile(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// Load parses the config file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	switch cfg.Twitch.Auth.Type {
	case "", "anonymous":
		cfg.Twitch.Auth.Kind = AuthAnonymous
	case "login":
		cfg.Twitch.Auth.Kind = AuthLogin
	default:
		return Config{}, errors.New("config: unknown twitch.auth.type " + cfg.Twitch.Auth.Type)
	}
	cfg.applyDefaults(filepath.Dir(path))
	return cfg, nil
}

// LoadTokens parses the tokens.toml file that sits beside path. Absence
// is not an error - it just means no refresh state has been saved yet.
func LoadTokens(configPath string) (Tokens, bool, error) {
	path := filepath.Join(filepath.Dir(configPath), TokensFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tokens{}, false, nil
		}
		return Tokens{}, false, err
	}
	var tokens Tokens
	if err := toml.Unmarshal(raw, &tokens); err != nil {
		return Tokens{}, false, err
	}
	return tokens, true, nil
}

// SaveTokens writes tokens.toml atomically via temp-file-then-rename.
func SaveTokens(configPath string, tokens Tokens) error {
	return writeTOMLAtomically(filepath.Join(filepath.Dir(configPath), TokensFileName), tokens)
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
