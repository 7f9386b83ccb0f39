// Package db holds the gorm models and schema for the durable State
// Store: the user registry, blocklist, operator list, cooldown
// timestamps, and the small KV table the moderation arbiter persists
// anarchy_mode and cooldown into.
package db

// User is upserted on every chat message received, keyed by the stable
// Twitch id; Name is a unique display label that block/op commands
// resolve back to an id.
type User struct {
	TwitchID string `gorm:"column:twitch_id;primaryKey"`
	Name     string `gorm:"column:name;uniqueIndex;not null"`
}

func (User) TableName() string { return "users" }

// Operator records a user elevated to Operator privilege persistently by
// a Moderator+.
type Operator struct {
	TwitchID string `gorm:"column:twitch_id;primaryKey"`
}

func (Operator) TableName() string { return "operators" }

// BlockedUser records a user currently barred from submitting input.
// UnblockAt of zero means the block is indefinite; a non-zero UnblockAt
// in the past is lazily deleted on the next lookup.
type BlockedUser struct {
	TwitchID  string `gorm:"column:twitch_id;primaryKey"`
	UnblockAt int64  `gorm:"column:unblock_time;not null;default:0"`
}

func (BlockedUser) TableName() string { return "blocked_users" }

// LastCommandTime backs the Democracy-mode cooldown test-and-set.
// TimeMS is a Unix millisecond timestamp.
type LastCommandTime struct {
	TwitchID string `gorm:"column:twitch_id;primaryKey"`
	TimeMS   int64  `gorm:"column:time;not null"`
}

func (LastCommandTime) TableName() string { return "last_command_time" }

// ConfigKV stores the two keys the arbiter persists across restarts:
// anarchy_mode (textual enum) and cooldown (milliseconds, as text).
type ConfigKV struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value;not null;default:''"`
}

func (ConfigKV) TableName() string { return "config_kv" }
