// Package statestore is the durable State Store behind the moderation
// arbiter: the user registry, blocklist, operator list, cooldown
// timestamps, and the small KV table for anarchy_mode/cooldown. It is
// exclusively owned by the moderation arbiter per the concurrency model —
// no other component touches the database.
package statestore

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shift-devs/twitch-gamepad/internal/db"
)

// operatorCacheSize bounds the in-memory operator-status cache; a chat
// with more concurrent distinct senders than this just sees more cache
// misses, never incorrect answers.
const operatorCacheSize = 1024

const (
	kvKeyAnarchyMode = "anarchy_mode"
	kvKeyCooldown    = "cooldown"
)

// Store wraps the gorm handle with the read-modify-write operations the
// arbiter needs. All mutating methods are transactional.
type Store struct {
	gdb         *gorm.DB
	operatorLRU *lru.Cache[string, bool]
}

// Open wraps an already-migrated gorm database.
func Open(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, errors.New("db is required")
	}
	cache, err := lru.New[string, bool](operatorCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{gdb: gdb, operatorLRU: cache}, nil
}

// Close releases the underlying *sql.DB connection.
func (s *Store) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertUser records the sender's current display name against their
// stable id. Called on every message received.
func (s *Store) UpsertUser(twitchID, name string) error {
	row := db.User{TwitchID: twitchID, Name: name}
	return s.gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "twitch_id"}},
		DoUpdates: clause.Assignments(map[string]any{"name": name}),
	}).Create(&row).Error
}

// IsOperator reports whether id has been elevated to Operator. Results
// are cached since every non-Operator message consults this on the hot
// path.
func (s *Store) IsOperator(twitchID string) (bool, error) {
	if v, ok := s.operatorLRU.Get(twitchID); ok {
		return v, nil
	}
	var count int64
	if err := s.gdb.Model(&db.Operator{}).Where("twitch_id = ?", twitchID).Count(&count).Error; err != nil {
		return false, err
	}
	isOp := count > 0
	s.operatorLRU.Add(twitchID, isOp)
	return isOp, nil
}

// resolveIDByName resolves a display name to a twitch id via the user
// registry. Returns ok=false if the name is unknown.
func (s *Store) resolveIDByName(tx *gorm.DB, name string) (string, bool, error) {
	var row db.User
	err := tx.Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.TwitchID, true, nil
}

// AddOperatorByName elevates the named user, if known. found is false
// when the name has never been seen in chat.
func (s *Store) AddOperatorByName(name string) (found bool, err error) {
	err = s.gdb.Transaction(func(tx *gorm.DB) error {
		id, ok, err := s.resolveIDByName(tx, name)
		if err != nil || !ok {
			found = ok
			return err
		}
		found = true
		row := db.Operator{TwitchID: id}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
		s.operatorLRU.Remove(id)
		return nil
	})
	return found, err
}

// RemoveOperatorByName revokes the named user's Operator privilege.
func (s *Store) RemoveOperatorByName(name string) (found bool, err error) {
	err = s.gdb.Transaction(func(tx *gorm.DB) error {
		id, ok, err := s.resolveIDByName(tx, name)
		if err != nil || !ok {
			found = ok
			return err
		}
		found = true
		if err := tx.Where("twitch_id = ?", id).Delete(&db.Operator{}).Error; err != nil {
			return err
		}
		s.operatorLRU.Remove(id)
		return nil
	})
	return found, err
}

// ListOperatorNames returns the display names of every current operator.
func (s *Store) ListOperatorNames() ([]string, error) {
	var names []string
	err := s.gdb.Model(&db.User{}).
		Joins("INNER JOIN operators ON operators.twitch_id = users.twitch_id").
		Pluck("users.name", &names).Error
	return names, err
}

// BlockByName blocks the named user until the given time, or indefinitely
// if until is nil. found is false when the name is unknown.
func (s *Store) BlockByName(name string, until *time.Time) (found bool, err error) {
	err = s.gdb.Transaction(func(tx *gorm.DB) error {
		id, ok, err := s.resolveIDByName(tx, name)
		if err != nil || !ok {
			found = ok
			return err
		}
		found = true
		var unblockAt int64
		if until != nil {
			unblockAt = until.UnixMilli()
		}
		row := db.BlockedUser{TwitchID: id, UnblockAt: unblockAt}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "twitch_id"}},
			DoUpdates: clause.Assignments(map[string]any{"unblock_time": unblockAt}),
		}).Create(&row).Error
	})
	return found, err
}

// UnblockByName lifts a block on the named user.
func (s *Store) UnblockByName(name string) (found bool, err error) {
	err = s.gdb.Transaction(func(tx *gorm.DB) error {
		id, ok, err := s.resolveIDByName(tx, name)
		if err != nil || !ok {
			found = ok
			return err
		}
		found = true
		return tx.Where("twitch_id = ?", id).Delete(&db.BlockedUser{}).Error
	})
	return found, err
}

// IsBlocked reports whether id is currently blocked, lazily deleting the
// record if its unblock time has lapsed.
func (s *Store) IsBlocked(twitchID string) (bool, error) {
	var blocked bool
	err := s.gdb.Transaction(func(tx *gorm.DB) error {
		var row db.BlockedUser
		err := tx.Where("twitch_id = ?", twitchID).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			blocked = false
			return nil
		}
		if err != nil {
			return err
		}
		if row.UnblockAt != 0 && row.UnblockAt <= time.Now().UnixMilli() {
			blocked = false
			return tx.Where("twitch_id = ?", twitchID).Delete(&db.BlockedUser{}).Error
		}
		blocked = true
		return nil
	})
	return blocked, err
}

// ListBlockedNames returns the display names of every currently blocked
// user, without lapsing expired blocks (that only happens on lookup).
func (s *Store) ListBlockedNames() ([]string, error) {
	var names []string
	err := s.gdb.Model(&db.User{}).
		Joins("INNER JOIN blocked_users ON blocked_users.twitch_id = users.twitch_id").
		Pluck("users.name", &names).Error
	return names, err
}

// TestAndSetCooldownLapsed implements the cooldown gate exactly as the
// source does: it unconditionally stamps the user's last-command time to
// now, and reports whether the *previous* stamp was at least cooldown in
// the past (absent previous stamp counts as lapsed). Because the stamp
// always advances, a burst of rejected attempts keeps pushing the next
// eligible time forward — this is the documented behavior, not a bug.
func (s *Store) TestAndSetCooldownLapsed(twitchID string, cooldown time.Duration) (bool, error) {
	var lapsed bool
	now := time.Now()
	err := s.gdb.Transaction(func(tx *gorm.DB) error {
		var row db.LastCommandTime
		err := tx.Where("twitch_id = ?", twitchID).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			lapsed = true
		case err != nil:
			return err
		default:
			last := time.UnixMilli(row.TimeMS)
			lapsed = !now.Before(last.Add(cooldown))
		}

		update := db.LastCommandTime{TwitchID: twitchID, TimeMS: now.UnixMilli()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "twitch_id"}},
			DoUpdates: clause.Assignments(map[string]any{"time": update.TimeMS}),
		}).Create(&update).Error
	})
	return lapsed, err
}

// GetKV reads a config_kv value. ok is false when the key has never been
// set.
func (s *Store) GetKV(key string) (value string, ok bool, err error) {
	var row db.ConfigKV
	err = s.gdb.Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// SetKV upserts a config_kv value.
func (s *Store) SetKV(key, value string) error {
	row := db.ConfigKV{Key: key, Value: value}
	return s.gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"value": value}),
	}).Create(&row).Error
}

// AnarchyModeKey and CooldownKey name the two KV entries the arbiter
// seeds on first run and restores on startup.
func AnarchyModeKey() string { return kvKeyAnarchyMode }
func CooldownKey() string    { return kvKeyCooldown }
