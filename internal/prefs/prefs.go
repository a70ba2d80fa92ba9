// Package prefs is the device-local preference store. It is explicitly
// injected where needed and opened/closed with the application lifetime;
// nothing in it is synced to the server.
package prefs

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Preferences are the device-scoped settings.
type Preferences struct {
	DarkTheme               bool
	NotificationsEnabled    bool
	LocationTrackingEnabled bool
	UserName                string
	UserPhone               string
	ProfilePictureURI       *string
	LastActiveSessionID     *string
}

// Defaults returns the preferences of a fresh device.
func Defaults() Preferences {
	return Preferences{NotificationsEnabled: true}
}

// Store persists preferences in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the preference store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize preference schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

const (
	keyDarkTheme           = "dark_theme"
	keyNotifications       = "notifications_enabled"
	keyLocationTracking    = "location_tracking_enabled"
	keyUserName            = "user_name"
	keyUserPhone           = "user_phone"
	keyProfilePictureURI   = "profile_picture_uri"
	keyLastActiveSessionID = "last_active_session_id"
)

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) unset(key string) error {
	if _, err := s.db.Exec(`DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear preference %s: %w", key, err)
	}
	return nil
}

func boolString(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Load reads the full preference set, applying defaults for unset keys.
func (s *Store) Load() (Preferences, error) {
	p := Defaults()

	if v, ok, err := s.get(keyDarkTheme); err != nil {
		return p, err
	} else if ok {
		p.DarkTheme = v == "1"
	}
	if v, ok, err := s.get(keyNotifications); err != nil {
		return p, err
	} else if ok {
		p.NotificationsEnabled = v == "1"
	}
	if v, ok, err := s.get(keyLocationTracking); err != nil {
		return p, err
	} else if ok {
		p.LocationTrackingEnabled = v == "1"
	}
	if v, ok, err := s.get(keyUserName); err != nil {
		return p, err
	} else if ok {
		p.UserName = v
	}
	if v, ok, err := s.get(keyUserPhone); err != nil {
		return p, err
	} else if ok {
		p.UserPhone = v
	}
	if v, ok, err := s.get(keyProfilePictureURI); err != nil {
		return p, err
	} else if ok {
		p.ProfilePictureURI = &v
	}
	if v, ok, err := s.get(keyLastActiveSessionID); err != nil {
		return p, err
	} else if ok {
		p.LastActiveSessionID = &v
	}
	return p, nil
}

// SetDarkTheme stores the theme toggle.
func (s *Store) SetDarkTheme(v bool) error { return s.set(keyDarkTheme, boolString(v)) }

// SetNotificationsEnabled stores the notification toggle.
func (s *Store) SetNotificationsEnabled(v bool) error {
	return s.set(keyNotifications, boolString(v))
}

// SetLocationTrackingEnabled stores the tracking toggle.
func (s *Store) SetLocationTrackingEnabled(v bool) error {
	return s.set(keyLocationTracking, boolString(v))
}

// ResetLocationTracking force-disables tracking. Called when location
// permission is denied or location services are off, so the device does not
// keep retrying silently.
func (s *Store) ResetLocationTracking() error {
	return s.set(keyLocationTracking, boolString(false))
}

// SetUserName caches the display name.
func (s *Store) SetUserName(name string) error { return s.set(keyUserName, name) }

// SetUserPhone caches the phone number.
func (s *Store) SetUserPhone(phone string) error { return s.set(keyUserPhone, phone) }

// SetProfilePictureURI caches the avatar location.
func (s *Store) SetProfilePictureURI(uri string) error {
	return s.set(keyProfilePictureURI, uri)
}

// SetLastActiveSessionID remembers the session to resume; empty clears it.
func (s *Store) SetLastActiveSessionID(id string) error {
	if id == "" {
		return s.unset(keyLastActiveSessionID)
	}
	return s.set(keyLastActiveSessionID, id)
}
