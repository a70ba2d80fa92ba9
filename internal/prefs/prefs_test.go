package prefs

import (
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDefaults(t *testing.T) {
	store := openStore(t)

	p, err := store.Load()
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if p.DarkTheme {
		t.Errorf("dark theme should default to off")
	}
	if !p.NotificationsEnabled {
		t.Errorf("notifications should default to on")
	}
	if p.LocationTrackingEnabled {
		t.Errorf("location tracking should default to off")
	}
	if p.LastActiveSessionID != nil {
		t.Errorf("fresh device should have no last active session")
	}
}

func TestRoundTrip(t *testing.T) {
	store := openStore(t)

	if err := store.SetDarkTheme(true); err != nil {
		t.Fatalf("SetDarkTheme: %v", err)
	}
	if err := store.SetLocationTrackingEnabled(true); err != nil {
		t.Fatalf("SetLocationTrackingEnabled: %v", err)
	}
	if err := store.SetUserName("Ada"); err != nil {
		t.Fatalf("SetUserName: %v", err)
	}
	if err := store.SetUserPhone("+4915112345678"); err != nil {
		t.Fatalf("SetUserPhone: %v", err)
	}
	if err := store.SetProfilePictureURI("https://example.com/ada.jpg"); err != nil {
		t.Fatalf("SetProfilePictureURI: %v", err)
	}
	if err := store.SetLastActiveSessionID("ABC123"); err != nil {
		t.Fatalf("SetLastActiveSessionID: %v", err)
	}

	p, err := store.Load()
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if !p.DarkTheme || !p.LocationTrackingEnabled {
		t.Errorf("toggles not persisted: %+v", p)
	}
	if p.UserName != "Ada" || p.UserPhone != "+4915112345678" {
		t.Errorf("cached identity not persisted: %+v", p)
	}
	if p.ProfilePictureURI == nil || *p.ProfilePictureURI != "https://example.com/ada.jpg" {
		t.Errorf("profile picture URI not persisted: %+v", p)
	}
	if p.LastActiveSessionID == nil || *p.LastActiveSessionID != "ABC123" {
		t.Errorf("last active session not persisted: %+v", p)
	}
}

func TestResetLocationTracking(t *testing.T) {
	store := openStore(t)

	if err := store.SetLocationTrackingEnabled(true); err != nil {
		t.Fatalf("SetLocationTrackingEnabled: %v", err)
	}
	if err := store.ResetLocationTracking(); err != nil {
		t.Fatalf("ResetLocationTracking: %v", err)
	}

	p, err := store.Load()
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if p.LocationTrackingEnabled {
		t.Errorf("tracking should be force-disabled after reset")
	}
}

func TestClearLastActiveSession(t *testing.T) {
	store := openStore(t)

	if err := store.SetLastActiveSessionID("ABC123"); err != nil {
		t.Fatalf("SetLastActiveSessionID: %v", err)
	}
	if err := store.SetLastActiveSessionID(""); err != nil {
		t.Fatalf("clearing last active session: %v", err)
	}

	p, err := store.Load()
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if p.LastActiveSessionID != nil {
		t.Errorf("last active session should be cleared, got %v", *p.LastActiveSessionID)
	}
}
