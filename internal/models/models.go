package models

import "time"

// SessionType distinguishes solo tracking from group sessions.
type SessionType string

const (
	SessionTypeSolo  SessionType = "SOLO"
	SessionTypeGroup SessionType = "GROUP"
)

// ParticipantRole is a participant's role within a session.
type ParticipantRole string

const (
	RoleAdmin     ParticipantRole = "ADMIN"
	RoleModerator ParticipantRole = "MODERATOR"
	RoleMember    ParticipantRole = "MEMBER"
)

// ParticipantStatus tracks a participant's membership state.
type ParticipantStatus string

const (
	StatusActive   ParticipantStatus = "ACTIVE"
	StatusInactive ParticipantStatus = "INACTIVE"
	StatusLeft     ParticipantStatus = "LEFT"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Participant is a member of a session with an independent position and status.
type Participant struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Role        ParticipantRole   `json:"role"`
	Status      ParticipantStatus `json:"status"`
	Location    *GeoPoint         `json:"location,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
	JoinedAt    time.Time         `json:"joined_at"`
}

// SessionSettings is the per-session configuration bag.
type SessionSettings struct {
	AllowParticipantChat     bool           `json:"allow_participant_chat"`
	ShowParticipantLocations bool           `json:"show_participant_locations"`
	NotifyOnRadiusBreak      bool           `json:"notify_on_radius_break"`
	AutoEndSession           bool           `json:"auto_end_session"`
	AutoEndDuration          *time.Duration `json:"auto_end_duration,omitempty"`
}

// DefaultSettings returns the settings applied to a new session.
func DefaultSettings() SessionSettings {
	return SessionSettings{
		AllowParticipantChat:     true,
		ShowParticipantLocations: true,
		NotifyOnRadiusBreak:      true,
	}
}

// Session is a shareable tracking context with one admin and zero or more
// participants. The code is immutable and serves as the primary key.
type Session struct {
	Code                   string          `json:"code"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	Type                   SessionType     `json:"type"`
	AdminID                string          `json:"admin_id"`
	AdminEmail             string          `json:"admin_email"`
	AdminName              string          `json:"admin_name"`
	Password               string          `json:"-"`
	StartTime              time.Time       `json:"start_time"`
	EndTime                *time.Time      `json:"end_time,omitempty"`
	RadiusLimit            *float64        `json:"radius_limit,omitempty"`
	IsActive               bool            `json:"is_active"`
	AdminLocation          *GeoPoint       `json:"admin_location,omitempty"`
	Participants           []Participant   `json:"participants"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	LocationSharingEnabled bool            `json:"location_sharing_enabled"`
	MaxParticipants        *int            `json:"max_participants,omitempty"`
	Tags                   []string        `json:"tags"`
	Settings               SessionSettings `json:"settings"`
}

// IsAdmin reports whether userID owns the session.
func (s *Session) IsAdmin(userID string) bool {
	return s.AdminID == userID
}

// Participant returns the participant with the given id, or nil.
func (s *Session) Participant(userID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

// IsActiveParticipant reports whether userID is a participant in ACTIVE status.
func (s *Session) IsActiveParticipant(userID string) bool {
	p := s.Participant(userID)
	return p != nil && p.Status == StatusActive
}

// IsMember reports whether userID belongs to the session at all: the admin
// or any participant regardless of status.
func (s *Session) IsMember(userID string) bool {
	return s.IsAdmin(userID) || s.Participant(userID) != nil
}

// RadiusAlert pairs a participant with its computed distance from the admin
// when that distance exceeds the session's radius limit.
type RadiusAlert struct {
	ParticipantID   string  `json:"participant_id"`
	ParticipantName string  `json:"participant_name"`
	Distance        float64 `json:"distance"`
}

// User is a registered account.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	DisplayName       string     `json:"display_name"`
	Phone             string     `json:"phone,omitempty"`
	PhotoURL          string     `json:"photo_url,omitempty"`
	PasswordHash      string     `json:"-"`
	PushToken         *string    `json:"-"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Fix is a single position report from a device.
type Fix struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Accuracy  float64   `json:"accuracy"`
	Time      time.Time `json:"time"`
}

// MaxFixAccuracy is the worst acceptable horizontal accuracy in meters.
// Fixes above it are discarded on both the device and the server.
const MaxFixAccuracy = 50.0
