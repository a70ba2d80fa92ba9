package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"safetrack-backend/internal/errs"
	"safetrack-backend/internal/geo"
	"safetrack-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// SessionStore is the persistence surface the session service needs.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	GetByCode(ctx context.Context, code string) (*models.Session, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, s *models.Session) error
	MarkEnded(ctx context.Context, code string, endTime time.Time) error
	Delete(ctx context.Context, code string) error
	UpdateParticipants(ctx context.Context, code string, participants []models.Participant, updatedAt time.Time) error
	UpdateAdminLocation(ctx context.Context, code string, location models.GeoPoint, updatedAt time.Time) error
	ListByMember(ctx context.Context, userID string) ([]*models.Session, error)
	SearchByTitle(ctx context.Context, prefix string) ([]*models.Session, error)
	ListActive(ctx context.Context) ([]*models.Session, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Session, error)
}

// SnapshotPublisher receives session changes for live fan-out to members.
type SnapshotPublisher interface {
	PublishSession(s *models.Session)
	PublishSessionDeleted(s *models.Session)
	PublishRadiusAlerts(s *models.Session, alerts []models.RadiusAlert)
}

// Pusher delivers radius-break alerts to the admin's device.
type Pusher interface {
	PushRadiusAlerts(ctx context.Context, admin *models.User, s *models.Session, alerts []models.RadiusAlert)
}

// SessionService owns the session lifecycle and the membership and
// authorization rules around it.
type SessionService struct {
	sessions SessionStore
	users    UserStore
	hub      SnapshotPublisher
	pusher   Pusher
}

// NewSessionService creates a new session service. hub and pusher may be nil.
func NewSessionService(sessions SessionStore, users UserStore, hub SnapshotPublisher, pusher Pusher) *SessionService {
	return &SessionService{sessions: sessions, users: users, hub: hub, pusher: pusher}
}

// CreateSessionInput carries the admin-supplied fields for a new session.
type CreateSessionInput struct {
	Title                  string
	Description            string
	Type                   models.SessionType
	Password               string
	RadiusLimit            *float64
	LocationSharingEnabled bool
	MaxParticipants        *int
	Tags                   []string
	Settings               *models.SessionSettings
}

// Create creates a session with the caller as admin and a freshly generated
// unique code.
func (s *SessionService) Create(ctx context.Context, userID string, in CreateSessionInput) (*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if in.Type != models.SessionTypeSolo && in.Type != models.SessionTypeGroup {
		return nil, fmt.Errorf("invalid session type %q", in.Type)
	}

	admin, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	settings := models.DefaultSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	now := time.Now()
	sess := &models.Session{
		Code:                   code,
		Title:                  in.Title,
		Description:            in.Description,
		Type:                   in.Type,
		AdminID:                admin.ID,
		AdminEmail:             admin.Email,
		AdminName:              admin.DisplayName,
		Password:               in.Password,
		StartTime:              now,
		RadiusLimit:            in.RadiusLimit,
		IsActive:               true,
		Participants:           []models.Participant{},
		CreatedAt:              now,
		UpdatedAt:              now,
		LocationSharingEnabled: in.LocationSharingEnabled,
		MaxParticipants:        in.MaxParticipants,
		Tags:                   tags,
		Settings:               settings,
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	log.Info().Str("code", code).Str("admin_id", admin.ID).Str("type", string(sess.Type)).Msg("Session created")
	return sess, nil
}

// generateUniqueCode generates a 6-character code that is not yet taken.
func (s *SessionService) generateUniqueCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code := generateCode()
		exists, err := s.sessions.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxAttempts)
}

func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// Get returns a session to a member. Non-members get a not-found error so
// codes cannot be probed.
func (s *SessionService) Get(ctx context.Context, userID, code string) (*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !sess.IsMember(userID) {
		return nil, errs.ErrSessionNotFound
	}
	return sess, nil
}

// UpdateSessionInput carries the admin-editable fields of a session.
type UpdateSessionInput struct {
	Title                  string
	Description            string
	Password               string
	RadiusLimit            *float64
	LocationSharingEnabled bool
	MaxParticipants        *int
	Tags                   []string
	Settings               models.SessionSettings
}

// Update overwrites the admin-editable fields. Admin only.
func (s *SessionService) Update(ctx context.Context, userID, code string, in UpdateSessionInput) (*models.Session, error) {
	sess, err := s.requireAdmin(ctx, userID, code)
	if err != nil {
		return nil, err
	}

	sess.Title = in.Title
	sess.Description = in.Description
	sess.Password = in.Password
	sess.RadiusLimit = in.RadiusLimit
	sess.LocationSharingEnabled = in.LocationSharingEnabled
	sess.MaxParticipants = in.MaxParticipants
	if in.Tags != nil {
		sess.Tags = in.Tags
	}
	sess.Settings = in.Settings
	sess.UpdatedAt = time.Now()

	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}
	s.publish(sess)
	return sess, nil
}

// End marks the session inactive with an end timestamp. Admin only.
func (s *SessionService) End(ctx context.Context, userID, code string) error {
	sess, err := s.requireAdmin(ctx, userID, code)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.sessions.MarkEnded(ctx, code, now); err != nil {
		return err
	}
	sess.IsActive = false
	sess.EndTime = &now
	sess.UpdatedAt = now

	log.Info().Str("code", code).Msg("Session ended")
	s.publish(sess)
	return nil
}

// Delete removes the session document. Admin only.
func (s *SessionService) Delete(ctx context.Context, userID, code string) error {
	sess, err := s.requireAdmin(ctx, userID, code)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, code); err != nil {
		return err
	}
	log.Info().Str("code", code).Msg("Session deleted")
	if s.hub != nil {
		s.hub.PublishSessionDeleted(sess)
	}
	return nil
}

// Join adds the caller to a session. An empty stored password admits any
// supplied password; a participant that previously left is reactivated.
func (s *SessionService) Join(ctx context.Context, userID, code, password, displayName string) (*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess.Password != "" && sess.Password != password {
		return nil, errs.ErrInvalidPassword
	}

	now := time.Now()
	if existing := sess.Participant(userID); existing != nil {
		if existing.Status == models.StatusActive {
			return nil, errs.ErrAlreadyJoined
		}
		if !sess.IsActive {
			return nil, errs.ErrSessionInactive
		}
		existing.Status = models.StatusActive
		existing.LastUpdated = now
	} else {
		if sess.MaxParticipants != nil && len(sess.Participants) >= *sess.MaxParticipants {
			return nil, errs.ErrSessionFull
		}
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		name := displayName
		if name == "" {
			name = user.DisplayName
		}
		if name == "" {
			name = "Anonymous"
		}
		sess.Participants = append(sess.Participants, models.Participant{
			ID:          userID,
			Name:        name,
			Email:       user.Email,
			Role:        models.RoleMember,
			Status:      models.StatusActive,
			LastUpdated: now,
			JoinedAt:    now,
		})
	}

	if err := s.sessions.UpdateParticipants(ctx, code, sess.Participants, now); err != nil {
		return nil, err
	}
	sess.UpdatedAt = now

	log.Info().Str("code", code).Str("user_id", userID).Msg("Participant joined")
	s.publish(sess)
	return sess, nil
}

// Leave removes the caller from a session: the admin leaving ends the
// session, any other member is marked LEFT.
func (s *SessionService) Leave(ctx context.Context, userID, code string) error {
	if userID == "" {
		return errs.ErrNotAuthenticated
	}
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if sess.IsAdmin(userID) {
		return s.End(ctx, userID, code)
	}

	p := sess.Participant(userID)
	if p == nil {
		return errs.ErrNotAuthorized
	}
	now := time.Now()
	p.Status = models.StatusLeft
	p.LastUpdated = now

	if err := s.sessions.UpdateParticipants(ctx, code, sess.Participants, now); err != nil {
		return err
	}
	sess.UpdatedAt = now

	log.Info().Str("code", code).Str("user_id", userID).Msg("Participant left")
	s.publish(sess)
	return nil
}

// Rejoin flips the caller's status back to ACTIVE, only while the session
// itself is still active.
func (s *SessionService) Rejoin(ctx context.Context, userID, code string) error {
	if userID == "" {
		return errs.ErrNotAuthenticated
	}
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !sess.IsActive {
		return errs.ErrSessionInactive
	}
	p := sess.Participant(userID)
	if p == nil {
		return errs.ErrNotAuthorized
	}

	now := time.Now()
	p.Status = models.StatusActive
	p.LastUpdated = now

	if err := s.sessions.UpdateParticipants(ctx, code, sess.Participants, now); err != nil {
		return err
	}
	sess.UpdatedAt = now
	s.publish(sess)
	return nil
}

// UpdateParticipantLocation overwrites the caller's own position. Fixes
// worse than MaxFixAccuracy are dropped without an error so a noisy device
// does not tear down its stream.
func (s *SessionService) UpdateParticipantLocation(ctx context.Context, userID, code string, fix models.Fix) error {
	if userID == "" {
		return errs.ErrNotAuthenticated
	}
	if fix.Accuracy > models.MaxFixAccuracy {
		log.Debug().Str("code", code).Str("user_id", userID).Float64("accuracy", fix.Accuracy).Msg("Dropping low-accuracy fix")
		return nil
	}

	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	p := sess.Participant(userID)
	if p == nil {
		return errs.ErrNotAuthorized
	}

	now := time.Now()
	p.Location = &models.GeoPoint{Latitude: fix.Latitude, Longitude: fix.Longitude}
	p.LastUpdated = now

	if err := s.sessions.UpdateParticipants(ctx, code, sess.Participants, now); err != nil {
		return err
	}
	sess.UpdatedAt = now

	s.publish(sess)
	s.evaluateAlerts(ctx, sess)
	return nil
}

// UpdateAdminLocation overwrites the admin's reference position. Admin only.
func (s *SessionService) UpdateAdminLocation(ctx context.Context, userID, code string, fix models.Fix) error {
	sess, err := s.requireAdmin(ctx, userID, code)
	if err != nil {
		return err
	}
	if fix.Accuracy > models.MaxFixAccuracy {
		return nil
	}

	now := time.Now()
	loc := models.GeoPoint{Latitude: fix.Latitude, Longitude: fix.Longitude}
	if err := s.sessions.UpdateAdminLocation(ctx, code, loc, now); err != nil {
		return err
	}
	sess.AdminLocation = &loc
	sess.UpdatedAt = now

	s.publish(sess)
	s.evaluateAlerts(ctx, sess)
	return nil
}

// UpdateParticipantStatus sets a participant's status. A participant may
// change their own status; the admin may change anyone's.
func (s *SessionService) UpdateParticipantStatus(ctx context.Context, callerID, code, participantID string, status models.ParticipantStatus) error {
	if callerID == "" {
		return errs.ErrNotAuthenticated
	}
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if callerID != participantID && !sess.IsAdmin(callerID) {
		return errs.ErrNotAuthorized
	}
	p := sess.Participant(participantID)
	if p == nil {
		return errs.ErrNotAuthorized
	}

	now := time.Now()
	p.Status = status
	p.LastUpdated = now

	if err := s.sessions.UpdateParticipants(ctx, code, sess.Participants, now); err != nil {
		return err
	}
	sess.UpdatedAt = now
	s.publish(sess)
	return nil
}

// UpdateParticipantRole sets a participant's role. Admin only.
func (s *SessionService) UpdateParticipantRole(ctx context.Context, callerID, code, participantID string, role models.ParticipantRole) error {
	sess, err := s.requireAdmin(ctx, callerID, code)
	if err != nil {
		return err
	}
	p := sess.Participant(participantID)
	if p == nil {
		return errs.ErrNotAuthorized
	}

	now := time.Now()
	p.Role = role
	p.LastUpdated = now

	if err := s.sessions.UpdateParticipants(ctx, code, sess.Participants, now); err != nil {
		return err
	}
	sess.UpdatedAt = now
	s.publish(sess)
	return nil
}

// ListMine returns the caller's sessions: those they administer or actively
// participate in.
func (s *SessionService) ListMine(ctx context.Context, userID string) ([]*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	sessions, err := s.sessions.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filterVisible(sessions, userID), nil
}

// Search returns the caller-visible sessions whose title starts with prefix.
func (s *SessionService) Search(ctx context.Context, userID, prefix string) ([]*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	sessions, err := s.sessions.SearchByTitle(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return filterVisible(sessions, userID), nil
}

// ListActive returns the caller-visible sessions that have not ended.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	sessions, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return filterVisible(sessions, userID), nil
}

// ListRecent returns the caller-visible sessions in creation order.
func (s *SessionService) ListRecent(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	sessions, err := s.sessions.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return filterVisible(sessions, userID), nil
}

// Alerts recomputes the radius alerts for a session on demand.
func (s *SessionService) Alerts(ctx context.Context, userID, code string) ([]models.RadiusAlert, error) {
	sess, err := s.Get(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	return geo.SessionAlerts(sess), nil
}

func filterVisible(sessions []*models.Session, userID string) []*models.Session {
	out := make([]*models.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.IsAdmin(userID) || sess.IsActiveParticipant(userID) {
			out = append(out, sess)
		}
	}
	return out
}

func (s *SessionService) requireAdmin(ctx context.Context, userID, code string) (*models.Session, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin(userID) {
		return nil, errs.ErrNotAuthorized
	}
	return sess, nil
}

func (s *SessionService) publish(sess *models.Session) {
	if s.hub != nil {
		s.hub.PublishSession(sess)
	}
}

// evaluateAlerts recomputes radius alerts after a location write and fans
// them out to watchers and, when the session asks for it, the admin's device.
func (s *SessionService) evaluateAlerts(ctx context.Context, sess *models.Session) {
	alerts := geo.SessionAlerts(sess)
	if len(alerts) == 0 || !sess.Settings.NotifyOnRadiusBreak {
		return
	}
	if s.hub != nil {
		s.hub.PublishRadiusAlerts(sess, alerts)
	}
	if s.pusher != nil {
		admin, err := s.users.GetByID(ctx, sess.AdminID)
		if err != nil {
			log.Error().Err(err).Str("code", sess.Code).Msg("Failed to load admin for radius push")
			return
		}
		s.pusher.PushRadiusAlerts(ctx, admin, sess, alerts)
	}
}
