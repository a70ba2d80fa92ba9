package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"safetrack-backend/internal/errs"
	"safetrack-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles database operations for session documents.
// Participants are stored as a JSONB array on the session row; participant
// updates are read-modify-write with no optimistic guard, matching the
// document-store semantics the mobile clients rely on.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	code, title, description, type, admin_id, admin_email, admin_name, password,
	start_time, end_time, radius_limit, is_active, admin_location, participants,
	created_at, updated_at, location_sharing_enabled, max_participants, tags, settings`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.Code, &s.Title, &s.Description, &s.Type, &s.AdminID, &s.AdminEmail,
		&s.AdminName, &s.Password, &s.StartTime, &s.EndTime, &s.RadiusLimit,
		&s.IsActive, &s.AdminLocation, &s.Participants, &s.CreatedAt,
		&s.UpdatedAt, &s.LocationSharingEnabled, &s.MaxParticipants, &s.Tags,
		&s.Settings,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

// Create inserts a new session document
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.Exec(ctx, query,
		s.Code, s.Title, s.Description, s.Type, s.AdminID, s.AdminEmail,
		s.AdminName, s.Password, s.StartTime, s.EndTime, s.RadiusLimit,
		s.IsActive, s.AdminLocation, s.Participants, s.CreatedAt, s.UpdatedAt,
		s.LocationSharingEnabled, s.MaxParticipants, s.Tags, s.Settings,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByCode retrieves a session by its code
func (r *SessionRepository) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE code = $1`
	return scanSession(r.db.QueryRow(ctx, query, code))
}

// CodeExists checks whether a session code is already taken
func (r *SessionRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM sessions WHERE code = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// Update overwrites the mutable fields of a session document. The code is
// the immutable key and is never rewritten.
func (r *SessionRepository) Update(ctx context.Context, s *models.Session) error {
	query := `
		UPDATE sessions SET
			title = $2, description = $3, type = $4, password = $5,
			end_time = $6, radius_limit = $7, is_active = $8, admin_location = $9,
			participants = $10, updated_at = $11, location_sharing_enabled = $12,
			max_participants = $13, tags = $14, settings = $15
		WHERE code = $1
	`
	result, err := r.db.Exec(ctx, query,
		s.Code, s.Title, s.Description, s.Type, s.Password, s.EndTime,
		s.RadiusLimit, s.IsActive, s.AdminLocation, s.Participants,
		s.UpdatedAt, s.LocationSharingEnabled, s.MaxParticipants, s.Tags,
		s.Settings,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// MarkEnded flips the session inactive and records the end time
func (r *SessionRepository) MarkEnded(ctx context.Context, code string, endTime time.Time) error {
	query := `UPDATE sessions SET is_active = FALSE, end_time = $2, updated_at = $2 WHERE code = $1`
	result, err := r.db.Exec(ctx, query, code, endTime)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session document
func (r *SessionRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// UpdateParticipants overwrites the participant list
func (r *SessionRepository) UpdateParticipants(ctx context.Context, code string, participants []models.Participant, updatedAt time.Time) error {
	query := `UPDATE sessions SET participants = $2, updated_at = $3 WHERE code = $1`
	result, err := r.db.Exec(ctx, query, code, participants, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update participants: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// UpdateAdminLocation overwrites the admin's last known position
func (r *SessionRepository) UpdateAdminLocation(ctx context.Context, code string, location models.GeoPoint, updatedAt time.Time) error {
	query := `UPDATE sessions SET admin_location = $2, updated_at = $3 WHERE code = $1`
	result, err := r.db.Exec(ctx, query, code, location, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update admin location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// ListByMember returns the sessions where the user is the admin or appears
// in the participant list, newest first.
func (r *SessionRepository) ListByMember(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE admin_id = $1
		   OR participants @> jsonb_build_array(jsonb_build_object('id', $1::text))
		ORDER BY created_at DESC
	`
	return r.querySessions(ctx, query, userID)
}

// likeEscaper neutralizes LIKE metacharacters in user-supplied search terms.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SearchByTitle returns sessions whose title starts with the given prefix.
// The prefix is matched literally; % and _ carry no wildcard meaning.
func (r *SessionRepository) SearchByTitle(ctx context.Context, prefix string) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE title LIKE $1 ESCAPE '\'
		ORDER BY title
	`
	return r.querySessions(ctx, query, escapeLike(prefix)+"%")
}

// ListActive returns sessions that have not ended
func (r *SessionRepository) ListActive(ctx context.Context) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE is_active = TRUE ORDER BY created_at DESC`
	return r.querySessions(ctx, query)
}

// ListRecent returns the most recently created sessions
func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC LIMIT $1`
	return r.querySessions(ctx, query, limit)
}
