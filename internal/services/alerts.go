package services

import (
	"context"
	"fmt"

	"safetrack-backend/internal/config"
	"safetrack-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// AlertNotifier pushes radius-break alerts to the session admin's device
// over APNs. Push failures are logged, never surfaced to the writer that
// triggered them.
type AlertNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAlertNotifier creates an APNs-backed notifier, or a disabled one when
// no key file is configured.
func NewAlertNotifier(cfg config.APNSConfig) (*AlertNotifier, error) {
	if cfg.KeyFile == "" {
		return &AlertNotifier{}, nil
	}

	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &AlertNotifier{client: client, topic: cfg.Topic}, nil
}

// PushRadiusAlerts notifies the admin about every participant outside the
// session radius.
func (n *AlertNotifier) PushRadiusAlerts(ctx context.Context, admin *models.User, s *models.Session, alerts []models.RadiusAlert) {
	if n.client == nil || admin.PushToken == nil || *admin.PushToken == "" {
		return
	}

	for _, alert := range alerts {
		body := fmt.Sprintf("%s is %.0f m away, outside the %.0f m radius of %q",
			alert.ParticipantName, alert.Distance, *s.RadiusLimit, s.Title)

		p := payload.NewPayload().
			AlertTitle("Radius alert").
			AlertBody(body).
			Custom("session_code", s.Code).
			Custom("participant_id", alert.ParticipantID).
			Sound("default")

		notification := &apns2.Notification{
			DeviceToken: *admin.PushToken,
			Topic:       n.topic,
			Payload:     p,
		}

		res, err := n.client.PushWithContext(ctx, notification)
		if err != nil {
			log.Error().Err(err).Str("code", s.Code).Msg("APNs push failed")
			continue
		}
		if !res.Sent() {
			log.Warn().Str("code", s.Code).Str("reason", res.Reason).Int("status", res.StatusCode).Msg("APNs push rejected")
		}
	}
}
