// Package geo holds the pure distance and radius-alert math.
package geo

import (
	"math"

	"safetrack-backend/internal/models"
)

// EarthRadius in meters.
const EarthRadius = 6371000.0

// Haversine returns the great-circle distance in meters between two
// coordinates given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Distance is Haversine over GeoPoints.
func Distance(a, b models.GeoPoint) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// CalculateRadiusAlerts returns the participants whose distance from
// adminLocation strictly exceeds radiusLimit, paired with that distance.
// A nil radiusLimit or nil adminLocation yields no alerts; participants
// without a known position are skipped. A participant sitting exactly on
// the limit does not alert.
func CalculateRadiusAlerts(adminLocation *models.GeoPoint, radiusLimit *float64, participants []models.Participant) []models.RadiusAlert {
	if radiusLimit == nil || adminLocation == nil {
		return nil
	}

	var alerts []models.RadiusAlert
	for _, p := range participants {
		if p.Location == nil {
			continue
		}
		d := Distance(*adminLocation, *p.Location)
		if d > *radiusLimit {
			alerts = append(alerts, models.RadiusAlert{
				ParticipantID:   p.ID,
				ParticipantName: p.Name,
				Distance:        d,
			})
		}
	}
	return alerts
}

// SessionAlerts applies CalculateRadiusAlerts to a session, considering only
// ACTIVE participants.
func SessionAlerts(s *models.Session) []models.RadiusAlert {
	if s == nil {
		return nil
	}
	active := make([]models.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.Status == models.StatusActive {
			active = append(active, p)
		}
	}
	return CalculateRadiusAlerts(s.AdminLocation, s.RadiusLimit, active)
}
