package geo

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"safetrack-backend/internal/models"
)

func randomPoint(rng *rand.Rand) models.GeoPoint {
	return models.GeoPoint{
		Latitude:  rng.Float64()*180 - 90,
		Longitude: rng.Float64()*360 - 180,
	}
}

func TestHaversineZeroForIdenticalPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		p := randomPoint(rng)
		if d := Distance(p, p); d != 0 {
			t.Fatalf("distance of point to itself = %v, want 0 (point %+v)", d, p)
		}
	}
}

func TestHaversineSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 1000; i++ {
		a, b := randomPoint(rng), randomPoint(rng)
		d1, d2 := Distance(a, b), Distance(b, a)
		if math.Abs(d1-d2) > 1e-6 {
			t.Fatalf("distance not symmetric: d(a,b)=%v d(b,a)=%v (a=%+v b=%+v)", d1, d2, a, b)
		}
	}
}

func TestHaversineBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	max := math.Pi * EarthRadius
	for i := 0; i < 1000; i++ {
		a, b := randomPoint(rng), randomPoint(rng)
		d := Distance(a, b)
		if d < 0 {
			t.Fatalf("negative distance %v (a=%+v b=%+v)", d, a, b)
		}
		if d > max+1e-6 {
			t.Fatalf("distance %v exceeds half circumference %v (a=%+v b=%+v)", d, max, a, b)
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of latitude along a meridian.
	d := Haversine(0, 0, 1, 0)
	want := EarthRadius * math.Pi / 180
	if math.Abs(d-want) > 0.001 {
		t.Fatalf("one degree of latitude = %v m, want %v m", d, want)
	}
}

// pointAtDistance returns a point the given number of meters due north of origin.
func pointAtDistance(origin models.GeoPoint, meters float64) models.GeoPoint {
	return models.GeoPoint{
		Latitude:  origin.Latitude + meters/EarthRadius*180/math.Pi,
		Longitude: origin.Longitude,
	}
}

func participantAt(id string, p models.GeoPoint) models.Participant {
	return models.Participant{
		ID:       id,
		Name:     id,
		Role:     models.RoleMember,
		Status:   models.StatusActive,
		Location: &p,
	}
}

func TestCalculateRadiusAlertsNilLimit(t *testing.T) {
	admin := models.GeoPoint{Latitude: 48.13, Longitude: 11.58}
	far := pointAtDistance(admin, 1e6)
	participants := []models.Participant{participantAt("p1", far)}
	if alerts := CalculateRadiusAlerts(&admin, nil, participants); len(alerts) != 0 {
		t.Fatalf("expected no alerts with nil radius limit, got %v", alerts)
	}
}

func TestCalculateRadiusAlertsNilAdminLocation(t *testing.T) {
	limit := 100.0
	participants := []models.Participant{participantAt("p1", models.GeoPoint{Latitude: 1})}
	if alerts := CalculateRadiusAlerts(nil, &limit, participants); len(alerts) != 0 {
		t.Fatalf("expected no alerts without an admin location, got %v", alerts)
	}
}

func TestCalculateRadiusAlertsStrictBoundary(t *testing.T) {
	admin := models.GeoPoint{Latitude: 10, Longitude: 20}
	p := pointAtDistance(admin, 250)
	onLimit := Distance(admin, p)

	participants := []models.Participant{participantAt("edge", p)}
	if alerts := CalculateRadiusAlerts(&admin, &onLimit, participants); len(alerts) != 0 {
		t.Fatalf("distance equal to limit must not alert, got %v", alerts)
	}

	justUnder := onLimit - 0.001
	alerts := CalculateRadiusAlerts(&admin, &justUnder, participants)
	if len(alerts) != 1 {
		t.Fatalf("distance above limit must alert, got %v", alerts)
	}
}

func TestCalculateRadiusAlertsSkipsUnknownLocations(t *testing.T) {
	admin := models.GeoPoint{}
	limit := 10.0
	participants := []models.Participant{{ID: "nowhere", Status: models.StatusActive}}
	if alerts := CalculateRadiusAlerts(&admin, &limit, participants); len(alerts) != 0 {
		t.Fatalf("participant without location must not alert, got %v", alerts)
	}
}

func TestRadiusAlertScenario(t *testing.T) {
	admin := models.GeoPoint{Latitude: 52.52, Longitude: 13.405}
	limit := 100.0
	now := time.Now()

	sess := &models.Session{
		Code:          "ABC123",
		Type:          models.SessionTypeGroup,
		AdminID:       "admin",
		RadiusLimit:   &limit,
		IsActive:      true,
		AdminLocation: &admin,
		StartTime:     now,
	}

	far := pointAtDistance(admin, 150)
	sess.Participants = []models.Participant{participantAt("walker", far)}

	alerts := SessionAlerts(sess)
	if len(alerts) != 1 || alerts[0].ParticipantID != "walker" {
		t.Fatalf("expected exactly one alert for walker, got %v", alerts)
	}
	if math.Abs(alerts[0].Distance-150) > 1 {
		t.Fatalf("alert distance = %v, want 150 +-1", alerts[0].Distance)
	}

	near := pointAtDistance(admin, 50)
	sess.Participants[0].Location = &near
	if alerts := SessionAlerts(sess); len(alerts) != 0 {
		t.Fatalf("expected no alerts at 50m, got %v", alerts)
	}
}

func TestSessionAlertsIgnoresInactiveParticipants(t *testing.T) {
	admin := models.GeoPoint{Latitude: 1, Longitude: 1}
	limit := 10.0
	far := pointAtDistance(admin, 500)
	left := participantAt("gone", far)
	left.Status = models.StatusLeft

	sess := &models.Session{
		AdminLocation: &admin,
		RadiusLimit:   &limit,
		Participants:  []models.Participant{left},
	}
	if alerts := SessionAlerts(sess); len(alerts) != 0 {
		t.Fatalf("participants that left must not alert, got %v", alerts)
	}
}
