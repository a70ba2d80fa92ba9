package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"safetrack-backend/internal/models"

	"github.com/gorilla/websocket"
)

func snapshotSession() *models.Session {
	now := time.Now()
	return &models.Session{
		Code:     "AB12CD",
		Title:    "Field trip",
		AdminID:  "admin",
		IsActive: true,
		Settings: models.DefaultSettings(),
		Participants: []models.Participant{
			{ID: "alice", Status: models.StatusActive, Location: &models.GeoPoint{Latitude: 1, Longitude: 1}, JoinedAt: now},
			{ID: "bob", Status: models.StatusActive, Location: &models.GeoPoint{Latitude: 2, Longitude: 2}, JoinedAt: now},
			{ID: "carol", Status: models.StatusLeft, JoinedAt: now},
		},
	}
}

func TestSnapshotForMembers(t *testing.T) {
	sess := snapshotSession()

	msg := SnapshotFor(sess, "alice")
	if msg == nil || msg.Type != MsgSessionSnapshot {
		t.Fatalf("active participant must get a snapshot, got %+v", msg)
	}
	if msg.Session.Participants[1].Location == nil {
		t.Fatalf("locations visible by default")
	}

	if msg := SnapshotFor(sess, "admin"); msg == nil {
		t.Fatalf("admin must get a snapshot")
	}
	if msg := SnapshotFor(sess, "carol"); msg != nil {
		t.Fatalf("participant that left must get nothing, got %+v", msg)
	}
	if msg := SnapshotFor(sess, "stranger"); msg != nil {
		t.Fatalf("non-member must get nothing, got %+v", msg)
	}
}

func TestSnapshotForHiddenLocations(t *testing.T) {
	sess := snapshotSession()
	sess.Settings.ShowParticipantLocations = false

	msg := SnapshotFor(sess, "alice")
	if msg == nil {
		t.Fatalf("expected a snapshot")
	}
	for _, p := range msg.Session.Participants {
		switch p.ID {
		case "alice":
			if p.Location == nil {
				t.Fatalf("viewer keeps their own position")
			}
		default:
			if p.Location != nil {
				t.Fatalf("peer positions must be hidden, %s still has one", p.ID)
			}
		}
	}
	// The underlying session is untouched.
	if sess.Participants[1].Location == nil {
		t.Fatalf("snapshot must not mutate the stored session")
	}

	if msg := SnapshotFor(sess, "admin"); msg.Session.Participants[0].Location == nil {
		t.Fatalf("admin always sees positions")
	}
}

// dialHub upgrades a loopback connection, registers its server side with the
// hub and returns the client side.
func dialHub(t *testing.T, h *Hub, userID string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Register(userID, conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	<-registered
	return client
}

func TestSendToUserConcurrent(t *testing.T) {
	h := NewHub()
	client := dialHub(t, h, "admin")

	// Several sessions publishing to the same member at once must not
	// interleave writes on its single connection.
	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if err := h.SendToUser("admin", WSMessage{Type: MsgSessionSnapshot, SessionCode: "AB12CD"}); err != nil {
					t.Errorf("send failed: %v", err)
					return
				}
			}
		}()
	}

	for received := 0; received < writers*perWriter; received++ {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := client.ReadMessage(); err != nil {
			t.Fatalf("read %d of %d failed: %v", received, writers*perWriter, err)
		}
	}
	wg.Wait()

	if !h.IsOnline("admin") {
		t.Fatalf("connection must survive concurrent sends")
	}
}

func TestSnapshotForEndedSession(t *testing.T) {
	sess := snapshotSession()
	sess.IsActive = false

	if msg := SnapshotFor(sess, "admin"); msg != nil {
		t.Fatalf("ended session has no snapshot, got %+v", msg)
	}
}
