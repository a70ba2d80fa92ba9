// safetrack-agent simulates a tracked device: it replays recorded position
// fixes through the location feed and reports them to the server over the
// live WebSocket, printing the snapshots and alerts pushed back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safetrack-backend/internal/feed"
	"safetrack-backend/internal/prefs"
	"safetrack-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		serverURL = flag.String("server", "ws://localhost:8080/ws", "server WebSocket URL")
		token     = flag.String("token", "", "JWT obtained from /api/v1/auth/login")
		code      = flag.String("session", "", "session code to report into")
		fixesPath = flag.String("fixes", "", "JSON-lines file of recorded fixes")
		prefsPath = flag.String("prefs", "safetrack-agent.db", "local preference store")
		interval  = flag.Duration("interval", 5*time.Second, "delay between replayed fixes")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *token == "" || *code == "" || *fixesPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := prefs.Open(*prefsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open preference store")
	}
	defer store.Close()

	p, err := store.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load preferences")
	}
	if !p.LocationTrackingEnabled {
		if err := store.SetLocationTrackingEnabled(true); err != nil {
			log.Fatal().Err(err).Msg("Failed to enable location tracking")
		}
	}
	if err := store.SetLastActiveSessionID(*code); err != nil {
		log.Fatal().Err(err).Msg("Failed to remember active session")
	}

	fixesFile, err := os.Open(*fixesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *fixesPath).Msg("Failed to open fixes file")
	}
	defer fixesFile.Close()

	u, err := url.Parse(*serverURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid server URL")
	}
	q := u.Query()
	q.Set("token", *token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to server")
	}
	defer conn.Close()
	log.Info().Str("session", *code).Msg("Connected")

	go readServerMessages(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	f := feed.New(feed.NewReplayProvider(fixesFile, *interval), 10*time.Second)
	sub := f.Subscribe(ctx)
	defer sub.Cancel()

	for ev := range sub.Events() {
		switch ev.Kind {
		case feed.EventValue:
			fix := ev.Fix
			msg := services.WSMessage{
				Type:        services.MsgLocationUpdate,
				SessionCode: *code,
				Fix:         &fix,
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Error().Err(err).Msg("Failed to send fix")
				return
			}
			log.Debug().Float64("lat", fix.Latitude).Float64("lon", fix.Longitude).Msg("Fix reported")
		case feed.EventError:
			// Provider failure mirrors a lost location permission: stop
			// retrying silently and force the toggle off.
			log.Error().Err(ev.Err).Msg("Location feed failed")
			if err := store.ResetLocationTracking(); err != nil {
				log.Error().Err(err).Msg("Failed to reset tracking preference")
			}
		case feed.EventClosed:
			log.Info().Msg("Recording finished")
		}
	}
}

func readServerMessages(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg services.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case services.MsgSessionSnapshot:
			log.Info().Str("session", msg.SessionCode).Int("participants", len(msg.Session.Participants)).Msg("Snapshot")
		case services.MsgRadiusAlert:
			for _, a := range msg.Alerts {
				log.Warn().Str("participant", a.ParticipantName).Float64("distance", a.Distance).Msg("Radius alert")
			}
		case services.MsgSessionEnded, services.MsgSessionDeleted, services.MsgRemoved:
			log.Info().Str("session", msg.SessionCode).Str("type", msg.Type).Msg("Session no longer visible")
		case services.MsgError:
			log.Error().Str("message", msg.Message).Msg("Server error")
		}
	}
}
