// Package ws streams the live whisper rotation over WebSocket. Each
// connection owns its own rotation sampler; nothing is broadcast between
// viewers.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sujalbistaa/whispr/internal/metrics"
	"github.com/sujalbistaa/whispr/internal/models"
	"github.com/sujalbistaa/whispr/internal/rotation"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Viewers never send anything meaningful
	maxMessageSize = 512

	sendBufferSize = 16
)

// Feed is the part of the store a stream reads.
type Feed interface {
	Snapshot() []models.Confession
	Subscribe() (<-chan struct{}, func())
}

// Message is the envelope for every frame sent to the viewer.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WhisperFrame is the payload of a "whisper" message.
type WhisperFrame struct {
	State   string             `json:"state"`
	Visible bool               `json:"visible"`
	Whisper *models.Confession `json:"whisper,omitempty"`
}

// Config configures a Streamer.
type Config struct {
	Feed          Feed
	Interval      time.Duration
	HideDelay     time.Duration
	Clock         clock.Clock
	AllowedOrigin string // "*" accepts any origin
	Logger        *zap.Logger
	Metrics       *metrics.Collector
}

// Streamer upgrades requests to whisper streams.
type Streamer struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewStreamer(cfg Config) *Streamer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	st := &Streamer{cfg: cfg, log: cfg.Logger}
	st.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return cfg.AllowedOrigin == "" || cfg.AllowedOrigin == "*" || origin == "" || origin == cfg.AllowedOrigin
		},
	}
	return st
}

// ServeWhispers upgrades the request and streams rotation events until the
// viewer disconnects. The sampler is stopped when the connection ends.
func (st *Streamer) ServeWhispers(w http.ResponseWriter, r *http.Request) {
	conn, err := st.upgrader.Upgrade(w, r, nil)
	if err != nil {
		st.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	log := st.log.With(zap.String("connectionID", uuid.NewString()))

	ctx, cancel := context.WithCancel(context.Background())
	send := make(chan []byte, sendBufferSize)

	sampler := rotation.New(rotation.Config{
		Source:    st.cfg.Feed.Snapshot,
		Interval:  st.cfg.Interval,
		HideDelay: st.cfg.HideDelay,
		Clock:     st.cfg.Clock,
		OnEvent: func(e rotation.Event) {
			if e.State == rotation.Visible {
				st.cfg.Metrics.Rotation()
			}
			frame, err := json.Marshal(Message{Type: "whisper", Data: WhisperFrame{
				State:   e.State.String(),
				Visible: e.State == rotation.Visible,
				Whisper: e.Whisper,
			}})
			if err != nil {
				log.Error("marshal whisper frame", zap.Error(err))
				return
			}
			select {
			case send <- frame:
			default:
				log.Debug("viewer too slow, dropping whisper frame")
			}
		},
	})

	changes, unsubscribe := st.cfg.Feed.Subscribe()
	st.cfg.Metrics.StreamOpened()
	log.Info("whisper stream opened")

	go st.readPump(conn, cancel, log)
	go sampler.Run(ctx, changes)

	st.writePump(ctx, conn, send, log)

	cancel()
	unsubscribe()
	conn.Close()
	st.cfg.Metrics.StreamClosed()
	log.Info("whisper stream closed")
}

// readPump drains the connection so control frames are processed, and
// cancels the stream when the viewer goes away.
func (st *Streamer) readPump(conn *websocket.Conn, cancel context.CancelFunc, log *zap.Logger) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (st *Streamer) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
