package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/groundwatch/internal/core/usecases"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

const (
	socketWriteWait = 5 * time.Second
	socketPingEvery = 30 * time.Second
)

// mapFrame is exchanged with the browser map in both directions.
//
//	server -> client: set_view, layers, placeholder, error
//	client -> server: move, moveend
type mapFrame struct {
	Type      string   `json:"type"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Zoom      float64  `json:"zoom"`
	Layers    []string `json:"layers,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// socketRenderer drives a browser map over its socket. It implements
// ports.Renderer; writes from store notifications and the ping loop are
// serialised by mu.
type socketRenderer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (r *socketRenderer) send(f mapFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

func (r *socketRenderer) ping() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return r.conn.WriteMessage(websocket.PingMessage, nil)
}

// SetView moves the browser map.
func (r *socketRenderer) SetView(_ context.Context, lat, lon, zoom float64) error {
	return r.send(mapFrame{Type: "set_view", Latitude: lat, Longitude: lon, Zoom: zoom})
}

// MapSocketUpgrade rejects non-upgrade requests and unknown sessions
// before the handshake.
func MapSocketUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := deps.Sessions.Get(c.Params("session")); err != nil {
			return errFromDomain(c, err)
		}
		return c.Next()
	}
}

// MapSocketHandler attaches a browser map to a session: the socket becomes
// the session's renderer and its move events feed the view state.
func MapSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := c.Params("session")
		logger := slog.Default().With("session", id, "remote", c.RemoteAddr().String())
		renderer := &socketRenderer{conn: c}

		sess, err := deps.Sessions.Get(id)
		if err != nil {
			_ = renderer.send(mapFrame{Type: "error", Message: err.Error()})
			return
		}

		metrics.ActiveMapSockets.Inc()
		defer metrics.ActiveMapSockets.Dec()
		logger.Info("map socket connected")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stopLayers := forwardLayers(sess.Store, renderer, logger)
		defer stopLayers()

		viewport := usecases.NewViewportSync(sess.Store, renderer, logger)
		if err := viewport.Mount(ctx, deps.Sessions.DefaultCenter()); err != nil {
			_ = renderer.send(mapFrame{Type: "placeholder", Message: "Map unavailable"})
			return
		}
		defer viewport.Unmount()

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(socketPingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := renderer.ping(); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var f mapFrame
			if err := json.Unmarshal(msg, &f); err != nil {
				_ = renderer.send(mapFrame{Type: "error", Message: "invalid JSON"})
				continue
			}

			sess.Touch(time.Now())
			switch f.Type {
			case "move":
				viewport.Moving(f.Latitude, f.Longitude, f.Zoom)
			case "moveend":
				viewport.MoveEnd(f.Latitude, f.Longitude, f.Zoom)
			default:
				_ = renderer.send(mapFrame{Type: "error", Message: "unknown frame type: " + f.Type})
			}
		}

		logger.Info("map socket disconnected")
	}
}

// forwardLayers sends the layer selection now and whenever it changes.
func forwardLayers(store *viewstate.Store, r *socketRenderer, logger *slog.Logger) (stop func()) {
	var (
		mu   sync.Mutex
		last viewstate.LayerSet
		sent bool
	)
	push := func(st viewstate.ViewState) {
		mu.Lock()
		if sent && last.Equal(st.SelectedLayers) {
			mu.Unlock()
			return
		}
		last, sent = st.SelectedLayers, true
		mu.Unlock()

		if err := r.send(mapFrame{Type: "layers", Layers: st.SelectedLayers.Slice()}); err != nil {
			logger.Debug("send layers failed", "error", err)
		}
	}

	unsubscribe := store.Subscribe(push)
	push(store.Read())
	return unsubscribe
}
