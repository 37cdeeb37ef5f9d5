package http_test

import (
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

type socketFrame struct {
	Type      string   `json:"type"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Zoom      float64  `json:"zoom"`
	Layers    []string `json:"layers"`
	Message   string   `json:"message"`
}

// serve runs app on a loopback listener and returns its address.
func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func dialMap(t *testing.T, addr, sessionID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/map/"+sessionID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) socketFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f socketFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestMapSocket_SyncsViewState(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	s := createSession(t, app)
	sess, err := deps.Sessions.Get(s.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	addr := serve(t, app)

	conn := dialMap(t, addr, s.SessionID)
	defer conn.Close()

	// The current selection arrives first, then the map is positioned on
	// the default centre at the store's zoom.
	f := readFrame(t, conn)
	if f.Type != "layers" || len(f.Layers) != 1 || f.Layers[0] != domain.LayerGroundwaterLevels {
		t.Fatalf("expected initial layers frame, got %+v", f)
	}
	f = readFrame(t, conn)
	if f.Type != "set_view" || f.Latitude != 20 || f.Longitude != 0 || f.Zoom != 2 {
		t.Fatalf("expected set_view on the default centre, got %+v", f)
	}

	// A settled pan lands in the store with the zoom rounded.
	if err := conn.WriteJSON(socketFrame{Type: "moveend", Latitude: 15.3694, Longitude: 44.191, Zoom: 6.4}); err != nil {
		t.Fatalf("write moveend: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := sess.Store.Read()
		if st.Latitude != nil && *st.Latitude == 15.3694 {
			if *st.Longitude != 44.191 || st.Zoom != 6 {
				t.Fatalf("unexpected viewport %v/%v zoom %d", *st.Latitude, *st.Longitude, st.Zoom)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("moveend never reached the store")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Layer toggles are pushed.
	if resp := do(t, app, "PUT", "/v1/sessions/"+s.SessionID+"/layers/Soil%20Permeability", ""); resp.Status != 200 {
		t.Fatalf("toggle: expected 200, got %d", resp.Status)
	}
	f = readFrame(t, conn)
	if f.Type != "layers" || len(f.Layers) != 2 {
		t.Fatalf("expected updated layers frame, got %+v", f)
	}

	// A navigation from elsewhere moves the map and is consumed.
	if resp := do(t, app, "POST", "/v1/sessions/"+s.SessionID+"/navigation", `{"latitude":-1.2921,"longitude":36.8219,"zoom":9}`); resp.Status != 202 {
		t.Fatalf("navigation: expected 202, got %d: %s", resp.Status, resp.Body)
	}
	f = readFrame(t, conn)
	if f.Type != "set_view" || f.Latitude != -1.2921 || f.Longitude != 36.8219 || f.Zoom != 9 {
		t.Fatalf("expected set_view for the navigation, got %+v", f)
	}
	if resp := do(t, app, "POST", "/v1/sessions/"+s.SessionID+"/navigation/take", ""); resp.Status != 204 {
		t.Errorf("the socket should have taken the navigation, take returned %d", resp.Status)
	}
}

func TestMapSocket_RejectsUnknownFrames(t *testing.T) {
	app := setupApp(makeDeps())
	s := createSession(t, app)
	addr := serve(t, app)

	conn := dialMap(t, addr, s.SessionID)
	defer conn.Close()
	readFrame(t, conn) // layers
	readFrame(t, conn) // set_view

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "error" || f.Message != "invalid JSON" {
		t.Errorf("expected invalid JSON error, got %+v", f)
	}

	if err := conn.WriteJSON(socketFrame{Type: "zoomstart"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "error" || f.Message != "unknown frame type: zoomstart" {
		t.Errorf("expected unknown frame error, got %+v", f)
	}
}

func TestMapSocket_UnknownSession(t *testing.T) {
	app := setupApp(makeDeps())
	addr := serve(t, app)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/map/nope", nil)
	if err == nil {
		t.Fatal("expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %v", resp)
	}
}
