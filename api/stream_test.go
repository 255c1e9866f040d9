package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"shoplist/domain"
	"shoplist/hub"
)

type flushRecorder struct{ *httptest.ResponseRecorder }

func (flushRecorder) Flush() {}

func waitForViewers(t *testing.T, h *hub.Hub, listID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count(listID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d viewers of %s, got %d", n, listID, h.Count(listID))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func dial(t *testing.T, srv *httptest.Server, listID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/" + listID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev domain.Event
	if err := sonic.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestWebsocketReceivesListUpdates(t *testing.T) {
	e, h := newRealServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()

	rec := do(e, http.MethodPost, "/api/lists", `{"name":"Weekly"}`)
	var l domain.List
	if err := sonic.Unmarshal(rec.Body.Bytes(), &l); err != nil {
		t.Fatalf("decode list: %v", err)
	}

	phone := dial(t, srv, l.ID)
	defer phone.Close()
	laptop := dial(t, srv, l.ID)
	defer laptop.Close()
	waitForViewers(t, h, l.ID, 2)

	// inbound frames are ignored and do not close the channel
	if err := phone.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if rec := do(e, http.MethodPost, "/api/lists/"+l.ID+"/items", `{"name":"Eggs"}`); rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}
	for _, conn := range []*websocket.Conn{phone, laptop} {
		ev := readEvent(t, conn)
		if ev.Type != domain.ListUpdated || ev.List.ID != l.ID {
			t.Fatalf("unexpected event %+v", ev)
		}
		if len(ev.List.Items) != 1 || ev.List.Items[0].Name != "Eggs" || ev.List.Items[0].Completed {
			t.Fatalf("unexpected items %+v", ev.List.Items)
		}
	}

	laptop.Close()
	waitForViewers(t, h, l.ID, 1)
}

func TestWebsocketClosedOnHubShutdown(t *testing.T) {
	e, h := newRealServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dial(t, srv, "l1")
	defer conn.Close()
	waitForViewers(t, h, "l1", 1)
	h.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestServerSentEvents(t *testing.T) {
	h := hub.New(4, nil)
	defer h.Close()
	tr := newTransport(h, Options{KeepAlive: time.Minute, Logger: log.New()})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/lists/l1/events", nil)
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	rec := flushRecorder{httptest.NewRecorder()}
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("l1")

	errCh := make(chan error, 1)
	go func() { errCh <- tr.events(c) }()
	waitForViewers(t, h, "l1", 1)
	ev := domain.NewListUpdated(domain.List{ID: "l1", Name: "Weekly", Items: []domain.Item{{ID: "i1", Name: "Eggs"}}})
	if n := h.Broadcast("l1", ev); n != 1 {
		t.Fatalf("expected delivery, got %d", n)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("handler error: %v", err)
	}
	waitForViewers(t, h, "l1", 0)

	data, _ := sonic.Marshal(ev)
	expected := ":ok\n\nevent: list_updated\ndata: " + string(data) + "\n\n"
	if rec.Body.String() != expected {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
