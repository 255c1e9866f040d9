package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"shoplist/hub"
)

// transport serves the realtime channels. A channel is registered with the hub
// only once the handshake is done and is unregistered when it closes; inbound
// frames are read only to notice the close.
type transport struct {
	subs      Subscriber
	keepAlive time.Duration
	logger    *log.Logger
	upgrader  websocket.Upgrader
}

func newTransport(subs Subscriber, opts Options) *transport {
	return &transport{
		subs:      subs,
		keepAlive: opts.KeepAlive,
		logger:    opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (t *transport) websocket(c echo.Context) error {
	listID := c.Param("id")
	metricsFrom(c).SetListID(listID)
	conn, err := t.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		metricsFrom(c).SetErrorStage("upgrade")
		return nil
	}
	defer conn.Close()

	sub := t.subs.Subscribe(listID)
	defer t.subs.Unsubscribe(sub)
	logger := t.logger.WithFields(log.Fields{"list": listID, "viewer": sub.ID(), "channel": "websocket"})
	logger.Debug("channel open")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(2 * t.keepAlive))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * t.keepAlive))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(t.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return nil
			}
			data, err := sonic.Marshal(ev)
			if err != nil {
				logger.WithError(err).Error("marshal event")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.WithError(err).Debug("delivery failed, closing channel")
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-closed:
			logger.Debug("channel closed by client")
			return nil
		}
	}
}

// events streams list updates as server-sent events.
func (t *transport) events(c echo.Context) error {
	listID := c.Param("id")
	metricsFrom(c).SetListID(listID)
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	c.Response().WriteHeader(http.StatusOK)
	// Write an initial comment to ensure headers are flushed to the client.
	if _, err := c.Response().Write([]byte(":ok\n\n")); err != nil {
		return nil
	}
	flusher.Flush()

	sub := t.subs.Subscribe(listID)
	defer t.subs.Unsubscribe(sub)
	ctx := c.Request().Context()
	ticker := time.NewTicker(t.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			data, err := sonic.Marshal(ev)
			if err != nil {
				t.logger.WithError(err).WithField("list", listID).Error("marshal event")
				continue
			}
			if _, err := c.Response().Write([]byte("event: " + ev.Type + "\ndata: ")); err != nil {
				return nil
			}
			if _, err := c.Response().Write(data); err != nil {
				return nil
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			// Send a comment as a heartbeat to keep the connection alive.
			if _, err := c.Response().Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

var _ Subscriber = (*hub.Hub)(nil)
