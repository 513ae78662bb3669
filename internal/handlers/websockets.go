package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/cast"
)

// Stream timing and limits. The default interval is five controller ticks.
const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 1 << 12 // 4 KB; clients only send control frames
	defaultInterval = 100 * time.Millisecond
	maxInterval     = 10 * time.Second
)

// Message types on /ws.
const (
	msgHello = "hello"
	msgTilt  = "tilt"
)

// wsEnvelope is one frame of the tilt stream.
type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// streamHello tells the client the push cadence it was granted.
type streamHello struct {
	IntervalMs int64 `json:"interval_ms"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Tilt stream
// @Description  Upgrades to a WebSocket. The first frame is {"type":"hello","data":{"interval_ms":N}}, then {"type":"tilt","data":TiltSnapshot} every interval (default 100ms, max 10s).
// @Tags         tilt
// @Param        interval     query  string  false  "Go duration, e.g. 50ms"
// @Param        interval_ms  query  int     false  "Interval in milliseconds"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	closed := make(chan struct{})
	go h.drainControlFrames(conn, closed)

	if err := h.writeFrame(conn, msgHello, streamHello{IntervalMs: interval.Milliseconds()}); err != nil {
		h.logStreamEnd("ws_hello_failed", err)
		return
	}

	push := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		push.Stop()
		ping.Stop()
	}()

	ctx := c.Request.Context()
	for {
		// the snapshot is read here so every frame reflects one controller value
		if err := h.writeFrame(conn, msgTilt, h.services.Monitoring.GetTilt(ctx)); err != nil {
			h.logStreamEnd("ws_tilt_write_failed", err)
			return
		}

		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logStreamEnd("ws_ping_failed", err)
				return
			}
		case <-push.C:
		}
	}
}

// parseInterval reads ?interval=50ms or ?interval_ms=50. Out-of-range or
// malformed values fall through to the next form, then to the default.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if s := c.Query("interval_ms"); s != "" {
		if ms, err := cast.ToInt64E(s); err == nil {
			if d := time.Duration(ms) * time.Millisecond; d > 0 && d <= maxInterval {
				return d
			}
		}
	}
	return defaultInterval
}

// drainControlFrames reads until the client goes away so pongs and close
// frames are processed.
func (h *Handler) drainControlFrames(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logStreamEnd("ws_client_gone", err)
			return
		}
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, typ string, data interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: typ, Data: data})
}

func (h *Handler) logStreamEnd(event string, err error) {
	if h.log != nil {
		h.log.Infow(event, "err", err)
	}
}
