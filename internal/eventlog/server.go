package eventlog

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader accepts only same-host connections: a request with no Origin
// header (a non-browser client) or whose Origin host equals the request
// Host. The listener itself is bound to loopback by the caller, so origin
// checking is not load-bearing but is kept explicit.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	},
}

// ServeEvents upgrades r to a websocket and streams every event recorded
// after the connection opens, newline-delimited JSON per message, until a
// write to the client fails (the client is gone or stalled past the write
// deadline). Closing the Log does not end the stream.
func (l *Log) ServeEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn("events websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := l.Subscribe(64)
	defer l.Unsubscribe(ch)

	conn.SetReadDeadline(time.Now().Add(time.Hour))
	go drainReads(conn)

	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// drainReads discards inbound frames so the client's pings/closes are
// observed; this endpoint is publish-only.
func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
