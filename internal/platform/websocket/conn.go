package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
)

// Options tune the per-connection pumps.
type Options struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 64 * 1024,
	}
}

// NewUpgrader returns an upgrader that accepts requests from the given
// origins. "*" accepts any origin; requests without an Origin header (native
// clients) are always accepted.
func NewUpgrader(origins []string) *gorillawebsocket.Upgrader {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}
	return &gorillawebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}

// Serve runs the pumps for an upgraded connection that has already been
// registered with the hub. onMessage is called sequentially, in arrival
// order, from the calling goroutine. Serve returns once the connection is
// gone; by then the client is unregistered and the socket closed.
func (h *Hub) Serve(ws *gorillawebsocket.Conn, client *Client, opts Options, onMessage func([]byte)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ws, client, opts)
	}()

	readPump(ws, opts, onMessage)

	h.Unregister(client)
	ws.Close()
	<-done
}

// readPump reads frames until the peer goes away or stops answering pings.
func readPump(ws *gorillawebsocket.Conn, opts Options, onMessage func([]byte)) {
	if opts.MaxMessageBytes > 0 {
		ws.SetReadLimit(opts.MaxMessageBytes)
	}
	_ = ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		// Any inbound traffic counts as liveness.
		_ = ws.SetReadDeadline(time.Now().Add(opts.PongWait))
		onMessage(message)
	}
}

// writePump drains client.Send and pings on an interval. It exits when Send
// is closed or a write fails.
func writePump(ws *gorillawebsocket.Conn, client *Client, opts Options) {
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(gorillawebsocket.PingMessage, nil, time.Now().Add(opts.WriteWait)); err != nil {
				return
			}
		}
	}
}
