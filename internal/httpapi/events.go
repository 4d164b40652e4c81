package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"fcsrv/internal/events"
)

// EventSource is implemented by services that stream lifecycle events.
type EventSource interface {
	Subscribe() (<-chan events.Event, func())
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin follows the CORS settings; without CORS only same-host origins
// are accepted.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if corsEnabled {
		return slices.Contains(corsAllowedOrigins, "*") || slices.Contains(corsAllowedOrigins, origin)
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// eventsHandler upgrades to a websocket and writes one JSON message per event
// until the client goes away or the server shuts down.
func eventsHandler(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			reqEvent(r, LevelError, http.StatusBadRequest).Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		ch, unsubscribe := src.Subscribe()
		defer unsubscribe()

		// The read loop only exists to notice close frames and dead peers.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-gone:
				return
			case <-serverBaseCtx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
