package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from the appliance itself; cross-origin pages
	// on the same LAN are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const streamWriteTimeout = 5 * time.Second

// streamHandler pushes the data snapshot to the client on every sampling
// tick, starting with the most recent value.
func streamHandler(b *Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			return
		}

		id, ch := b.Subscribe(4)
		defer b.Unsubscribe(id)
		defer func() { _ = conn.Close() }()

		// Drain client frames so close/ping handling keeps working; the
		// stream is one-way otherwise.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						log.Printf("stream write failed: %v", err)
					}
					return
				}
			}
		}
	}
}
