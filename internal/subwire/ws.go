package subwire

import (
	"log"
	"net/http"

	engine "github.com/gqlgate/gqlgate/internal/engine"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla websocket connection to the Conn contract.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, p, err := w.c.ReadMessage()
	return p, err
}

func (w *wsConn) Send(v any) error { return w.c.WriteJSON(v) }

func (w *wsConn) Close() error { return w.c.Close() }

// WSHandler upgrades HTTP requests to websocket connections and runs one
// Bridge per connection.
type WSHandler struct {
	provider *engine.Provider
	upgrader websocket.Upgrader
}

// NewWSHandler creates the websocket endpoint for the given provider.
// checkOrigin may be nil to accept any origin.
func NewWSHandler(provider *engine.Provider, checkOrigin func(*http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{
		provider: provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"graphql-transport-ws"},
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[subwire] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	b := New(h.provider)
	if err := b.ServeConn(r.Context(), &wsConn{c: conn}); err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure,
		) {
			return
		}
		log.Printf("[subwire] connection %s: %v", b.ConnID(), err)
	}
}
