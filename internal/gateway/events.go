package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/flemzord/chaingate/internal/agent"
)

// eventWriteTimeout bounds one event write to a slow client.
const eventWriteTimeout = 5 * time.Second

// handleEvents streams runtime events as JSON text frames. ?agent_id
// restricts the stream to one agent. Clients only listen; anything they
// send closes the stream.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := r.URL.Query().Get("agent_id")

		// The server write timeout would otherwise cut the stream.
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})
		_ = rc.SetReadDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.CloseNow()
		}()

		done := g.done
		events, cancel := g.events.Subscribe(g.config.EventBuffer)
		defer cancel()

		g.logger.Debug("event stream opened", "remote", r.RemoteAddr, "agent_id", agentID)
		ctx := conn.CloseRead(r.Context())
		if err := g.streamEvents(ctx, conn, done, events, agentID); err != nil {
			g.logger.Debug("event stream closed", "remote", r.RemoteAddr, "error", err)
		}
	}
}

func (g *Gateway) streamEvents(ctx context.Context, conn *websocket.Conn, done <-chan struct{}, events <-chan agent.Event, agentID string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return conn.Close(websocket.StatusGoingAway, "server shutting down")
		case ev, ok := <-events:
			if !ok {
				return conn.Close(websocket.StatusGoingAway, "stream closed")
			}
			if agentID != "" && ev.AgentID != agentID {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
