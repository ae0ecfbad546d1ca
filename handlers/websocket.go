package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"noshow-prediction-api/metrics"
	"noshow-prediction-api/services"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type runMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RunsWebSocket streams a run_completed message for every prediction run
// until the client disconnects.
func RunsWebSocket(runs *services.RunFeed) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		metrics.WebSocketClients.Inc()
		defer metrics.WebSocketClients.Dec()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		events := runs.Subscribe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(runMessage{Type: "run_completed", Data: data}); err != nil {
					logger.Debug().Err(err).Msg("websocket write failed")
					return
				}
			}
		}
	}
}
