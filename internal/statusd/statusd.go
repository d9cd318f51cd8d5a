// Package statusd exposes a read-only HTTP and WebSocket surface over the
// session registry. It cannot send protocol messages — it only observes.
package statusd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/haildev/hail/internal/peerwire"
	"github.com/haildev/hail/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// sessionView is the JSON shape one registered connection is rendered as.
type sessionView struct {
	Address        string `json:"address"`
	PeerID         string `json:"peerId"`
	Capabilities   uint64 `json:"capabilities"`
	Choking        bool   `json:"choking"`
	Interested     bool   `json:"interested"`
	PeerChoking    bool   `json:"peerChoking"`
	PeerInterested bool   `json:"peerInterested"`
}

// NewRouter builds the gin router for the observability surface, ready to
// hand to http.Server.Handler or router.Run.
func NewRouter(reg *registry.Registry, logger *slog.Logger) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "hail-statusd"})
	})

	router.GET("/sessions", func(c *gin.Context) {
		snapshot := reg.Snapshot()
		views := make([]sessionView, 0, len(snapshot))

		for addr, conn := range snapshot {
			client, peer := conn.Status().Snapshot()
			peerID := conn.RemotePeerID()
			views = append(views, sessionView{
				Address:        addr,
				PeerID:         string(peerID[:]),
				Capabilities:   uint64(conn.RemoteCapabilities()),
				Choking:        client.Choking,
				Interested:     client.Interested,
				PeerChoking:    peer.Choking,
				PeerInterested: peer.Interested,
			})
		}

		c.JSON(http.StatusOK, views)
	})

	router.GET("/sessions/:addr/stream", func(c *gin.Context) {
		streamSessionEvents(c, reg, logger, c.Param("addr"))
	})

	return router
}

// streamSessionEvents upgrades the request to a WebSocket and pushes one
// JSON line per choke/interest or piece-availability message it takes off
// the named connection's Incoming channel, until the client disconnects or
// the connection closes. Frames the connection dropped because Incoming was
// full are not reported. A ping ticker keeps the connection alive across
// idle periods.
func streamSessionEvents(c *gin.Context, reg *registry.Registry, logger *slog.Logger, addr string) {
	conn, ok := reg.Get(addr)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session address"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade to websocket", "addr", addr, "err", err)
		return
	}
	defer ws.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-conn.Done():
			return

		case <-ticker.C:
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case msg, ok := <-conn.Incoming:
			if !ok {
				return
			}
			if !isAvailabilityMessage(msg.ID) && !isControlMessage(msg.ID) {
				continue
			}
			if err := ws.WriteJSON(gin.H{"kind": msg.ID.String(), "piece": msg.Piece}); err != nil {
				return
			}
		}
	}
}

func isAvailabilityMessage(id peerwire.MessageID) bool {
	switch id {
	case peerwire.Have, peerwire.HaveAll, peerwire.HaveNone, peerwire.SuggestPiece, peerwire.AllowedFast:
		return true
	default:
		return false
	}
}

func isControlMessage(id peerwire.MessageID) bool {
	switch id {
	case peerwire.Choke, peerwire.Unchoke, peerwire.Interested, peerwire.NotInterested:
		return true
	default:
		return false
	}
}
