package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"codepad/internal/metrics"
	"codepad/internal/server/service"
	"codepad/internal/util"
	"codepad/internal/workspace"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	wsWriteTimeout = 10 * time.Second
	// wsEventBuffer is how many save events may wait for a slow client
	// before newer ones are dropped.
	wsEventBuffer = 16
)

// wsReply answers one intent received over the socket.
type wsReply struct {
	ID       string              `json:"id,omitempty"`
	Snapshot *workspace.Snapshot `json:"snapshot,omitempty"`
	Error    string              `json:"error,omitempty"`
	Status   int                 `json:"status,omitempty"`
}

// wsEvent is pushed to the client when a save completes.
type wsEvent struct {
	Event      string `json:"event"`
	Generation uint64 `json:"generation"`
	Error      string `json:"error,omitempty"`
}

// WorkspaceSocket serves the workspace intent channel over WebSocket.
type WorkspaceSocket struct {
	svc       *service.ProjectService
	upgrader  websocket.Upgrader
	readLimit int64
	logger    zerolog.Logger
}

// NewWorkspaceSocket creates the socket handler. Messages larger than
// readLimit bytes close the connection.
func NewWorkspaceSocket(svc *service.ProjectService, readLimit int64) *WorkspaceSocket {
	return &WorkspaceSocket{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readLimit: readLimit,
		logger:    util.GetLogger("ws"),
	}
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Handle handles GET /api/projects/:id/workspace/ws.
// Each text message is one intent; the reply carries the intent id and
// either the new snapshot or an error. Save completions are pushed as
// events.
func (s *WorkspaceSocket) Handle(c echo.Context) error {
	id := c.Param("id")
	ws, err := s.svc.Workspace(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(c, err)
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("project", id).Msg("websocket upgrade failed")
		return nil
	}
	if s.readLimit > 0 {
		conn.SetReadLimit(s.readLimit)
	}
	client := &wsConn{conn: conn}

	metrics.WSConnected()
	s.logger.Debug().Str("project", id).Str("ip", c.RealIP()).Msg("client connected")

	events := make(chan wsEvent, wsEventBuffer)
	quit := make(chan struct{})
	go s.writeEvents(client, events, quit, id)

	cancel := ws.Subscribe(func(r workspace.SaveResult) {
		ev := wsEvent{Event: "save", Generation: r.Generation}
		if r.Err != nil {
			ev.Error = r.Err.Error()
		}
		select {
		case events <- ev:
		default:
			s.logger.Debug().Str("project", id).Uint64("generation", r.Generation).Msg("client too slow, dropping save event")
		}
	})

	defer func() {
		cancel()
		close(quit)
		conn.Close()
		metrics.WSDisconnected()
		s.logger.Debug().Str("project", id).Msg("client disconnected")
	}()

	if err := client.send(wsReply{Snapshot: snapshotPtr(ws.Snapshot())}); err != nil {
		return nil
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Str("project", id).Msg("websocket read failed")
			}
			return nil
		}
		if err := client.send(s.apply(ws, msg)); err != nil {
			return nil
		}
	}
}

// writeEvents forwards save events to the client until quit is closed, so
// a slow connection never holds up the workspace's save delivery.
func (s *WorkspaceSocket) writeEvents(client *wsConn, events <-chan wsEvent, quit <-chan struct{}, id string) {
	for {
		select {
		case <-quit:
			return
		case ev := <-events:
			if err := client.send(ev); err != nil {
				s.logger.Debug().Err(err).Str("project", id).Msg("dropping save event")
			}
		}
	}
}

func (s *WorkspaceSocket) apply(ws *workspace.Workspace, msg []byte) wsReply {
	var in workspace.Intent
	if err := json.Unmarshal(msg, &in); err != nil {
		return wsReply{Error: "invalid intent", Status: http.StatusBadRequest}
	}
	snap, err := ws.Apply(in)
	if err != nil {
		status, message := errorStatus(err)
		return wsReply{ID: in.ID, Error: message, Status: status}
	}
	return wsReply{ID: in.ID, Snapshot: &snap}
}

func snapshotPtr(s workspace.Snapshot) *workspace.Snapshot { return &s }
