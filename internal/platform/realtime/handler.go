package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// ClientMessage is an inbound frame. Ref is chosen by the client and names
// the subscription in later unsubscribe frames and in delivered events.
type ClientMessage struct {
	Action string `json:"action"`
	Ref    string `json:"ref"`
	Table  string `json:"table"`
	Filter Filter `json:"filter"`
}

// ServerMessage is an outbound frame.
type ServerMessage struct {
	Type   string  `json:"type"`
	Ref    string  `json:"ref,omitempty"`
	Change *Change `json:"change,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Handler upgrades authenticated requests to WebSocket connections that
// multiplex hub subscriptions.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a handler. allowedOrigins empty allows any origin.
func NewHandler(hub *Hub, allowedOrigins []string, logger zerolog.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/realtime/ws", h.HandleConnect)
}

// session is the per-connection state.
type session struct {
	id     *auth.Identity
	hub    *Hub
	send   chan []byte
	mu     sync.Mutex
	subs   map[string]*Subscription
	wg     sync.WaitGroup
	closed chan struct{}
}

func (h *Handler) HandleConnect(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	if id == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s := &session{
		id:     id,
		hub:    h.hub,
		send:   make(chan []byte, sendBuffer),
		subs:   make(map[string]*Subscription),
		closed: make(chan struct{}),
	}

	go h.writePump(s, ws)
	h.readPump(s, ws)
	return nil
}

func (h *Handler) readPump(s *session, ws *websocket.Conn) {
	defer func() {
		s.closeAll()
		close(s.closed)
		s.wg.Wait()
		close(s.send)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(ServerMessage{Type: "error", Error: "malformed message"})
			continue
		}
		s.handle(msg)
	}
}

func (h *Handler) writePump(s *session, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) handle(msg ClientMessage) {
	if msg.Ref == "" {
		s.reply(ServerMessage{Type: "error", Error: "ref is required"})
		return
	}

	switch msg.Action {
	case "subscribe":
		if err := Authorize(s.id, msg.Table, msg.Filter); err != nil {
			s.reply(ServerMessage{Type: "error", Ref: msg.Ref, Error: err.Error()})
			return
		}
		s.subscribe(msg.Ref, msg.Table, msg.Filter)
		s.reply(ServerMessage{Type: "subscribed", Ref: msg.Ref})
	case "unsubscribe":
		s.unsubscribe(msg.Ref)
		s.reply(ServerMessage{Type: "unsubscribed", Ref: msg.Ref})
	default:
		s.reply(ServerMessage{Type: "error", Ref: msg.Ref, Error: "unknown action"})
	}
}

func (s *session) subscribe(ref, table string, filter Filter) {
	s.mu.Lock()
	if old, ok := s.subs[ref]; ok {
		old.Close()
	}
	sub := s.hub.Subscribe(table, filter)
	s.subs[ref] = sub
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for change := range sub.Events() {
			change := change
			s.reply(ServerMessage{Type: "change", Ref: ref, Change: &change})
		}
	}()
}

func (s *session) unsubscribe(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[ref]; ok {
		sub.Close()
		delete(s.subs, ref)
	}
}

func (s *session) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, sub := range s.subs {
		sub.Close()
		delete(s.subs, ref)
	}
}

// reply queues msg without blocking; a full buffer drops it.
func (s *session) reply(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-s.closed:
	case s.send <- data:
	default:
	}
}
