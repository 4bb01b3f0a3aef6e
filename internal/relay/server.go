package relay

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/voxbridge/relay-gateway/internal/fallback"
	"github.com/voxbridge/relay-gateway/internal/observability"
	"github.com/voxbridge/relay-gateway/internal/protocol"
)

// Version is reported in the connected greeting.
const Version = "1.0.0"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Identity is the caller-supplied pair inside session.bind; origin
		// checks belong to the deployment's edge.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Server accepts relay connections and dispatches decoded messages to each
// connection's session.
type Server struct {
	synth   *fallback.Synthesis
	replier Replier
	store   MessageStore
	logger  zerolog.Logger
}

// NewServer wires the relay over its collaborators.
func NewServer(synthOrch *fallback.Synthesis, replier Replier, store MessageStore, logger zerolog.Logger) *Server {
	return &Server{
		synth:   synthOrch,
		replier: replier,
		store:   store,
		logger:  logger,
	}
}

// HandleWS is the WebSocket entry point for relay clients.
func (s *Server) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		observability.RecordConnectionOpen()
		defer observability.RecordConnectionClose()

		sender := newWSSender(conn)
		session := NewSession(sender, s.synth, s.replier, s.store, s.logger)
		logger := s.logger.With().Str("connection_id", session.ID()).Logger()
		logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Relay connection established")

		if err := sender.Send(protocol.NewConnected(Version)); err != nil {
			return
		}

		ctx := r.Context()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					logger.Warn().Err(err).Msg("WebSocket read error")
				}
				session.Abort()
				sender.close()
				logger.Info().Msg("Relay connection closed")
				return
			}

			msg, derr := protocol.Decode(data)
			if derr != nil {
				logger.Debug().Str("reason", derr.Reason).Msg("Rejected inbound message")
				sender.Send(protocol.NewError(protocol.CodeInvalidMessage, derr.Reason))
				continue
			}

			switch msg.Type {
			case protocol.TypeSessionBind:
				session.HandleBind(ctx, msg)
			case protocol.TypeAssistantSpeak:
				session.HandleSpeak(ctx, msg)
			case protocol.TypePing:
				session.HandlePing()
			}
		}
	}
}

// wsSender serializes writes to one WebSocket connection. Once a write
// fails the transport is considered gone and every later Send short-circuits.
type wsSender struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn}
}

func (w *wsSender) Send(msg protocol.ServerMessage) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return net.ErrClosed
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		w.closed = true
		return err
	}
	return nil
}

func (w *wsSender) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
