package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"roulette/internal/constants"
	"roulette/internal/lifecycle"
	"roulette/internal/protocol"
	"roulette/internal/registry"
	"roulette/internal/security"
)

// HandleWebSocket upgrades the connection, issues a session ID and runs the
// connection's read loop until the client leaves. The session lives exactly
// as long as this handler.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := security.GetClientIP(r)

	if !s.ConnLimiter.TryConnect(clientIP) {
		if s.AuditLogger != nil {
			s.AuditLogger.LogConnectionLimit(clientIP)
		}
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}
	defer s.ConnLimiter.Disconnect(clientIP)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade error: %v", err)
		return
	}

	sessionID := uuid.New().String()
	client := registry.NewClient(sessionID, conn, s)

	s.Registry.Register(client)
	s.Controller.Connect(sessionID)
	log.Printf("🔗 Connected: %s (%s)", sessionID, clientIP)

	client.Enqueue(protocol.Event{Type: protocol.EventConnected, SessionID: sessionID})

	go client.WritePump()
	client.ReadPump()
}

// HandleEvent dispatches one inbound client event. Events from a connection
// arrive serially from its read pump, so a session's own operations are
// never processed concurrently.
func (s *Server) HandleEvent(c *registry.Client, ev protocol.Event) {
	if err := protocol.ValidateInbound(ev); err != nil {
		c.Enqueue(protocol.Event{Type: protocol.EventError, Reason: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.StoreOpTimeout)
	defer cancel()

	switch ev.Type {
	case protocol.EventJoinQueue:
		if err := s.Controller.JoinQueue(ctx, c.ID, ev.Country, ev.Interests); err != nil {
			switch {
			case errors.Is(err, lifecycle.ErrDuplicateState):
				c.Enqueue(protocol.Event{Type: protocol.EventError, Reason: constants.MsgAlreadyQueued})
			case errors.Is(err, lifecycle.ErrStoreUnavailable):
				log.Printf("⚠️  Join failed for %s: %v", c.ID, err)
				c.Enqueue(protocol.Event{Type: protocol.EventError, Reason: constants.MsgStoreUnavailable})
			default:
				c.Enqueue(protocol.Event{Type: protocol.EventError, Reason: constants.MsgInvalidEvent})
			}
		}

	case protocol.EventSignal:
		s.Relay.Forward(c.ID, ev.To, protocol.Event{Type: protocol.EventSignal, Data: ev.Data})

	case protocol.EventMessage:
		s.Relay.Forward(c.ID, ev.To, protocol.Event{Type: protocol.EventMessage, Message: ev.Message})

	case protocol.EventNext:
		s.Controller.Skip(ctx, c.ID)

	default:
		c.Enqueue(protocol.Event{Type: protocol.EventError, Reason: constants.MsgUnknownEvent})
	}
}

// HandleClose runs the disconnect teardown when a connection's read pump
// exits for any reason.
func (s *Server) HandleClose(c *registry.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.StoreOpTimeout)
	defer cancel()
	s.Controller.Disconnect(ctx, c.ID)
}

// HandleICEServers serves the ICE server list browsers need to build their
// RTCPeerConnection config.
func (s *Server) HandleICEServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"iceServers": s.ICEServers,
	})
}

type statsResponse struct {
	Connections int   `json:"connections"`
	Waiting     int64 `json:"waiting"`
	Pairings    int   `json:"pairings"`
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.StoreOpTimeout)
	defer cancel()

	waiting, err := s.Pool.Count(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to count waiting pool: %v", err)
		http.Error(w, "Stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Connections: s.Registry.Len(),
		Waiting:     waiting,
		Pairings:    s.Pairs.Len(),
	})
}
