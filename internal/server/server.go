package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"roulette/internal/constants"
	"roulette/internal/lifecycle"
	"roulette/internal/match"
	"roulette/internal/pool"
	"roulette/internal/registry"
	"roulette/internal/relay"
	"roulette/internal/security"
	"roulette/internal/utils"
)

type Server struct {
	Pool        pool.Store
	Pairs       *match.Pairs
	Registry    *registry.Registry
	Relay       *relay.Relay
	Controller  *lifecycle.Controller
	Port        string
	ConnLimiter *security.ConnectionLimiter
	AuditLogger *security.AuditLogger
	ICEServers  []ICEServer

	upgrader websocket.Upgrader
}

func NewServer() (*Server, error) {
	return newServer(pool.NewStore())
}

// NewServerWithPool wires the server around an explicit pool backend,
// used by tests to avoid the env-driven factory.
func NewServerWithPool(p pool.Store) (*Server, error) {
	return newServer(p)
}

func newServer(p pool.Store) (*Server, error) {
	auditLogger, err := security.GetAuditLogger()
	if err != nil {
		log.Printf("Warning: Failed to initialize audit logger: %v", err)
	}

	iceServers, err := ParseICEServersFromEnv()
	if err != nil {
		log.Printf("Warning: Invalid ICE server configuration: %v", err)
	}

	reg := registry.NewRegistry()
	pairs := match.NewPairs()
	engine := match.NewEngine(p, pairs)
	rly := relay.NewRelay(reg)

	s := &Server{
		Pool:        p,
		Pairs:       pairs,
		Registry:    reg,
		Relay:       rly,
		Controller:  lifecycle.NewController(p, pairs, engine, reg, rly, auditLogger),
		ConnLimiter: security.NewConnectionLimiter(constants.MaxConnectionsPerIP),
		AuditLogger: auditLogger,
		ICEServers:  iceServers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  constants.WSBufferSize,
			WriteBufferSize: constants.WSBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	return s, nil
}

// Handler builds the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointWebSocket, s.HandleWebSocket)
	mux.HandleFunc(constants.EndpointICEServers, s.HandleICEServers)
	mux.HandleFunc(constants.EndpointStats, s.HandleStats)

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = CorsMiddleware(handler)
	handler = security.SecurityHeaders(handler)
	return handler
}

func (s *Server) Run() {
	s.Port = utils.GetEnv(constants.EnvPort, constants.DefaultPort)

	h2Handler := h2c.NewHandler(s.Handler(), &http2.Server{})

	server := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           h2Handler,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("🚀 roulette server starting on :%s", s.Port)

	<-sigChan
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
}

func (s *Server) Cleanup() {
	s.Registry.CloseAll()
	if err := s.Pool.Close(); err != nil {
		log.Printf("Failed to close waiting pool: %v", err)
	}
	if s.AuditLogger != nil {
		s.AuditLogger.Close()
	}
}
